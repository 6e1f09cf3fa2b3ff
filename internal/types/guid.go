package types

import "github.com/google/uuid"

// On-disk GUIDs use the Windows mixed-endian layout: the first three fields
// are little-endian, the remaining eight bytes are stored as-is.

// GUIDFromBytes converts a 16-byte on-disk GUID to a uuid.UUID.
func GUIDFromBytes(b [16]byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u
}

// GUIDToBytes converts a uuid.UUID to its 16-byte on-disk representation.
func GUIDToBytes(u uuid.UUID) [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:], u[8:])
	return b
}
