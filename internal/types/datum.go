package types

// Key datum structures carried inside FVE metadata entries.

const (
	// NonceSize is the size of an AES-CCM nonce in the FVE format: an
	// 8-byte FILETIME followed by a 4-byte counter.
	NonceSize = 12

	// MACSize is the size of the AES-CCM message authentication code.
	MACSize = 16

	// SaltSize is the size of the key stretch salt.
	SaltSize = 16

	// DefaultStretchIterations is the iteration count of the FVE key
	// stretch as written by Windows.
	DefaultStretchIterations = 0x100000
)

// ProtectionType identifies the mechanism protecting a volume master key.
type ProtectionType uint16

const (
	ProtectionTypeClearKey         ProtectionType = 0x0000
	ProtectionTypeTPM              ProtectionType = 0x0100
	ProtectionTypeStartupKey       ProtectionType = 0x0200
	ProtectionTypeTPMAndPIN        ProtectionType = 0x0500
	ProtectionTypeRecoveryPassword ProtectionType = 0x0800
	ProtectionTypePassword         ProtectionType = 0x2000
)

// String returns a human-readable description of the protection type.
func (t ProtectionType) String() string {
	switch t {
	case ProtectionTypeClearKey:
		return "Clear Key"
	case ProtectionTypeTPM:
		return "TPM"
	case ProtectionTypeStartupKey:
		return "Startup Key"
	case ProtectionTypeTPMAndPIN:
		return "TPM and PIN"
	case ProtectionTypeRecoveryPassword:
		return "Recovery Password"
	case ProtectionTypePassword:
		return "Password"
	}
	return "Unknown"
}

// KeyDatum is a raw key value (value type 0x0001). The unwrapped payload of
// every AES-CCM encrypted key is a key datum; its well-formedness is the
// embedded validation that detects a wrong unwrap key.
type KeyDatum struct {
	// The encryption method the key is intended for.
	EncryptionMethod EncryptionMethod

	// The raw key bytes.
	Key []byte
}

// StretchKeyDatum describes how to stretch a credential into an unwrap key
// (value type 0x0003).
type StretchKeyDatum struct {
	// The encryption method of the stretched key.
	EncryptionMethod EncryptionMethod

	// The key stretch salt.
	Salt [SaltSize]byte

	// Nested entries, if any. The AES-CCM encrypted volume master key is
	// not stored here but as a sibling property of the enclosing key
	// protector datum.
	Properties []MetadataEntry
}

// AESCCMEncryptedKeyDatum is a wrapped key (value type 0x0005).
type AESCCMEncryptedKeyDatum struct {
	// The nonce: FILETIME (8 bytes little-endian) followed by a counter.
	Nonce [NonceSize]byte

	// The message authentication code of the encrypted data.
	MAC [MACSize]byte

	// The ciphertext; decrypts to a key datum.
	EncryptedData []byte
}

// UseKeyDatum references another key by nesting it (value type 0x0004).
type UseKeyDatum struct {
	// The encryption method of the referenced key.
	EncryptionMethod EncryptionMethod

	// Nested entries carrying the referenced key material.
	Properties []MetadataEntry
}

// ExternalKeyDatum is key material stored outside the volume, for example in
// a BEK startup key file (value type 0x0009).
type ExternalKeyDatum struct {
	// The key identifier GUID, in on-disk byte order.
	Identifier [16]byte

	// The time the key was created.
	ModificationTime Filetime

	// Nested entries; carries the raw key datum.
	Properties []MetadataEntry
}

// VolumeMasterKeyDatum is a protected copy of the volume master key
// (value type 0x0008).
type VolumeMasterKeyDatum struct {
	// The key protector identifier GUID, in on-disk byte order.
	Identifier [16]byte

	// The time the protector was last modified.
	ModificationTime Filetime

	// The protection type of this protector.
	ProtectionType ProtectionType

	// Nested property entries: stretch key, AES-CCM encrypted key, use key
	// or clear key, depending on the protection type.
	Properties []MetadataEntry
}

// OffsetAndSizeDatum is a data run descriptor (value type 0x000f), used by
// the volume header block entry to locate the backed-up boot sectors.
type OffsetAndSizeDatum struct {
	// The offset of the data, relative to the start of the volume.
	Offset uint64

	// The size of the data in bytes.
	Size uint64
}
