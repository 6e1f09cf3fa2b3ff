package interfaces

import (
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// VolumeHeaderReader provides methods for reading the BDE volume header.
type VolumeHeaderReader interface {
	// BytesPerSector returns the sector size declared by the volume header.
	BytesPerSector() uint16

	// VolumeIdentifier returns the volume identifier GUID.
	VolumeIdentifier() uuid.UUID

	// MetadataOffsets returns the offsets of the three FVE metadata block
	// copies.
	MetadataOffsets() [3]uint64
}

// MetadataReader provides methods for reading a parsed FVE metadata block.
type MetadataReader interface {
	// Version returns the metadata block format version.
	Version() uint16

	// EncryptedVolumeSize returns the size of the encrypted volume in bytes.
	EncryptedVolumeSize() uint64

	// VolumeHeaderOffset returns the offset of the backed-up volume header
	// sectors.
	VolumeHeaderOffset() uint64

	// VolumeHeaderSize returns the number of bytes at the start of the
	// volume whose plaintext lives at VolumeHeaderOffset.
	VolumeHeaderSize() uint64

	// NumberOfVolumeHeaderSectors returns the number of virtualized sectors
	// declared by the metadata block header.
	NumberOfVolumeHeaderSectors() uint32

	// MetadataOffsets returns the offsets of the three FVE metadata block
	// copies as recorded in the metadata block header.
	MetadataOffsets() [3]uint64

	// VolumeIdentifier returns the volume identifier GUID.
	VolumeIdentifier() uuid.UUID

	// EncryptionMethod returns the sector encryption method.
	EncryptionMethod() types.EncryptionMethod

	// CreationTime returns the volume creation time.
	CreationTime() time.Time

	// Description returns the volume description, or the empty string when
	// the metadata carries none.
	Description() string

	// KeyProtectors returns the parsed key protectors in on-disk order.
	KeyProtectors() []KeyProtectorReader

	// EncryptedFVEK returns the AES-CCM wrapped full volume encryption key.
	EncryptedFVEK() *types.AESCCMEncryptedKeyDatum

	// Entries returns all metadata entries, including ones the engine does
	// not interpret.
	Entries() []types.MetadataEntry
}

// KeyProtectorReader provides methods for reading a single key protector.
type KeyProtectorReader interface {
	// Identifier returns the key protector GUID.
	Identifier() uuid.UUID

	// ProtectionType returns the protection mechanism of this protector.
	ProtectionType() types.ProtectionType

	// ModificationTime returns the time the protector was last modified.
	ModificationTime() time.Time

	// StretchKey returns the stretch key datum, or nil when the protector
	// carries none.
	StretchKey() *types.StretchKeyDatum

	// EncryptedKey returns the AES-CCM wrapped volume master key, or nil
	// when the protector carries none.
	EncryptedKey() *types.AESCCMEncryptedKeyDatum

	// ClearKey returns the unprotected key datum of a clear-key protector,
	// or nil for every other protection type.
	ClearKey() *types.KeyDatum
}

// StartupKeyReader provides methods for reading a BEK startup key file.
type StartupKeyReader interface {
	// Identifier returns the external key GUID.
	Identifier() uuid.UUID

	// ModificationTime returns the time the key was created.
	ModificationTime() time.Time

	// Key returns the raw external key bytes.
	Key() []byte
}

// NTFSVolumeHeaderReader provides methods for reading the decrypted NTFS
// boot sector of an unlocked volume.
type NTFSVolumeHeaderReader interface {
	// BytesPerSector returns the sector size declared by the boot sector.
	BytesPerSector() uint16

	// VolumeSize returns the volume size in bytes.
	VolumeSize() uint64
}
