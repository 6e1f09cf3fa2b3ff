package types

// FVE metadata structures.
//
// Each of the three metadata block copies consists of a 64-byte block
// header, a 48-byte metadata header and a sequence of variable-length
// metadata entries.

const (
	// MetadataBlockHeaderSize is the size of the FVE metadata block header.
	MetadataBlockHeaderSize = 64

	// MetadataHeaderSize is the size of the FVE metadata header.
	MetadataHeaderSize = 48

	// MetadataEntryHeaderSize is the size of the common metadata entry header.
	MetadataEntryHeaderSize = 8

	// MetadataBlockVersionWindows7 identifies the Windows 7 and later
	// on-disk layout. Version 1 (Windows Vista) uses a different layout and
	// is not supported.
	MetadataBlockVersionWindows7 = 2

	// MetadataFormatVersion is the only defined version of the FVE metadata
	// header.
	MetadataFormatVersion = 1
)

// MetadataBlockHeader is the 64-byte header of an FVE metadata block.
type MetadataBlockHeader struct {
	// The signature, must be "-FVE-FS-".
	Signature [8]byte

	// The size of the FVE metadata header that follows.
	Size uint16

	// The format version; 2 for Windows 7 and later.
	Version uint16

	// The size of the encrypted volume in bytes.
	EncryptedVolumeSize uint64

	// The number of sectors at the start of the volume that are virtualized,
	// meaning their plaintext lives in the backup region at
	// VolumeHeaderOffset rather than at their nominal location.
	NumberOfVolumeHeaderSectors uint32

	// The offsets of the three FVE metadata block copies. These must match
	// the offsets declared in the volume header.
	MetadataOffsets [3]uint64

	// The offset of the backed-up volume header sectors.
	VolumeHeaderOffset uint64
}

// MetadataHeader is the 48-byte FVE metadata header.
type MetadataHeader struct {
	// The size of the metadata, including this header.
	MetadataSize uint32

	// The format version, must be 1.
	Version uint32

	// The size of this header, must be 48.
	HeaderSize uint32

	// A copy of MetadataSize, used as an integrity check.
	MetadataSizeCopy uint32

	// The volume identifier GUID, in on-disk byte order.
	VolumeIdentifier [16]byte

	// The next nonce counter used when wrapping keys.
	NextNonceCounter uint32

	// The encryption method applied to the volume data.
	EncryptionMethod EncryptionMethod

	// The volume creation time as a FILETIME.
	CreationTime Filetime
}

// MetadataEntry is a single variable-length FVE metadata entry. The entry
// size stored on disk includes the 8-byte entry header.
type MetadataEntry struct {
	// The entry type.
	EntryType EntryType

	// The value type of the entry data.
	ValueType ValueType

	// The entry format version, must be 1.
	Version uint16

	// The entry data, without the 8-byte header.
	Data []byte
}

// EntryType identifies what a metadata entry describes.
type EntryType uint16

const (
	EntryTypeNone                    EntryType = 0x0000
	EntryTypeDriveLabel              EntryType = 0x0001
	EntryTypeVolumeMasterKey         EntryType = 0x0002
	EntryTypeFullVolumeEncryptionKey EntryType = 0x0003
	EntryTypeValidation              EntryType = 0x0004
	EntryTypeStartupKey              EntryType = 0x0006
	EntryTypeDescription             EntryType = 0x0007
	EntryTypeVolumeHeaderBlock       EntryType = 0x000f
)

// String returns a human-readable description of the entry type.
func (t EntryType) String() string {
	switch t {
	case EntryTypeNone:
		return "None"
	case EntryTypeDriveLabel:
		return "Drive Label"
	case EntryTypeVolumeMasterKey:
		return "Volume Master Key"
	case EntryTypeFullVolumeEncryptionKey:
		return "Full Volume Encryption Key"
	case EntryTypeValidation:
		return "Validation"
	case EntryTypeStartupKey:
		return "Startup Key"
	case EntryTypeDescription:
		return "Description"
	case EntryTypeVolumeHeaderBlock:
		return "Volume Header Block"
	}
	return "Unknown"
}

// ValueType identifies the wire format of a metadata entry's data.
type ValueType uint16

const (
	ValueTypeErased             ValueType = 0x0000
	ValueTypeKey                ValueType = 0x0001
	ValueTypeUnicodeString      ValueType = 0x0002
	ValueTypeStretchKey         ValueType = 0x0003
	ValueTypeUseKey             ValueType = 0x0004
	ValueTypeAESCCMEncryptedKey ValueType = 0x0005
	ValueTypeTPMEncodedKey      ValueType = 0x0006
	ValueTypeValidation         ValueType = 0x0007
	ValueTypeVolumeMasterKey    ValueType = 0x0008
	ValueTypeExternalKey        ValueType = 0x0009
	ValueTypeUpdate             ValueType = 0x000a
	ValueTypeError              ValueType = 0x000b
	ValueTypeOffsetAndSize      ValueType = 0x000f
)

// String returns a human-readable description of the value type.
func (t ValueType) String() string {
	switch t {
	case ValueTypeErased:
		return "Erased"
	case ValueTypeKey:
		return "Key"
	case ValueTypeUnicodeString:
		return "Unicode String"
	case ValueTypeStretchKey:
		return "Stretch Key"
	case ValueTypeUseKey:
		return "Use Key"
	case ValueTypeAESCCMEncryptedKey:
		return "AES-CCM Encrypted Key"
	case ValueTypeTPMEncodedKey:
		return "TPM Encoded Key"
	case ValueTypeValidation:
		return "Validation"
	case ValueTypeVolumeMasterKey:
		return "Volume Master Key"
	case ValueTypeExternalKey:
		return "External Key"
	case ValueTypeUpdate:
		return "Update"
	case ValueTypeError:
		return "Error"
	case ValueTypeOffsetAndSize:
		return "Offset and Size"
	}
	return "Unknown"
}
