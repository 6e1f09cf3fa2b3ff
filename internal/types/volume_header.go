package types

// BitLocker Drive Encryption (BDE) volume header.
//
// The first sector of a BDE formatted volume replaces the file system boot
// sector. It carries the "-FVE-FS-" signature and the offsets of the three
// FVE metadata block copies.

const (
	// VolumeHeaderSize is the number of bytes occupied by the BDE volume header.
	VolumeHeaderSize = 512

	// VolumeSignature is the OEM identifier of a BDE formatted volume,
	// stored at offset 3 of the volume header.
	VolumeSignature = "-FVE-FS-"

	// VolumeSignatureOffset is the byte offset of the signature within the
	// volume header.
	VolumeSignatureOffset = 3

	// BytesPerSectorOffset is the byte offset of the bytes-per-sector field.
	BytesPerSectorOffset = 11

	// VolumeIdentifierOffset is the byte offset of the volume identifier GUID.
	VolumeIdentifierOffset = 160

	// MetadataOffsetsOffset is the byte offset of the first of the three
	// 64-bit FVE metadata block offsets.
	MetadataOffsetsOffset = 176
)

// VolumeHeader holds the fields of the BDE volume header that the engine
// needs to locate and validate the FVE metadata.
type VolumeHeader struct {
	// The number of bytes per sector.
	BytesPerSector uint16

	// The sectors per cluster block.
	SectorsPerClusterBlock uint8

	// The volume identifier GUID, in on-disk byte order.
	VolumeIdentifier [16]byte

	// The offsets of the three FVE metadata block copies, relative to the
	// start of the volume.
	MetadataOffsets [3]uint64
}
