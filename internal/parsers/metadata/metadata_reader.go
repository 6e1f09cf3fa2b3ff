package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-bitlocker/internal/interfaces"
	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// metadataReader implements the MetadataReader interface for one FVE
// metadata block copy.
type metadataReader struct {
	blockHeader *types.MetadataBlockHeader
	header      *types.MetadataHeader
	entries     []types.MetadataEntry

	description   string
	protectors    []interfaces.KeyProtectorReader
	encryptedFVEK *types.AESCCMEncryptedKeyDatum
	headerBlock   *types.OffsetAndSizeDatum
}

// Ensure metadataReader implements the MetadataReader interface
var _ interfaces.MetadataReader = (*metadataReader)(nil)

// NewMetadataReader creates a MetadataReader from raw bytes starting at an
// FVE metadata block offset. The slice does not need to cover the whole
// metadata region on disk, only as much as the declared sizes require;
// declared sizes beyond the slice fail with ErrTruncated.
func NewMetadataReader(data []byte) (interfaces.MetadataReader, error) {
	blockHeader, err := parseMetadataBlockHeader(data)
	if err != nil {
		return nil, err
	}

	header, err := parseMetadataHeader(data[types.MetadataBlockHeaderSize:])
	if err != nil {
		return nil, err
	}

	// The metadata size includes the 48-byte metadata header.
	entriesStart := types.MetadataBlockHeaderSize + types.MetadataHeaderSize
	entriesEnd := types.MetadataBlockHeaderSize + int(header.MetadataSize)
	if entriesEnd > len(data) {
		return nil, fmt.Errorf("%w: metadata size %d exceeds available data %d",
			ErrTruncated, header.MetadataSize, len(data)-types.MetadataBlockHeaderSize)
	}

	entries, err := parseEntries(data[entriesStart:entriesEnd])
	if err != nil {
		return nil, err
	}

	r := &metadataReader{
		blockHeader: blockHeader,
		header:      header,
		entries:     entries,
	}
	if err := r.interpretEntries(); err != nil {
		return nil, err
	}
	return r, nil
}

// parseMetadataBlockHeader decodes and validates the 64-byte FVE metadata
// block header.
func parseMetadataBlockHeader(data []byte) (*types.MetadataBlockHeader, error) {
	if len(data) < types.MetadataBlockHeaderSize {
		return nil, fmt.Errorf("%w: metadata block header needs %d bytes, got %d",
			ErrTruncated, types.MetadataBlockHeaderSize, len(data))
	}

	header := &types.MetadataBlockHeader{
		Size:                        binary.LittleEndian.Uint16(data[8:]),
		Version:                     binary.LittleEndian.Uint16(data[10:]),
		EncryptedVolumeSize:         binary.LittleEndian.Uint64(data[16:]),
		NumberOfVolumeHeaderSectors: binary.LittleEndian.Uint32(data[28:]),
		VolumeHeaderOffset:          binary.LittleEndian.Uint64(data[56:]),
	}
	copy(header.Signature[:], data[:8])
	for i := range header.MetadataOffsets {
		header.MetadataOffsets[i] = binary.LittleEndian.Uint64(data[32+8*i:])
	}

	if !bytes.Equal(header.Signature[:], []byte(types.VolumeSignature)) {
		return nil, fmt.Errorf("%w: invalid metadata block signature %q", ErrFormat, header.Signature)
	}
	if header.Version != types.MetadataBlockVersionWindows7 {
		return nil, fmt.Errorf("%w: unsupported metadata block version %d", ErrFormat, header.Version)
	}
	return header, nil
}

// parseMetadataHeader decodes and validates the 48-byte FVE metadata
// header. The duplicated size field acts as the integrity check.
func parseMetadataHeader(data []byte) (*types.MetadataHeader, error) {
	if len(data) < types.MetadataHeaderSize {
		return nil, fmt.Errorf("%w: metadata header needs %d bytes, got %d",
			ErrTruncated, types.MetadataHeaderSize, len(data))
	}

	header := &types.MetadataHeader{
		MetadataSize:     binary.LittleEndian.Uint32(data[0:]),
		Version:          binary.LittleEndian.Uint32(data[4:]),
		HeaderSize:       binary.LittleEndian.Uint32(data[8:]),
		MetadataSizeCopy: binary.LittleEndian.Uint32(data[12:]),
		NextNonceCounter: binary.LittleEndian.Uint32(data[32:]),
		EncryptionMethod: types.EncryptionMethod(binary.LittleEndian.Uint32(data[36:])),
		CreationTime:     types.Filetime(binary.LittleEndian.Uint64(data[40:])),
	}
	copy(header.VolumeIdentifier[:], data[16:32])

	if header.Version != types.MetadataFormatVersion {
		return nil, fmt.Errorf("%w: unsupported metadata version %d", ErrFormat, header.Version)
	}
	if header.HeaderSize != types.MetadataHeaderSize {
		return nil, fmt.Errorf("%w: invalid metadata header size %d", ErrFormat, header.HeaderSize)
	}
	if header.MetadataSize != header.MetadataSizeCopy {
		return nil, fmt.Errorf("%w: metadata size %d does not match its copy %d",
			ErrFormat, header.MetadataSize, header.MetadataSizeCopy)
	}
	if header.MetadataSize < types.MetadataHeaderSize {
		return nil, fmt.Errorf("%w: metadata size %d below header size", ErrFormat, header.MetadataSize)
	}
	return header, nil
}

// interpretEntries extracts the entries the engine acts on: description,
// key protectors, the wrapped FVEK and the volume header block descriptor.
func (r *metadataReader) interpretEntries() error {
	for _, entry := range r.entries {
		switch {
		case entry.EntryType == types.EntryTypeVolumeMasterKey && entry.ValueType == types.ValueTypeVolumeMasterKey:
			protector, err := newKeyProtectorReader(entry)
			if err != nil {
				return err
			}
			r.protectors = append(r.protectors, protector)

		case entry.EntryType == types.EntryTypeFullVolumeEncryptionKey && entry.ValueType == types.ValueTypeAESCCMEncryptedKey:
			datum, err := parseAESCCMEncryptedKeyDatum(entry.Data)
			if err != nil {
				return err
			}
			r.encryptedFVEK = datum

		case entry.EntryType == types.EntryTypeDescription && entry.ValueType == types.ValueTypeUnicodeString:
			r.description = decodeUTF16String(entry.Data)

		case entry.EntryType == types.EntryTypeVolumeHeaderBlock && entry.ValueType == types.ValueTypeOffsetAndSize:
			datum, err := parseOffsetAndSizeDatum(entry.Data)
			if err != nil {
				return err
			}
			r.headerBlock = datum
		}
	}

	if r.encryptedFVEK == nil {
		return fmt.Errorf("%w: missing full volume encryption key entry", ErrFormat)
	}
	return nil
}

// Version returns the metadata block format version.
func (r *metadataReader) Version() uint16 {
	return r.blockHeader.Version
}

// EncryptedVolumeSize returns the size of the encrypted volume in bytes.
func (r *metadataReader) EncryptedVolumeSize() uint64 {
	return r.blockHeader.EncryptedVolumeSize
}

// VolumeHeaderOffset returns the offset of the backed-up volume header
// sectors. The volume header block entry takes precedence over the block
// header field when present.
func (r *metadataReader) VolumeHeaderOffset() uint64 {
	if r.headerBlock != nil {
		return r.headerBlock.Offset
	}
	return r.blockHeader.VolumeHeaderOffset
}

// VolumeHeaderSize returns the virtualized region size in bytes.
func (r *metadataReader) VolumeHeaderSize() uint64 {
	if r.headerBlock != nil {
		return r.headerBlock.Size
	}
	return 0
}

// NumberOfVolumeHeaderSectors returns the number of virtualized sectors
// declared by the metadata block header.
func (r *metadataReader) NumberOfVolumeHeaderSectors() uint32 {
	return r.blockHeader.NumberOfVolumeHeaderSectors
}

// MetadataOffsets returns the offsets of the three FVE metadata block copies
// as recorded in the metadata block header.
func (r *metadataReader) MetadataOffsets() [3]uint64 {
	return r.blockHeader.MetadataOffsets
}

// VolumeIdentifier returns the volume identifier GUID.
func (r *metadataReader) VolumeIdentifier() uuid.UUID {
	return types.GUIDFromBytes(r.header.VolumeIdentifier)
}

// EncryptionMethod returns the sector encryption method.
func (r *metadataReader) EncryptionMethod() types.EncryptionMethod {
	return r.header.EncryptionMethod
}

// CreationTime returns the volume creation time.
func (r *metadataReader) CreationTime() time.Time {
	return r.header.CreationTime.Time()
}

// Description returns the volume description.
func (r *metadataReader) Description() string {
	return r.description
}

// KeyProtectors returns the parsed key protectors in on-disk order.
func (r *metadataReader) KeyProtectors() []interfaces.KeyProtectorReader {
	return r.protectors
}

// EncryptedFVEK returns the AES-CCM wrapped full volume encryption key.
func (r *metadataReader) EncryptedFVEK() *types.AESCCMEncryptedKeyDatum {
	return r.encryptedFVEK
}

// Entries returns all metadata entries.
func (r *metadataReader) Entries() []types.MetadataEntry {
	return r.entries
}

// MetadataBlockSize returns the number of bytes a caller must provide to
// NewMetadataReader for a block whose headers start the given data. It lets
// the volume layer size its second read after peeking at the headers.
func MetadataBlockSize(data []byte) (int, error) {
	if len(data) < types.MetadataBlockHeaderSize+types.MetadataHeaderSize {
		return 0, fmt.Errorf("%w: metadata headers need %d bytes, got %d",
			ErrTruncated, types.MetadataBlockHeaderSize+types.MetadataHeaderSize, len(data))
	}
	metadataSize := binary.LittleEndian.Uint32(data[types.MetadataBlockHeaderSize:])
	return types.MetadataBlockHeaderSize + int(metadataSize), nil
}
