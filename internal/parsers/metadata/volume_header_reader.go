package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-bitlocker/internal/interfaces"
	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// volumeHeaderReader implements the VolumeHeaderReader interface for the
// first sector of a BDE formatted volume.
type volumeHeaderReader struct {
	header *types.VolumeHeader
}

// Ensure volumeHeaderReader implements the VolumeHeaderReader interface
var _ interfaces.VolumeHeaderReader = (*volumeHeaderReader)(nil)

// NewVolumeHeaderReader creates a VolumeHeaderReader from the raw first
// sector of a volume.
func NewVolumeHeaderReader(data []byte) (interfaces.VolumeHeaderReader, error) {
	header, err := parseVolumeHeader(data)
	if err != nil {
		return nil, err
	}
	return &volumeHeaderReader{header: header}, nil
}

// parseVolumeHeader decodes and validates the 512-byte BDE volume header.
func parseVolumeHeader(data []byte) (*types.VolumeHeader, error) {
	if len(data) < types.VolumeHeaderSize {
		return nil, fmt.Errorf("%w: volume header needs %d bytes, got %d",
			ErrTruncated, types.VolumeHeaderSize, len(data))
	}

	signature := data[types.VolumeSignatureOffset : types.VolumeSignatureOffset+8]
	if !bytes.Equal(signature, []byte(types.VolumeSignature)) {
		return nil, fmt.Errorf("%w: unsupported volume signature %q", ErrFormat, signature)
	}

	header := &types.VolumeHeader{
		BytesPerSector:         binary.LittleEndian.Uint16(data[types.BytesPerSectorOffset:]),
		SectorsPerClusterBlock: data[types.BytesPerSectorOffset+2],
	}
	copy(header.VolumeIdentifier[:], data[types.VolumeIdentifierOffset:types.VolumeIdentifierOffset+16])
	for i := range header.MetadataOffsets {
		header.MetadataOffsets[i] = binary.LittleEndian.Uint64(data[types.MetadataOffsetsOffset+8*i:])
	}

	if header.BytesPerSector == 0 || header.BytesPerSector%16 != 0 {
		return nil, fmt.Errorf("%w: invalid bytes per sector: %d", ErrFormat, header.BytesPerSector)
	}
	for i, offset := range header.MetadataOffsets {
		if offset == 0 {
			return nil, fmt.Errorf("%w: FVE metadata block %d offset is zero", ErrFormat, i+1)
		}
	}
	return header, nil
}

// BytesPerSector returns the sector size declared by the volume header.
func (r *volumeHeaderReader) BytesPerSector() uint16 {
	return r.header.BytesPerSector
}

// VolumeIdentifier returns the volume identifier GUID.
func (r *volumeHeaderReader) VolumeIdentifier() uuid.UUID {
	return types.GUIDFromBytes(r.header.VolumeIdentifier)
}

// MetadataOffsets returns the offsets of the three FVE metadata block copies.
func (r *volumeHeaderReader) MetadataOffsets() [3]uint64 {
	return r.header.MetadataOffsets
}
