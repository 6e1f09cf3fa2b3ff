package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-bitlocker/internal/interfaces"
)

const (
	ntfsVolumeHeaderSize = 512
	ntfsSignature        = "NTFS    "
)

// ntfsVolumeHeaderReader implements the NTFSVolumeHeaderReader interface
// for the decrypted boot sector of an unlocked volume.
type ntfsVolumeHeaderReader struct {
	bytesPerSector uint16
	totalSectors   uint64
}

// Ensure ntfsVolumeHeaderReader implements the NTFSVolumeHeaderReader interface
var _ interfaces.NTFSVolumeHeaderReader = (*ntfsVolumeHeaderReader)(nil)

// NewNTFSVolumeHeaderReader creates an NTFSVolumeHeaderReader from the raw
// first sector of an unlocked volume.
func NewNTFSVolumeHeaderReader(data []byte) (interfaces.NTFSVolumeHeaderReader, error) {
	if len(data) < ntfsVolumeHeaderSize {
		return nil, fmt.Errorf("%w: NTFS boot sector needs %d bytes, got %d",
			ErrTruncated, ntfsVolumeHeaderSize, len(data))
	}
	if !bytes.Equal(data[3:11], []byte(ntfsSignature)) {
		return nil, fmt.Errorf("%w: invalid NTFS signature %q", ErrFormat, data[3:11])
	}

	r := &ntfsVolumeHeaderReader{
		bytesPerSector: binary.LittleEndian.Uint16(data[11:]),
		totalSectors:   binary.LittleEndian.Uint64(data[40:]),
	}
	if r.bytesPerSector == 0 {
		return nil, fmt.Errorf("%w: invalid bytes per sector: 0", ErrFormat)
	}
	return r, nil
}

// BytesPerSector returns the sector size declared by the boot sector.
func (r *ntfsVolumeHeaderReader) BytesPerSector() uint16 {
	return r.bytesPerSector
}

// VolumeSize returns the volume size in bytes. The total sectors field does
// not count the backup boot sector, which NTFS places past the end of the
// volume.
func (r *ntfsVolumeHeaderReader) VolumeSize() uint64 {
	return (r.totalSectors + 1) * uint64(r.bytesPerSector)
}
