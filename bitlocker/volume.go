package bitlocker

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-bitlocker/internal/crypto"
	"github.com/deploymenttheory/go-bitlocker/internal/interfaces"
	"github.com/deploymenttheory/go-bitlocker/internal/parsers/metadata"
	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// AccessMode selects how a volume is opened.
type AccessMode int

const (
	// AccessModeReadOnly opens the volume for reading. This is the only
	// supported mode.
	AccessModeReadOnly AccessMode = iota

	// AccessModeReadWrite is defined for API completeness; opening with it
	// fails with ErrUnsupportedMode.
	AccessModeReadWrite
)

// Volume is a handle on a BDE volume image. A zero-credential handle is
// created with NewVolume, credentials are attached with the Set methods,
// and Open parses the on-disk metadata and attempts to unlock.
//
// A Volume is not safe for concurrent use; the caller serializes access.
// SignalAbort is the one exception and may be called from any goroutine.
type Volume struct {
	source DataSource
	file   *FileDataSource

	header     interfaces.VolumeHeaderReader
	metadata   interfaces.MetadataReader
	cipher     *crypto.SectorCipher
	protectors []KeyProtector

	bytesPerSector uint32
	size           int64
	offset         int64
	locked         bool

	// Virtualized region: logical reads in [0, volumeHeaderSize) are served
	// from the backup sectors at volumeHeaderOffset.
	volumeHeaderSize   uint64
	volumeHeaderOffset uint64

	password            string
	hasPassword         bool
	recoveryPassword    string
	hasRecoveryPassword bool
	startupKey          []byte

	abort atomic.Bool
}

// NewVolume creates a closed volume handle.
func NewVolume() *Volume {
	return &Volume{}
}

// SetPassword attaches a user password credential. Takes effect at the next
// Open.
func (v *Volume) SetPassword(password string) error {
	v.password = password
	v.hasPassword = true
	return nil
}

// SetRecoveryPassword attaches a recovery password credential in the
// dash-separated form. The form is validated eagerly; a malformed password
// fails here rather than at Open.
func (v *Volume) SetRecoveryPassword(recoveryPassword string) error {
	if _, err := crypto.ParseRecoveryPassword(recoveryPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	v.recoveryPassword = recoveryPassword
	v.hasRecoveryPassword = true
	return nil
}

// SetStartupKey attaches the raw contents of a BEK startup key file.
func (v *Volume) SetStartupKey(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty startup key", ErrInvalidArgument)
	}
	v.startupKey = append([]byte(nil), data...)
	return nil
}

// ReadStartupKey reads a BEK startup key file from disk and attaches it.
func (v *Volume) ReadStartupKey(path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return v.SetStartupKey(data)
}

// Open opens the volume image at path read-only, parses its metadata and
// attempts to unlock it with the attached credentials. When no credential
// satisfies any key protector the volume stays open but locked.
func (v *Volume) Open(path string, mode AccessMode) error {
	if v.source != nil {
		return ErrAlreadyOpen
	}
	if mode != AccessModeReadOnly {
		return ErrUnsupportedMode
	}
	file, err := NewFileDataSource(path)
	if err != nil {
		return err
	}
	if err := v.openSource(file); err != nil {
		file.Close()
		return err
	}
	v.file = file
	return nil
}

// OpenDataSource opens a volume backed by an arbitrary random-access source.
// The caller retains ownership of the source; Close does not close it.
func (v *Volume) OpenDataSource(source DataSource, mode AccessMode) error {
	if v.source != nil {
		return ErrAlreadyOpen
	}
	if mode != AccessModeReadOnly {
		return ErrUnsupportedMode
	}
	if source == nil {
		return fmt.Errorf("%w: nil data source", ErrInvalidArgument)
	}
	return v.openSource(source)
}

// OpenDataSourceAtRange opens a volume occupying a window of a larger
// source, such as a partition inside a whole-disk image.
func (v *Volume) OpenDataSourceAtRange(source DataSource, mode AccessMode, offset, size int64) error {
	if v.source != nil {
		return ErrAlreadyOpen
	}
	if mode != AccessModeReadOnly {
		return ErrUnsupportedMode
	}
	if source == nil {
		return fmt.Errorf("%w: nil data source", ErrInvalidArgument)
	}
	ranged, err := newRangeSource(source, offset, size)
	if err != nil {
		return err
	}
	return v.openSource(ranged)
}

// openSource parses the volume and metadata structures, records the derived
// geometry and attempts the unlock. The handle is committed even when the
// unlock fails so the caller can inspect a locked volume.
func (v *Volume) openSource(source DataSource) error {
	header, err := readVolumeHeader(source)
	if err != nil {
		v.abort.Store(false)
		return err
	}
	meta, err := readMetadata(source, header)
	if err != nil {
		v.abort.Store(false)
		return err
	}

	v.source = source
	v.header = header
	v.metadata = meta
	v.bytesPerSector = uint32(header.BytesPerSector())
	v.volumeHeaderOffset = meta.VolumeHeaderOffset()
	v.volumeHeaderSize = meta.VolumeHeaderSize()
	if v.volumeHeaderSize == 0 {
		v.volumeHeaderSize = uint64(meta.NumberOfVolumeHeaderSectors()) * uint64(v.bytesPerSector)
	}
	v.size = int64(meta.EncryptedVolumeSize())
	v.offset = 0
	v.locked = true

	for _, protector := range meta.KeyProtectors() {
		v.protectors = append(v.protectors, KeyProtector{
			Identifier:       protector.Identifier(),
			Type:             KeyProtectorType(protector.ProtectionType()),
			ModificationTime: protector.ModificationTime(),
		})
	}

	switch err := v.unlock(); {
	case err == nil:
		v.locked = false
		if v.size == 0 {
			v.size = v.sizeFromNTFSHeader()
		}
	case errors.Is(err, ErrUnableToUnlock):
		// Stay open but locked.
	default:
		v.reset()
		return err
	}
	return nil
}

// readVolumeHeader reads and parses the first sector of the source.
func readVolumeHeader(source DataSource) (interfaces.VolumeHeaderReader, error) {
	buf := make([]byte, types.VolumeHeaderSize)
	if _, err := source.ReadAt(buf, 0); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &TruncatedInputError{Offset: 0, Err: err}
		}
		return nil, &IOError{Op: "read volume header", Err: err}
	}
	header, err := metadata.NewVolumeHeaderReader(buf)
	if err != nil {
		return nil, mapParseError(err, 0)
	}
	return header, nil
}

// readMetadata parses the first of the three FVE metadata block copies that
// is intact. The offsets recorded inside each block must match the volume
// header; a mismatch disqualifies the copy.
func readMetadata(source DataSource, header interfaces.VolumeHeaderReader) (interfaces.MetadataReader, error) {
	offsets := header.MetadataOffsets()

	var lastErr error
	for _, offset := range offsets {
		reader, err := readMetadataBlock(source, int64(offset))
		if err != nil {
			lastErr = err
			continue
		}
		if reader.MetadataOffsets() != offsets {
			lastErr = &FormatError{
				Offset: int64(offset),
				Err:    fmt.Errorf("metadata block offsets %#x do not match volume header %#x", reader.MetadataOffsets(), offsets),
			}
			continue
		}
		return reader, nil
	}
	return nil, lastErr
}

// readMetadataBlock reads one metadata block copy: a peek at the fixed
// headers sizes the full read.
func readMetadataBlock(source DataSource, offset int64) (interfaces.MetadataReader, error) {
	peek := make([]byte, types.MetadataBlockHeaderSize+types.MetadataHeaderSize)
	if _, err := source.ReadAt(peek, offset); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &TruncatedInputError{Offset: offset, Err: err}
		}
		return nil, &IOError{Op: "read metadata block", Err: err}
	}
	blockSize, err := metadata.MetadataBlockSize(peek)
	if err != nil {
		return nil, mapParseError(err, offset)
	}

	buf := make([]byte, blockSize)
	if _, err := source.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &TruncatedInputError{Offset: offset, Err: err}
		}
		return nil, &IOError{Op: "read metadata block", Err: err}
	}
	reader, err := metadata.NewMetadataReader(buf)
	if err != nil {
		return nil, mapParseError(err, offset)
	}
	return reader, nil
}

// mapParseError translates parser-level error kinds into the public
// taxonomy.
func mapParseError(err error, offset int64) error {
	switch {
	case errors.Is(err, metadata.ErrTruncated):
		return &TruncatedInputError{Offset: offset, Err: err}
	case errors.Is(err, metadata.ErrFormat):
		return &FormatError{Offset: offset, Err: err}
	}
	return err
}

// sizeFromNTFSHeader derives the logical volume size from the decrypted
// NTFS boot sector. Used when the FVE metadata reports a zero size, as
// Vista-era volumes do. Falls back to the source size.
func (v *Volume) sizeFromNTFSHeader() int64 {
	sector := make([]byte, v.bytesPerSector)
	if err := v.readSector(sector, 0); err != nil {
		return v.source.Size()
	}
	reader, err := metadata.NewNTFSVolumeHeaderReader(sector)
	if err != nil {
		return v.source.Size()
	}
	size := int64(reader.VolumeSize())
	if size <= 0 || size > v.source.Size() {
		return v.source.Size()
	}
	return size
}

// Close releases the handle: owned files are closed, key material dropped,
// cursor and abort flag reset. The handle can be reopened; everything is
// reparsed.
func (v *Volume) Close() error {
	if v.source == nil {
		return ErrNotOpen
	}
	var err error
	if v.file != nil {
		if cerr := v.file.Close(); cerr != nil {
			err = &IOError{Op: "close", Err: cerr}
		}
		v.file = nil
	}
	v.reset()
	return err
}

func (v *Volume) reset() {
	v.source = nil
	v.header = nil
	v.metadata = nil
	v.cipher = nil
	v.protectors = nil
	v.bytesPerSector = 0
	v.size = 0
	v.offset = 0
	v.locked = false
	v.volumeHeaderSize = 0
	v.volumeHeaderOffset = 0
	v.abort.Store(false)
}

// IsLocked reports whether the open volume's keys could not be resolved.
func (v *Volume) IsLocked() (bool, error) {
	if v.source == nil {
		return false, ErrNotOpen
	}
	return v.locked, nil
}

// SignalAbort requests that in-progress long-running work on this handle
// stop with ErrAborted. Safe to call from any goroutine. The flag persists
// until the handle is closed.
func (v *Volume) SignalAbort() {
	v.abort.Store(true)
}

// Seek sets the read cursor like io.Seeker. Positions beyond the end of the
// volume are legal; a negative result is rejected with ErrInvalidArgument.
func (v *Volume) Seek(offset int64, whence int) (int64, error) {
	if v.source == nil {
		return 0, ErrNotOpen
	}
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = v.offset
	case io.SeekEnd:
		base = v.size
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrInvalidArgument, whence)
	}
	position := base + offset
	if position < 0 {
		return 0, fmt.Errorf("%w: negative seek position %d", ErrInvalidArgument, position)
	}
	v.offset = position
	return position, nil
}

// Offset returns the current read cursor.
func (v *Volume) Offset() (int64, error) {
	if v.source == nil {
		return 0, ErrNotOpen
	}
	return v.offset, nil
}

// Size returns the logical size of the decrypted volume in bytes. Valid in
// any open state.
func (v *Volume) Size() (int64, error) {
	if v.source == nil {
		return 0, ErrNotOpen
	}
	return v.size, nil
}

// ReadBuffer reads up to size bytes of decrypted data at the cursor and
// advances it by the bytes returned. Reads at or past the end of the volume
// return an empty slice; reads crossing it are truncated.
func (v *Volume) ReadBuffer(size int) ([]byte, error) {
	if v.source == nil {
		return nil, ErrNotOpen
	}
	if v.locked {
		return nil, ErrLocked
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative read size %d", ErrInvalidArgument, size)
	}
	data, err := v.readAt(v.offset, size)
	if err != nil {
		return nil, err
	}
	v.offset += int64(len(data))
	return data, nil
}

// ReadBufferAtOffset seeks to offset and reads up to size bytes. The cursor
// ends up after the bytes returned.
func (v *Volume) ReadBufferAtOffset(size int, offset int64) ([]byte, error) {
	if v.source == nil {
		return nil, ErrNotOpen
	}
	if v.locked {
		return nil, ErrLocked
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative read offset %d", ErrInvalidArgument, offset)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative read size %d", ErrInvalidArgument, size)
	}
	data, err := v.readAt(offset, size)
	if err != nil {
		return nil, err
	}
	v.offset = offset + int64(len(data))
	return data, nil
}

// ReadToEnd reads all decrypted data from the cursor to the end of the
// volume.
func (v *Volume) ReadToEnd() ([]byte, error) {
	if v.source == nil {
		return nil, ErrNotOpen
	}
	if v.locked {
		return nil, ErrLocked
	}
	remaining := v.size - v.offset
	if remaining < 0 {
		remaining = 0
	}
	data, err := v.readAt(v.offset, int(remaining))
	if err != nil {
		return nil, err
	}
	v.offset += int64(len(data))
	return data, nil
}

// Read implements io.Reader over the decrypted volume contents.
func (v *Volume) Read(p []byte) (int, error) {
	data, err := v.ReadBuffer(len(p))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

// readAt decrypts and returns up to size bytes at the logical offset. The
// abort flag is polled once per sector. No plaintext is retained across
// calls.
func (v *Volume) readAt(offset int64, size int) ([]byte, error) {
	if offset >= v.size || size == 0 {
		return []byte{}, nil
	}
	if remaining := v.size - offset; int64(size) > remaining {
		size = int(remaining)
	}

	buf := make([]byte, size)
	sector := make([]byte, v.bytesPerSector)
	bps := int64(v.bytesPerSector)

	n := 0
	for n < size {
		if v.abort.Load() {
			return nil, ErrAborted
		}
		position := offset + int64(n)
		sectorStart := position - position%bps
		if err := v.readSector(sector, sectorStart); err != nil {
			return nil, err
		}
		n += copy(buf[n:], sector[position-sectorStart:])
	}
	return buf, nil
}

// readSector reads and decrypts one sector at the logical offset. Sectors
// inside the virtualized region are fetched from the backup location; the
// cipher always sees the physical offset.
func (v *Volume) readSector(sector []byte, logicalOffset int64) error {
	physical := uint64(logicalOffset)
	if physical < v.volumeHeaderSize {
		physical += v.volumeHeaderOffset
	}

	n, err := v.source.ReadAt(sector, int64(physical))
	if err != nil && !errors.Is(err, io.EOF) {
		return &IOError{Op: "read sector", Err: err}
	}
	if n < len(sector) {
		return &TruncatedInputError{Offset: int64(physical), Err: io.ErrUnexpectedEOF}
	}
	if err := v.cipher.DecryptSector(sector, physical); err != nil {
		return &FormatError{Offset: int64(physical), Err: err}
	}
	return nil
}

// EncryptionMethod returns the sector encryption method. Valid in any open
// state.
func (v *Volume) EncryptionMethod() (EncryptionMethod, error) {
	if v.source == nil {
		return EncryptionMethodNone, ErrNotOpen
	}
	return EncryptionMethod(v.metadata.EncryptionMethod()), nil
}

// CreationTime returns the volume creation time recorded in the metadata.
func (v *Volume) CreationTime() (time.Time, error) {
	if v.source == nil {
		return time.Time{}, ErrNotOpen
	}
	return v.metadata.CreationTime(), nil
}

// Description returns the volume description, or the empty string when the
// metadata carries none.
func (v *Volume) Description() (string, error) {
	if v.source == nil {
		return "", ErrNotOpen
	}
	return v.metadata.Description(), nil
}

// VolumeIdentifier returns the volume identifier GUID.
func (v *Volume) VolumeIdentifier() (uuid.UUID, error) {
	if v.source == nil {
		return uuid.UUID{}, ErrNotOpen
	}
	return v.metadata.VolumeIdentifier(), nil
}

// NumberOfKeyProtectors returns the number of key protectors.
func (v *Volume) NumberOfKeyProtectors() (int, error) {
	if v.source == nil {
		return 0, ErrNotOpen
	}
	return len(v.protectors), nil
}

// KeyProtector returns the descriptor of the key protector at index, in
// on-disk order.
func (v *Volume) KeyProtector(index int) (KeyProtector, error) {
	if v.source == nil {
		return KeyProtector{}, ErrNotOpen
	}
	if index < 0 || index >= len(v.protectors) {
		return KeyProtector{}, fmt.Errorf("%w: key protector index %d out of range [0, %d)",
			ErrInvalidArgument, index, len(v.protectors))
	}
	return v.protectors[index], nil
}
