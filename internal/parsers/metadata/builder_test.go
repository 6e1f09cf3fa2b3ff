package metadata

import (
	"encoding/binary"
	"time"

	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

var testCreationTime = time.Date(2020, time.June, 15, 12, 30, 0, 0, time.UTC)

// Test fixture builders. These construct on-disk byte layouts directly so
// the readers are exercised against the wire format, not against each other.

// buildEntry encodes one metadata entry, header included.
func buildEntry(entryType types.EntryType, valueType types.ValueType, data []byte) []byte {
	entry := make([]byte, types.MetadataEntryHeaderSize+len(data))
	binary.LittleEndian.PutUint16(entry[0:], uint16(len(entry)))
	binary.LittleEndian.PutUint16(entry[2:], uint16(entryType))
	binary.LittleEndian.PutUint16(entry[4:], uint16(valueType))
	binary.LittleEndian.PutUint16(entry[6:], 1)
	copy(entry[types.MetadataEntryHeaderSize:], data)
	return entry
}

// buildKeyDatum encodes a raw key datum (value type 0x0001).
func buildKeyDatum(method types.EncryptionMethod, key []byte) []byte {
	data := make([]byte, 4+len(key))
	binary.LittleEndian.PutUint32(data[0:], uint32(method))
	copy(data[4:], key)
	return data
}

// buildStretchKeyDatum encodes a stretch key datum (value type 0x0003).
func buildStretchKeyDatum(salt [types.SaltSize]byte, properties ...[]byte) []byte {
	data := make([]byte, 4+types.SaltSize)
	binary.LittleEndian.PutUint32(data[0:], uint32(types.EncryptionMethodStretchKey))
	copy(data[4:], salt[:])
	for _, property := range properties {
		data = append(data, property...)
	}
	return data
}

// buildAESCCMDatum encodes a wrapped key datum (value type 0x0005).
func buildAESCCMDatum(nonce [types.NonceSize]byte, mac [types.MACSize]byte, ciphertext []byte) []byte {
	data := make([]byte, 0, types.NonceSize+types.MACSize+len(ciphertext))
	data = append(data, nonce[:]...)
	data = append(data, mac[:]...)
	data = append(data, ciphertext...)
	return data
}

// buildVMKDatum encodes a volume master key datum (value type 0x0008).
func buildVMKDatum(identifier [16]byte, protection types.ProtectionType, properties ...[]byte) []byte {
	data := make([]byte, 28)
	copy(data[0:], identifier[:])
	binary.LittleEndian.PutUint64(data[16:], uint64(types.NewFiletime(testCreationTime)))
	binary.LittleEndian.PutUint16(data[26:], uint16(protection))
	for _, property := range properties {
		data = append(data, property...)
	}
	return data
}

// buildExternalKeyDatum encodes an external key datum (value type 0x0009).
func buildExternalKeyDatum(identifier [16]byte, properties ...[]byte) []byte {
	data := make([]byte, 24)
	copy(data[0:], identifier[:])
	binary.LittleEndian.PutUint64(data[16:], uint64(types.NewFiletime(testCreationTime)))
	for _, property := range properties {
		data = append(data, property...)
	}
	return data
}

// buildOffsetAndSizeDatum encodes a data run datum (value type 0x000f).
func buildOffsetAndSizeDatum(offset, size uint64) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[0:], offset)
	binary.LittleEndian.PutUint64(data[8:], size)
	return data
}

// buildUTF16String encodes a string as NUL-terminated little-endian UTF-16.
func buildUTF16String(s string) []byte {
	data := make([]byte, 0, 2*len(s)+2)
	for _, r := range s {
		var unit [2]byte
		binary.LittleEndian.PutUint16(unit[:], uint16(r))
		data = append(data, unit[:]...)
	}
	return append(data, 0, 0)
}

// metadataBlockConfig parameterizes buildMetadataBlock.
type metadataBlockConfig struct {
	blockVersion        uint16
	headerVersion       uint32
	headerSize          uint32
	corruptSizeCopy     bool
	encryptedVolumeSize uint64
	volumeHeaderOffset  uint64
	volumeIdentifier    [16]byte
	encryptionMethod    types.EncryptionMethod
	entries             [][]byte
}

// buildMetadataBlock encodes a complete FVE metadata block: block header,
// metadata header and entries.
func buildMetadataBlock(cfg metadataBlockConfig) []byte {
	if cfg.blockVersion == 0 {
		cfg.blockVersion = types.MetadataBlockVersionWindows7
	}
	if cfg.headerVersion == 0 {
		cfg.headerVersion = types.MetadataFormatVersion
	}
	if cfg.headerSize == 0 {
		cfg.headerSize = types.MetadataHeaderSize
	}
	if cfg.encryptionMethod == 0 {
		cfg.encryptionMethod = types.EncryptionMethodAES128CBC
	}

	entriesSize := 0
	for _, entry := range cfg.entries {
		entriesSize += len(entry)
	}
	metadataSize := uint32(types.MetadataHeaderSize + entriesSize)

	block := make([]byte, types.MetadataBlockHeaderSize+int(metadataSize))

	// Block header.
	copy(block[0:], types.VolumeSignature)
	binary.LittleEndian.PutUint16(block[8:], uint16(metadataSize))
	binary.LittleEndian.PutUint16(block[10:], cfg.blockVersion)
	binary.LittleEndian.PutUint64(block[16:], cfg.encryptedVolumeSize)
	binary.LittleEndian.PutUint32(block[28:], 16)
	binary.LittleEndian.PutUint64(block[32:], 0x02100000)
	binary.LittleEndian.PutUint64(block[40:], 0x04100000)
	binary.LittleEndian.PutUint64(block[48:], 0x06100000)
	binary.LittleEndian.PutUint64(block[56:], cfg.volumeHeaderOffset)

	// Metadata header.
	header := block[types.MetadataBlockHeaderSize:]
	binary.LittleEndian.PutUint32(header[0:], metadataSize)
	binary.LittleEndian.PutUint32(header[4:], cfg.headerVersion)
	binary.LittleEndian.PutUint32(header[8:], cfg.headerSize)
	sizeCopy := metadataSize
	if cfg.corruptSizeCopy {
		sizeCopy++
	}
	binary.LittleEndian.PutUint32(header[12:], sizeCopy)
	copy(header[16:], cfg.volumeIdentifier[:])
	binary.LittleEndian.PutUint32(header[32:], 42)
	binary.LittleEndian.PutUint32(header[36:], uint32(cfg.encryptionMethod))
	binary.LittleEndian.PutUint64(header[40:], uint64(types.NewFiletime(testCreationTime)))

	offset := types.MetadataHeaderSize
	for _, entry := range cfg.entries {
		copy(header[offset:], entry)
		offset += len(entry)
	}
	return block
}

// buildVolumeHeader encodes a 512-byte BDE volume header.
func buildVolumeHeader(bytesPerSector uint16, identifier [16]byte, offsets [3]uint64) []byte {
	data := make([]byte, types.VolumeHeaderSize)
	copy(data[types.VolumeSignatureOffset:], types.VolumeSignature)
	binary.LittleEndian.PutUint16(data[types.BytesPerSectorOffset:], bytesPerSector)
	data[types.BytesPerSectorOffset+2] = 8
	copy(data[types.VolumeIdentifierOffset:], identifier[:])
	for i, offset := range offsets {
		binary.LittleEndian.PutUint64(data[types.MetadataOffsetsOffset+8*i:], offset)
	}
	return data
}
