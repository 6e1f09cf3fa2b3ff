package metadata

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// Datum decoding. Every metadata entry value is a datum; several datum
// kinds nest further entries in their trailing bytes.

// parseEntries decodes a sequence of metadata entries. Entry sizes include
// the 8-byte entry header; a declared size that is below the header size or
// that overruns the remaining space fails the parse.
func parseEntries(data []byte) ([]types.MetadataEntry, error) {
	var entries []types.MetadataEntry

	for offset := 0; offset < len(data); {
		remaining := len(data) - offset
		if remaining < types.MetadataEntryHeaderSize {
			return nil, fmt.Errorf("%w: %d trailing bytes are too small for an entry header",
				ErrFormat, remaining)
		}
		entrySize := int(binary.LittleEndian.Uint16(data[offset:]))
		if entrySize < types.MetadataEntryHeaderSize {
			return nil, fmt.Errorf("%w: entry size %d below header size", ErrFormat, entrySize)
		}
		if entrySize > remaining {
			return nil, fmt.Errorf("%w: entry size %d exceeds remaining metadata space %d",
				ErrFormat, entrySize, remaining)
		}

		entry := types.MetadataEntry{
			EntryType: types.EntryType(binary.LittleEndian.Uint16(data[offset+2:])),
			ValueType: types.ValueType(binary.LittleEndian.Uint16(data[offset+4:])),
			Version:   binary.LittleEndian.Uint16(data[offset+6:]),
			Data:      data[offset+types.MetadataEntryHeaderSize : offset+entrySize],
		}
		entries = append(entries, entry)
		offset += entrySize
	}
	return entries, nil
}

// parseVolumeMasterKeyDatum decodes a VMK datum (value type 0x0008).
func parseVolumeMasterKeyDatum(data []byte) (*types.VolumeMasterKeyDatum, error) {
	if len(data) < 28 {
		return nil, fmt.Errorf("%w: volume master key datum needs 28 bytes, got %d", ErrFormat, len(data))
	}
	datum := &types.VolumeMasterKeyDatum{
		ModificationTime: types.Filetime(binary.LittleEndian.Uint64(data[16:])),
		ProtectionType:   types.ProtectionType(binary.LittleEndian.Uint16(data[26:])),
	}
	copy(datum.Identifier[:], data[:16])

	properties, err := parseEntries(data[28:])
	if err != nil {
		return nil, err
	}
	datum.Properties = properties
	return datum, nil
}

// parseStretchKeyDatum decodes a stretch key datum (value type 0x0003).
func parseStretchKeyDatum(data []byte) (*types.StretchKeyDatum, error) {
	if len(data) < 4+types.SaltSize {
		return nil, fmt.Errorf("%w: stretch key datum needs %d bytes, got %d",
			ErrFormat, 4+types.SaltSize, len(data))
	}
	datum := &types.StretchKeyDatum{
		EncryptionMethod: types.EncryptionMethod(binary.LittleEndian.Uint32(data[:4])),
	}
	copy(datum.Salt[:], data[4:4+types.SaltSize])

	properties, err := parseEntries(data[4+types.SaltSize:])
	if err != nil {
		return nil, err
	}
	datum.Properties = properties
	return datum, nil
}

// parseAESCCMEncryptedKeyDatum decodes a wrapped key datum (value type
// 0x0005).
func parseAESCCMEncryptedKeyDatum(data []byte) (*types.AESCCMEncryptedKeyDatum, error) {
	if len(data) < types.NonceSize+types.MACSize {
		return nil, fmt.Errorf("%w: AES-CCM encrypted key datum needs %d bytes, got %d",
			ErrFormat, types.NonceSize+types.MACSize, len(data))
	}
	datum := &types.AESCCMEncryptedKeyDatum{
		EncryptedData: data[types.NonceSize+types.MACSize:],
	}
	copy(datum.Nonce[:], data[:types.NonceSize])
	copy(datum.MAC[:], data[types.NonceSize:types.NonceSize+types.MACSize])
	return datum, nil
}

// parseKeyDatum decodes a raw key datum (value type 0x0001).
func parseKeyDatum(data []byte) (*types.KeyDatum, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: key datum needs 4 bytes, got %d", ErrFormat, len(data))
	}
	return &types.KeyDatum{
		EncryptionMethod: types.EncryptionMethod(binary.LittleEndian.Uint32(data[:4])),
		Key:              data[4:],
	}, nil
}

// parseUseKeyDatum decodes a use key datum (value type 0x0004).
func parseUseKeyDatum(data []byte) (*types.UseKeyDatum, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: use key datum needs 4 bytes, got %d", ErrFormat, len(data))
	}
	properties, err := parseEntries(data[4:])
	if err != nil {
		return nil, err
	}
	return &types.UseKeyDatum{
		EncryptionMethod: types.EncryptionMethod(binary.LittleEndian.Uint32(data[:4])),
		Properties:       properties,
	}, nil
}

// parseExternalKeyDatum decodes an external key datum (value type 0x0009).
func parseExternalKeyDatum(data []byte) (*types.ExternalKeyDatum, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("%w: external key datum needs 24 bytes, got %d", ErrFormat, len(data))
	}
	datum := &types.ExternalKeyDatum{
		ModificationTime: types.Filetime(binary.LittleEndian.Uint64(data[16:])),
	}
	copy(datum.Identifier[:], data[:16])

	properties, err := parseEntries(data[24:])
	if err != nil {
		return nil, err
	}
	datum.Properties = properties
	return datum, nil
}

// parseOffsetAndSizeDatum decodes a data run datum (value type 0x000f).
func parseOffsetAndSizeDatum(data []byte) (*types.OffsetAndSizeDatum, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: offset and size datum needs 16 bytes, got %d", ErrFormat, len(data))
	}
	return &types.OffsetAndSizeDatum{
		Offset: binary.LittleEndian.Uint64(data[:8]),
		Size:   binary.LittleEndian.Uint64(data[8:]),
	}, nil
}

// ParseUnwrappedKey validates and decodes the plaintext of an AES-CCM
// unwrapped key blob. The plaintext is a single metadata entry of value type
// key; anything else means the unwrap key was wrong or the data corrupt.
func ParseUnwrappedKey(data []byte) (*types.KeyDatum, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return nil, err
	}
	if len(entries) != 1 || entries[0].ValueType != types.ValueTypeKey {
		return nil, fmt.Errorf("%w: unwrapped data is not a key datum", ErrFormat)
	}
	return parseKeyDatum(entries[0].Data)
}

// decodeUTF16String decodes little-endian UTF-16 bytes, dropping a trailing
// NUL terminator when present.
func decodeUTF16String(data []byte) string {
	codeUnits := make([]uint16, len(data)/2)
	for i := range codeUnits {
		codeUnits[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	for len(codeUnits) > 0 && codeUnits[len(codeUnits)-1] == 0 {
		codeUnits = codeUnits[:len(codeUnits)-1]
	}
	return string(utf16.Decode(codeUnits))
}
