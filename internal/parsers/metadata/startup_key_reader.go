package metadata

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-bitlocker/internal/interfaces"
	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// startupKeyReader implements the StartupKeyReader interface for a BEK
// startup key file.
type startupKeyReader struct {
	identifier       [16]byte
	modificationTime types.Filetime
	key              []byte
}

// Ensure startupKeyReader implements the StartupKeyReader interface
var _ interfaces.StartupKeyReader = (*startupKeyReader)(nil)

// NewStartupKeyReader creates a StartupKeyReader from the raw contents of a
// BEK file. A BEK file is a bare FVE metadata header followed by metadata
// entries, one of which carries the external key.
func NewStartupKeyReader(data []byte) (interfaces.StartupKeyReader, error) {
	header, err := parseMetadataHeader(data)
	if err != nil {
		return nil, err
	}
	if int(header.MetadataSize) > len(data) {
		return nil, fmt.Errorf("%w: startup key file size %d below declared metadata size %d",
			ErrTruncated, len(data), header.MetadataSize)
	}

	entries, err := parseEntries(data[types.MetadataHeaderSize:header.MetadataSize])
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.ValueType != types.ValueTypeExternalKey {
			continue
		}
		datum, err := parseExternalKeyDatum(entry.Data)
		if err != nil {
			return nil, err
		}
		for _, property := range datum.Properties {
			if property.ValueType != types.ValueTypeKey {
				continue
			}
			keyDatum, err := parseKeyDatum(property.Data)
			if err != nil {
				return nil, err
			}
			return &startupKeyReader{
				identifier:       datum.Identifier,
				modificationTime: datum.ModificationTime,
				key:              keyDatum.Key,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: startup key file carries no external key", ErrFormat)
}

// Identifier returns the external key GUID.
func (r *startupKeyReader) Identifier() uuid.UUID {
	return types.GUIDFromBytes(r.identifier)
}

// ModificationTime returns the time the key was created.
func (r *startupKeyReader) ModificationTime() time.Time {
	return r.modificationTime.Time()
}

// Key returns the raw external key bytes.
func (r *startupKeyReader) Key() []byte {
	return r.key
}
