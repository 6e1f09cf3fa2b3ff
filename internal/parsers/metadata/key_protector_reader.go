package metadata

import (
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-bitlocker/internal/interfaces"
	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// keyProtectorReader implements the KeyProtectorReader interface for one
// VMK entry.
type keyProtectorReader struct {
	datum *types.VolumeMasterKeyDatum

	stretchKey   *types.StretchKeyDatum
	encryptedKey *types.AESCCMEncryptedKeyDatum
	clearKey     *types.KeyDatum
}

// Ensure keyProtectorReader implements the KeyProtectorReader interface
var _ interfaces.KeyProtectorReader = (*keyProtectorReader)(nil)

// newKeyProtectorReader creates a KeyProtectorReader from a VMK metadata
// entry. The property entries nested in the datum determine which key
// material the protector carries.
func newKeyProtectorReader(entry types.MetadataEntry) (interfaces.KeyProtectorReader, error) {
	datum, err := parseVolumeMasterKeyDatum(entry.Data)
	if err != nil {
		return nil, err
	}

	r := &keyProtectorReader{datum: datum}
	for _, property := range datum.Properties {
		switch property.ValueType {
		case types.ValueTypeStretchKey:
			stretchKey, err := parseStretchKeyDatum(property.Data)
			if err != nil {
				return nil, err
			}
			r.stretchKey = stretchKey

		case types.ValueTypeAESCCMEncryptedKey:
			encryptedKey, err := parseAESCCMEncryptedKeyDatum(property.Data)
			if err != nil {
				return nil, err
			}
			r.encryptedKey = encryptedKey

		case types.ValueTypeKey:
			clearKey, err := parseKeyDatum(property.Data)
			if err != nil {
				return nil, err
			}
			r.clearKey = clearKey
		}
	}
	return r, nil
}

// Identifier returns the key protector GUID.
func (r *keyProtectorReader) Identifier() uuid.UUID {
	return types.GUIDFromBytes(r.datum.Identifier)
}

// ProtectionType returns the protection mechanism of this protector.
func (r *keyProtectorReader) ProtectionType() types.ProtectionType {
	return r.datum.ProtectionType
}

// ModificationTime returns the time the protector was last modified.
func (r *keyProtectorReader) ModificationTime() time.Time {
	return r.datum.ModificationTime.Time()
}

// StretchKey returns the stretch key datum, or nil when the protector
// carries none.
func (r *keyProtectorReader) StretchKey() *types.StretchKeyDatum {
	return r.stretchKey
}

// EncryptedKey returns the AES-CCM wrapped volume master key, or nil when
// the protector carries none.
func (r *keyProtectorReader) EncryptedKey() *types.AESCCMEncryptedKeyDatum {
	return r.encryptedKey
}

// ClearKey returns the unprotected key datum of a clear-key protector, or
// nil for every other protection type.
func (r *keyProtectorReader) ClearKey() *types.KeyDatum {
	return r.clearKey
}
