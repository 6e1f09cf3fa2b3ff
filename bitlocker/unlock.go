package bitlocker

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-bitlocker/internal/crypto"
	"github.com/deploymenttheory/go-bitlocker/internal/interfaces"
	"github.com/deploymenttheory/go-bitlocker/internal/parsers/metadata"
	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// Key protector resolution. Protectors are tried in on-disk order; the
// first one the attached credentials satisfy yields the volume master key,
// which in turn unwraps the full volume encryption key.

// errNotSatisfiable marks a protector the attached credentials cannot
// address: wrong class, missing credential, or missing key material.
var errNotSatisfiable = errors.New("key protector not satisfiable")

// unlock resolves the full volume encryption key and builds the sector
// cipher. A wrong credential fails its protector's MAC check and resolution
// moves on; only an abort or a source failure stops the walk early.
func (v *Volume) unlock() error {
	for _, protector := range v.metadata.KeyProtectors() {
		vmk, err := v.resolveProtector(protector)
		if err != nil {
			if errors.Is(err, ErrAborted) || errors.Is(err, ErrIO) {
				return err
			}
			continue
		}

		fvek, err := unwrapKeyDatum(vmk, v.metadata.EncryptedFVEK())
		crypto.Zero(vmk)
		if err != nil {
			continue
		}

		cipher, err := crypto.NewSectorCipher(v.metadata.EncryptionMethod(), fvek, v.bytesPerSector)
		crypto.Zero(fvek)
		if err != nil {
			return &FormatError{Err: fmt.Errorf("building sector cipher: %w", err)}
		}
		v.cipher = cipher
		return nil
	}
	return ErrUnableToUnlock
}

// resolveProtector derives the volume master key from one protector, or
// reports why it cannot.
func (v *Volume) resolveProtector(protector interfaces.KeyProtectorReader) ([]byte, error) {
	switch protector.ProtectionType() {
	case types.ProtectionTypeClearKey:
		if protector.ClearKey() == nil || protector.EncryptedKey() == nil {
			return nil, errNotSatisfiable
		}
		return unwrapKeyDatum(protector.ClearKey().Key, protector.EncryptedKey())

	case types.ProtectionTypePassword:
		if !v.hasPassword || protector.StretchKey() == nil || protector.EncryptedKey() == nil {
			return nil, errNotSatisfiable
		}
		return v.stretchAndUnwrap(crypto.PasswordHash(v.password), protector)

	case types.ProtectionTypeRecoveryPassword:
		if !v.hasRecoveryPassword || protector.StretchKey() == nil || protector.EncryptedKey() == nil {
			return nil, errNotSatisfiable
		}
		initial, err := crypto.RecoveryPasswordHash(v.recoveryPassword)
		if err != nil {
			return nil, err
		}
		return v.stretchAndUnwrap(initial, protector)

	case types.ProtectionTypeStartupKey:
		if v.startupKey == nil || protector.EncryptedKey() == nil {
			return nil, errNotSatisfiable
		}
		reader, err := metadata.NewStartupKeyReader(v.startupKey)
		if err != nil {
			return nil, mapParseError(err, 0)
		}
		// The external key addresses one specific protector.
		if reader.Identifier() != protector.Identifier() {
			return nil, errNotSatisfiable
		}
		return unwrapKeyDatum(reader.Key(), protector.EncryptedKey())
	}
	return nil, errNotSatisfiable
}

// stretchAndUnwrap runs the salted SHA-256 stretch over an initial
// credential hash and unwraps the protector's volume master key with the
// result.
func (v *Volume) stretchAndUnwrap(initialHash [32]byte, protector interfaces.KeyProtectorReader) ([]byte, error) {
	key, err := crypto.StretchKey(initialHash, protector.StretchKey().Salt, types.DefaultStretchIterations, &v.abort)
	crypto.Zero(initialHash[:])
	if err != nil {
		if errors.Is(err, crypto.ErrAborted) {
			return nil, ErrAborted
		}
		return nil, err
	}
	vmk, err := unwrapKeyDatum(key[:], protector.EncryptedKey())
	crypto.Zero(key[:])
	return vmk, err
}

// unwrapKeyDatum decrypts an AES-CCM wrapped key and validates that the
// plaintext is a well-formed key datum. The validation is what detects a
// wrong unwrap key beyond the MAC check.
func unwrapKeyDatum(key []byte, datum *types.AESCCMEncryptedKeyDatum) ([]byte, error) {
	if datum == nil {
		return nil, errNotSatisfiable
	}
	plaintext, err := crypto.UnwrapAESCCM(key, datum.Nonce, datum.MAC, datum.EncryptedData)
	if err != nil {
		return nil, err
	}
	keyDatum, err := metadata.ParseUnwrappedKey(plaintext)
	if err != nil {
		crypto.Zero(plaintext)
		return nil, err
	}
	out := append([]byte(nil), keyDatum.Key...)
	crypto.Zero(plaintext)
	return out, nil
}
