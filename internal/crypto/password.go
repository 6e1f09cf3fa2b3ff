package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Credential hashing. Passwords are hashed as UTF-16LE, twice; recovery
// passwords are reduced to their 16-byte binary form first.

// ErrInvalidRecoveryPassword is returned when a recovery password string
// does not have the 8 groups of digits, each divisible by 11, that the
// format requires.
var ErrInvalidRecoveryPassword = errors.New("invalid recovery password")

// PasswordHash computes the initial stretch hash of a user password:
// SHA-256 applied twice to the UTF-16LE encoding without terminator.
func PasswordHash(password string) [32]byte {
	encoded := utf16.Encode([]rune(password))
	buf := make([]byte, 2*len(encoded))
	for i, c := range encoded {
		binary.LittleEndian.PutUint16(buf[2*i:], c)
	}
	first := sha256.Sum256(buf)
	Zero(buf)
	return sha256.Sum256(first[:])
}

// ParseRecoveryPassword converts the dash-separated recovery password form
// to its 16-byte binary representation. Each of the 8 groups must be a
// number below 65536*11 that is divisible by 11; the quotients are stored
// as little-endian 16-bit values.
func ParseRecoveryPassword(recoveryPassword string) ([16]byte, error) {
	var key [16]byte

	groups := strings.Split(strings.TrimSpace(recoveryPassword), "-")
	if len(groups) != 8 {
		return key, ErrInvalidRecoveryPassword
	}
	for i, group := range groups {
		value, err := strconv.ParseUint(group, 10, 32)
		if err != nil {
			return key, ErrInvalidRecoveryPassword
		}
		if value%11 != 0 || value/11 > 0xffff {
			return key, ErrInvalidRecoveryPassword
		}
		binary.LittleEndian.PutUint16(key[2*i:], uint16(value/11))
	}
	return key, nil
}

// RecoveryPasswordHash computes the initial stretch hash of a recovery
// password: a single SHA-256 of its 16-byte binary form.
func RecoveryPasswordHash(recoveryPassword string) ([32]byte, error) {
	key, err := ParseRecoveryPassword(recoveryPassword)
	if err != nil {
		return [32]byte{}, err
	}
	hash := sha256.Sum256(key[:])
	Zero(key[:])
	return hash, nil
}

// FormatRecoveryPassword renders a 16-byte binary recovery key in the
// dash-separated form Windows displays. Counterpart of
// ParseRecoveryPassword; used by tooling and tests.
func FormatRecoveryPassword(key [16]byte) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = strconv.FormatUint(uint64(binary.LittleEndian.Uint16(key[2*i:]))*11, 10)
	}
	return strings.Join(groups, "-")
}
