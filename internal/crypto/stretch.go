package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync/atomic"
)

// FVE key stretch: a salted SHA-256 chain that turns a credential hash into
// a 32-byte key-unwrap key. The iteration count and salt come from the
// stretch key datum of the protector being unlocked.

// ErrAborted is returned when the abort flag is observed mid-stretch.
var ErrAborted = errors.New("operation aborted")

// abortPollInterval is the number of stretch iterations between abort flag
// polls.
const abortPollInterval = 4096

// stretchBlockSize is the size of the hashed chain block:
// last hash (32) + initial hash (32) + salt (16) + iteration counter (8).
const stretchBlockSize = 88

// StretchKey derives a 32-byte unwrap key from an initial credential hash
// and a salt by chaining SHA-256 for the given number of iterations.
// The abort flag, when non-nil, is polled at a fixed interval; if set the
// stretch stops with ErrAborted and all intermediate state is scrubbed.
func StretchKey(initialHash [32]byte, salt [16]byte, iterations uint64, abort *atomic.Bool) ([32]byte, error) {
	var block [stretchBlockSize]byte
	copy(block[32:64], initialHash[:])
	copy(block[64:80], salt[:])

	for i := uint64(0); i < iterations; i++ {
		if abort != nil && i%abortPollInterval == 0 && abort.Load() {
			Zero(block[:])
			return [32]byte{}, ErrAborted
		}
		binary.LittleEndian.PutUint64(block[80:], i)
		sum := sha256.Sum256(block[:])
		copy(block[:32], sum[:])
	}

	var key [32]byte
	copy(key[:], block[:32])
	Zero(block[:])
	return key, nil
}
