package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
)

// AES-CCM as used by the FVE key protection: 12-byte nonce, 16-byte MAC,
// no additional authenticated data. The standard library and x/crypto do
// not provide CCM, so the mode is composed here from AES-CTR and CBC-MAC.

const (
	ccmNonceSize = 12
	ccmMACSize   = 16
)

// ErrAuthentication is returned when the CCM message authentication code
// does not verify. For wrapped keys this means the unwrap key is wrong or
// the data is corrupt.
var ErrAuthentication = errors.New("message authentication code mismatch")

// ccmLengthField is 15 - nonce size: the number of bytes encoding the
// message length in the initial block.
const ccmLengthField = 15 - ccmNonceSize

// UnwrapAESCCM decrypts and authenticates an AES-CCM protected blob.
// The key must be 16 or 32 bytes. Returns ErrAuthentication when the MAC
// does not match, which deterministically detects a wrong key.
func UnwrapAESCCM(key []byte, nonce [12]byte, mac [16]byte, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid unwrap key: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	ctrCrypt(block, nonce, ciphertext, plaintext)

	expected := cbcMAC(block, nonce, plaintext)

	// The transmitted MAC is encrypted with the zero counter block.
	decryptedMAC := decryptMAC(block, nonce, mac)

	if subtle.ConstantTimeCompare(expected[:], decryptedMAC[:]) != 1 {
		Zero(plaintext)
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// WrapAESCCM encrypts and authenticates a blob with AES-CCM. Counterpart of
// UnwrapAESCCM; exercised by the export path and by tests building wrapped
// key fixtures.
func WrapAESCCM(key []byte, nonce [12]byte, plaintext []byte) (mac [16]byte, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return mac, nil, fmt.Errorf("invalid wrap key: %w", err)
	}

	rawMAC := cbcMAC(block, nonce, plaintext)
	mac = decryptMAC(block, nonce, rawMAC)

	ciphertext = make([]byte, len(plaintext))
	ctrCrypt(block, nonce, plaintext, ciphertext)
	return mac, ciphertext, nil
}

// cbcMAC computes the raw (unencrypted) CBC-MAC over the initial block and
// the zero-padded message.
func cbcMAC(block cipher.Block, nonce [12]byte, msg []byte) [16]byte {
	var b0 [aes.BlockSize]byte
	b0[0] = byte(((ccmMACSize-2)/2)<<3 | (ccmLengthField - 1))
	copy(b0[1:1+ccmNonceSize], nonce[:])
	n := len(msg)
	for i := 0; i < ccmLengthField; i++ {
		b0[aes.BlockSize-1-i] = byte(n >> (8 * i))
	}

	var x [aes.BlockSize]byte
	block.Encrypt(x[:], b0[:])

	for off := 0; off < len(msg); off += aes.BlockSize {
		end := off + aes.BlockSize
		if end > len(msg) {
			end = len(msg)
		}
		for i, c := range msg[off:end] {
			x[i] ^= c
		}
		block.Encrypt(x[:], x[:])
	}
	return x
}

// decryptMAC XORs a MAC with the keystream of the zero counter block. The
// operation is its own inverse.
func decryptMAC(block cipher.Block, nonce [12]byte, mac [16]byte) [16]byte {
	var a0 [aes.BlockSize]byte
	a0[0] = ccmLengthField - 1
	copy(a0[1:1+ccmNonceSize], nonce[:])

	var s0 [aes.BlockSize]byte
	block.Encrypt(s0[:], a0[:])

	var out [16]byte
	for i := range mac {
		out[i] = mac[i] ^ s0[i]
	}
	return out
}

// ctrCrypt runs the CCM counter mode keystream over src into dst, starting
// at counter value 1.
func ctrCrypt(block cipher.Block, nonce [12]byte, src, dst []byte) {
	var ctr, keystream [aes.BlockSize]byte
	ctr[0] = ccmLengthField - 1
	copy(ctr[1:1+ccmNonceSize], nonce[:])

	counter := uint32(1)
	for off := 0; off < len(src); off += aes.BlockSize {
		for i := 0; i < ccmLengthField; i++ {
			ctr[aes.BlockSize-1-i] = byte(counter >> (8 * i))
		}
		block.Encrypt(keystream[:], ctr[:])

		end := off + aes.BlockSize
		if end > len(src) {
			end = len(src)
		}
		for i, c := range src[off:end] {
			dst[off+i] = c ^ keystream[i]
		}
		counter++
	}
}

// Zero overwrites b with zero bytes. Used to scrub key material on every
// exit path.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
