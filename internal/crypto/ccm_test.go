package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestAESCCMRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
		msgSize int
	}{
		{name: "AES-128 block-aligned message", keySize: 16, msgSize: 32},
		{name: "AES-256 block-aligned message", keySize: 32, msgSize: 48},
		{name: "AES-256 unaligned message", keySize: 32, msgSize: 44},
		{name: "AES-256 short message", keySize: 32, msgSize: 5},
		{name: "AES-256 empty message", keySize: 32, msgSize: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keySize)
			for i := range key {
				key[i] = byte(i * 7)
			}
			plaintext := make([]byte, tt.msgSize)
			for i := range plaintext {
				plaintext[i] = byte(i)
			}
			nonce := [12]byte{0x10, 0x32, 0x54, 0x76, 0x98, 0xba, 0xdc, 0xfe, 0x01, 0x00, 0x00, 0x00}

			mac, ciphertext, err := WrapAESCCM(key, nonce, plaintext)
			if err != nil {
				t.Fatalf("wrap failed: %v", err)
			}
			if tt.msgSize > 0 && bytes.Equal(ciphertext, plaintext) {
				t.Fatal("ciphertext equals plaintext")
			}

			recovered, err := UnwrapAESCCM(key, nonce, mac, ciphertext)
			if err != nil {
				t.Fatalf("unwrap failed: %v", err)
			}
			if !bytes.Equal(recovered, plaintext) {
				t.Errorf("recovered %x, want %x", recovered, plaintext)
			}
		})
	}
}

func TestUnwrapAESCCMAuthenticationFailure(t *testing.T) {
	key := make([]byte, 32)
	plaintext := []byte("volume master key fixture data!!")
	nonce := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	mac, ciphertext, err := WrapAESCCM(key, nonce, plaintext)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	t.Run("wrong key", func(t *testing.T) {
		wrongKey := make([]byte, 32)
		wrongKey[0] = 1
		if _, err := UnwrapAESCCM(wrongKey, nonce, mac, ciphertext); !errors.Is(err, ErrAuthentication) {
			t.Errorf("expected ErrAuthentication, got %v", err)
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := append([]byte(nil), ciphertext...)
		tampered[0] ^= 0x01
		if _, err := UnwrapAESCCM(key, nonce, mac, tampered); !errors.Is(err, ErrAuthentication) {
			t.Errorf("expected ErrAuthentication, got %v", err)
		}
	})

	t.Run("tampered MAC", func(t *testing.T) {
		tamperedMAC := mac
		tamperedMAC[15] ^= 0x80
		if _, err := UnwrapAESCCM(key, nonce, tamperedMAC, ciphertext); !errors.Is(err, ErrAuthentication) {
			t.Errorf("expected ErrAuthentication, got %v", err)
		}
	})

	t.Run("wrong nonce", func(t *testing.T) {
		wrongNonce := nonce
		wrongNonce[11] ^= 0xff
		if _, err := UnwrapAESCCM(key, wrongNonce, mac, ciphertext); !errors.Is(err, ErrAuthentication) {
			t.Errorf("expected ErrAuthentication, got %v", err)
		}
	})
}

func TestUnwrapAESCCMRejectsBadKeySize(t *testing.T) {
	var nonce [12]byte
	var mac [16]byte
	if _, err := UnwrapAESCCM(make([]byte, 20), nonce, mac, make([]byte, 16)); err == nil {
		t.Error("expected error for 20-byte key")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not scrubbed: %d", i, v)
		}
	}
}
