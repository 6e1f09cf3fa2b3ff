package crypto

import (
	"encoding/binary"
	"math/bits"
)

// Elephant diffuser, the sector-level mixing layer of the AES-CBC with
// diffuser encryption methods. Both diffusers operate in place on the
// sector interpreted as little-endian 32-bit words.

var (
	diffuserARotations = [4]uint{9, 0, 13, 0}
	diffuserBRotations = [4]uint{0, 10, 0, 25}
)

const (
	diffuserACycles = 5
	diffuserBCycles = 3
)

// sectorToWords converts sector bytes to little-endian words.
func sectorToWords(sector []byte) []uint32 {
	words := make([]uint32, len(sector)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(sector[4*i:])
	}
	return words
}

// wordsToSector writes words back into sector bytes.
func wordsToSector(words []uint32, sector []byte) {
	for i, w := range words {
		binary.LittleEndian.PutUint32(sector[4*i:], w)
	}
}

// DiffuserADecrypt applies the diffuser A decryption direction in place.
func DiffuserADecrypt(sector []byte) {
	words := sectorToWords(sector)
	n := len(words)
	for cycle := 0; cycle < diffuserACycles; cycle++ {
		for x := 0; x < n; x++ {
			words[x] += words[(x+n-2)%n] ^ bits.RotateLeft32(words[(x+n-5)%n], int(diffuserARotations[x%4]))
		}
	}
	wordsToSector(words, sector)
}

// DiffuserAEncrypt inverts DiffuserADecrypt.
func DiffuserAEncrypt(sector []byte) {
	words := sectorToWords(sector)
	n := len(words)
	for cycle := 0; cycle < diffuserACycles; cycle++ {
		for x := n - 1; x >= 0; x-- {
			words[x] -= words[(x+n-2)%n] ^ bits.RotateLeft32(words[(x+n-5)%n], int(diffuserARotations[x%4]))
		}
	}
	wordsToSector(words, sector)
}

// DiffuserBDecrypt applies the diffuser B decryption direction in place.
func DiffuserBDecrypt(sector []byte) {
	words := sectorToWords(sector)
	n := len(words)
	for cycle := 0; cycle < diffuserBCycles; cycle++ {
		for x := 0; x < n; x++ {
			words[x] += words[(x+2)%n] ^ bits.RotateLeft32(words[(x+5)%n], int(diffuserBRotations[x%4]))
		}
	}
	wordsToSector(words, sector)
}

// DiffuserBEncrypt inverts DiffuserBDecrypt.
func DiffuserBEncrypt(sector []byte) {
	words := sectorToWords(sector)
	n := len(words)
	for cycle := 0; cycle < diffuserBCycles; cycle++ {
		for x := n - 1; x >= 0; x-- {
			words[x] -= words[(x+2)%n] ^ bits.RotateLeft32(words[(x+5)%n], int(diffuserBRotations[x%4]))
		}
	}
	wordsToSector(words, sector)
}
