package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/xts"

	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// SectorCipher decrypts (and, for tooling and tests, encrypts) individual
// volume sectors. It is stateless with respect to the data: every call is
// a pure function of the key material, the sector offset and the sector
// contents. The mode is fixed at construction from the parsed encryption
// method; there is no auto-detection or fallback.
type SectorCipher struct {
	method     types.EncryptionMethod
	sectorSize uint32

	// CBC modes.
	block cipher.Block
	tweak cipher.Block

	// XTS modes.
	xtsCipher *xts.Cipher
}

// NewSectorCipher builds a sector cipher for the given method. The fvek
// slice must hold at least method.FVEKSize() bytes; for the diffuser
// methods the upper 32 bytes carry the tweak key. The caller retains
// ownership of fvek and may scrub it after the call.
func NewSectorCipher(method types.EncryptionMethod, fvek []byte, sectorSize uint32) (*SectorCipher, error) {
	if sectorSize == 0 || sectorSize%aes.BlockSize != 0 {
		return nil, fmt.Errorf("invalid sector size: %d", sectorSize)
	}
	keySize := method.FVEKSize()
	if keySize == 0 {
		return nil, fmt.Errorf("unsupported encryption method: 0x%04x", uint16(method))
	}
	if len(fvek) < keySize {
		return nil, fmt.Errorf("full volume encryption key too short: need %d bytes, have %d", keySize, len(fvek))
	}

	sc := &SectorCipher{method: method, sectorSize: sectorSize}

	switch method {
	case types.EncryptionMethodAES128CBC:
		block, err := aes.NewCipher(fvek[:16])
		if err != nil {
			return nil, err
		}
		sc.block = block

	case types.EncryptionMethodAES256CBC:
		block, err := aes.NewCipher(fvek[:32])
		if err != nil {
			return nil, err
		}
		sc.block = block

	case types.EncryptionMethodAES128CBCDiffuser, types.EncryptionMethodAES256CBCDiffuser:
		aesKeySize := 16
		if method == types.EncryptionMethodAES256CBCDiffuser {
			aesKeySize = 32
		}
		block, err := aes.NewCipher(fvek[:aesKeySize])
		if err != nil {
			return nil, err
		}
		tweak, err := aes.NewCipher(fvek[32 : 32+aesKeySize])
		if err != nil {
			return nil, err
		}
		sc.block = block
		sc.tweak = tweak

	case types.EncryptionMethodAES128XTS, types.EncryptionMethodAES256XTS:
		xtsCipher, err := xts.NewCipher(aes.NewCipher, fvek[:keySize])
		if err != nil {
			return nil, err
		}
		sc.xtsCipher = xtsCipher

	default:
		return nil, fmt.Errorf("unsupported encryption method: 0x%04x", uint16(method))
	}
	return sc, nil
}

// Method returns the encryption method the cipher was built for.
func (sc *SectorCipher) Method() types.EncryptionMethod {
	return sc.method
}

// SectorSize returns the sector size in bytes.
func (sc *SectorCipher) SectorSize() uint32 {
	return sc.sectorSize
}

// DecryptSector decrypts one sector in place. The buffer must be exactly
// one sector; sectorOffset is the byte offset of the sector within the
// volume and feeds the IV or tweak derivation.
func (sc *SectorCipher) DecryptSector(sector []byte, sectorOffset uint64) error {
	if uint32(len(sector)) != sc.sectorSize {
		return fmt.Errorf("sector buffer size %d does not match sector size %d", len(sector), sc.sectorSize)
	}

	switch sc.method {
	case types.EncryptionMethodAES128CBC, types.EncryptionMethodAES256CBC:
		sc.cbc(sectorOffset).decrypter().CryptBlocks(sector, sector)

	case types.EncryptionMethodAES128CBCDiffuser, types.EncryptionMethodAES256CBCDiffuser:
		sc.cbc(sectorOffset).decrypter().CryptBlocks(sector, sector)
		DiffuserBDecrypt(sector)
		DiffuserADecrypt(sector)
		sc.xorSectorKey(sector, sectorOffset)

	case types.EncryptionMethodAES128XTS, types.EncryptionMethodAES256XTS:
		sc.xtsCipher.Decrypt(sector, sector, sectorOffset/uint64(sc.sectorSize))
	}
	return nil
}

// EncryptSector encrypts one sector in place. Inverse of DecryptSector.
func (sc *SectorCipher) EncryptSector(sector []byte, sectorOffset uint64) error {
	if uint32(len(sector)) != sc.sectorSize {
		return fmt.Errorf("sector buffer size %d does not match sector size %d", len(sector), sc.sectorSize)
	}

	switch sc.method {
	case types.EncryptionMethodAES128CBC, types.EncryptionMethodAES256CBC:
		sc.cbc(sectorOffset).encrypter().CryptBlocks(sector, sector)

	case types.EncryptionMethodAES128CBCDiffuser, types.EncryptionMethodAES256CBCDiffuser:
		sc.xorSectorKey(sector, sectorOffset)
		DiffuserAEncrypt(sector)
		DiffuserBEncrypt(sector)
		sc.cbc(sectorOffset).encrypter().CryptBlocks(sector, sector)

	case types.EncryptionMethodAES128XTS, types.EncryptionMethodAES256XTS:
		sc.xtsCipher.Encrypt(sector, sector, sectorOffset/uint64(sc.sectorSize))
	}
	return nil
}

// cbcState carries the per-sector CBC initialization vector.
type cbcState struct {
	block cipher.Block
	iv    [aes.BlockSize]byte
}

// cbc derives the per-sector IV: the AES encryption, under the volume key,
// of a block holding the sector byte offset little-endian.
func (sc *SectorCipher) cbc(sectorOffset uint64) *cbcState {
	st := &cbcState{block: sc.block}
	var offsetBlock [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(offsetBlock[:], sectorOffset)
	sc.block.Encrypt(st.iv[:], offsetBlock[:])
	return st
}

func (st *cbcState) decrypter() cipher.BlockMode {
	return cipher.NewCBCDecrypter(st.block, st.iv[:])
}

func (st *cbcState) encrypter() cipher.BlockMode {
	return cipher.NewCBCEncrypter(st.block, st.iv[:])
}

// xorSectorKey XORs the sector with the 32-byte sector key derived from the
// tweak key: the AES encryptions of the offset block with its final byte
// set to 0x00 and to 0x80.
func (sc *SectorCipher) xorSectorKey(sector []byte, sectorOffset uint64) {
	var offsetBlock [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(offsetBlock[:], sectorOffset)

	var sectorKey [32]byte
	sc.tweak.Encrypt(sectorKey[:16], offsetBlock[:])
	offsetBlock[aes.BlockSize-1] = 0x80
	sc.tweak.Encrypt(sectorKey[16:], offsetBlock[:])

	for i := range sector {
		sector[i] ^= sectorKey[i%32]
	}
	Zero(sectorKey[:])
}
