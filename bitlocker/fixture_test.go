package bitlocker

import (
	"encoding/binary"
	"math/rand"
	"testing"
	"time"

	"github.com/deploymenttheory/go-bitlocker/internal/crypto"
	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// Synthetic volume fixtures. Each fixture is a complete in-memory BDE image:
// volume header, three metadata block copies, encrypted data region and the
// encrypted backup of the virtualized boot sectors. Building the image with
// the encrypt counterparts of the production code paths keeps the fixtures
// honest to the on-disk format.

var (
	fixtureCreated = time.Date(2021, time.March, 9, 8, 0, 0, 0, time.UTC)

	fixtureVolumeGUID    = [16]byte{0x79, 0xcb, 0xe3, 0x4c, 0x83, 0x34, 0x31, 0x43, 0xa7, 0x52, 0x3e, 0x52, 0xd6, 0xe7, 0xd9, 0x1a}
	fixtureClearGUID     = [16]byte{0x01, 0x01, 0x01, 0x01, 0x02, 0x02, 0x03, 0x03, 0x04, 0x04, 0x05, 0x05, 0x06, 0x06, 0x07, 0x07}
	fixturePasswordGUID  = [16]byte{0x11, 0x11, 0x11, 0x11, 0x12, 0x12, 0x13, 0x13, 0x14, 0x14, 0x15, 0x15, 0x16, 0x16, 0x17, 0x17}
	fixtureRecoveryGUID  = [16]byte{0x21, 0x21, 0x21, 0x21, 0x22, 0x22, 0x23, 0x23, 0x24, 0x24, 0x25, 0x25, 0x26, 0x26, 0x27, 0x27}
	fixtureStartupGUID   = [16]byte{0x31, 0x31, 0x31, 0x31, 0x32, 0x32, 0x33, 0x33, 0x34, 0x34, 0x35, 0x35, 0x36, 0x36, 0x37, 0x37}
	fixtureTPMGUID       = [16]byte{0x41, 0x41, 0x41, 0x41, 0x42, 0x42, 0x43, 0x43, 0x44, 0x44, 0x45, 0x45, 0x46, 0x46, 0x47, 0x47}
)

const (
	fixturePassword         = "bde-TEST-passphrase-0"
	fixtureRecoveryPassword = "471207-278498-422125-177177-396803-683078-150161-277123"
	fixtureDescription      = "TestDrive C: 09/03/2021"
)

// fixtureConfig parameterizes buildFixture.
type fixtureConfig struct {
	method     types.EncryptionMethod
	sectorSize uint32
	sectors    int

	withClearKey   bool
	withPassword   bool
	withRecovery   bool
	withStartupKey bool
	withTPM        bool

	// zeroVolumeSize leaves the encrypted volume size field zero so the
	// engine falls back to the NTFS boot sector.
	zeroVolumeSize bool
}

// fixture is a built synthetic volume.
type fixture struct {
	image     []byte
	plaintext []byte
	bekFile   []byte
	size      int64
}

func defaultFixtureConfig() fixtureConfig {
	return fixtureConfig{
		method:       types.EncryptionMethodAES256XTS,
		sectorSize:   512,
		sectors:      64,
		withPassword: true,
	}
}

func buildFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()

	ss := int(cfg.sectorSize)
	volumeSize := cfg.sectors * ss

	// Virtualized boot region: 16 sectors at 512 bytes per sector, scaled so
	// it stays whole sectors for larger sector sizes.
	vhSize := 8192
	vhSectors := vhSize / ss

	metadataOffsets := [3]uint64{
		uint64(volumeSize),
		uint64(volumeSize + 4096),
		uint64(volumeSize + 8192),
	}
	backupOffset := uint64(volumeSize + 3*4096)
	imageSize := int(backupOffset) + vhSize

	// Logical plaintext: an NTFS boot sector followed by seeded random data.
	rng := rand.New(rand.NewSource(0x1bde))
	plaintext := make([]byte, volumeSize)
	rng.Read(plaintext)
	copy(plaintext[:ss], buildNTFSBootSector(cfg.sectorSize, uint64(cfg.sectors-1)))

	// Key material.
	fvek := make([]byte, cfg.method.FVEKSize())
	rng.Read(fvek)
	vmk := make([]byte, 32)
	rng.Read(vmk)

	cipher, err := crypto.NewSectorCipher(cfg.method, fvek, cfg.sectorSize)
	if err != nil {
		t.Fatalf("fixture cipher: %v", err)
	}

	image := make([]byte, imageSize)

	// Data region: virtualized sectors hold junk at their nominal location
	// and their true content, encrypted, in the backup region.
	for s := 0; s < cfg.sectors; s++ {
		logical := s * ss
		sector := make([]byte, ss)
		copy(sector, plaintext[logical:logical+ss])

		physical := uint64(logical)
		if s < vhSectors {
			physical = backupOffset + uint64(logical)
		}
		if err := cipher.EncryptSector(sector, physical); err != nil {
			t.Fatalf("fixture encrypt: %v", err)
		}
		copy(image[physical:], sector)
	}
	for i := ss; i < vhSize; i++ {
		image[i] = 0xee
	}

	// BDE volume header over sector 0.
	copy(image[:types.VolumeHeaderSize], fxBuildVolumeHeader(cfg.sectorSize, metadataOffsets))

	// Metadata entries.
	var entries [][]byte
	entries = append(entries, fxBuildEntry(types.EntryTypeDescription, types.ValueTypeUnicodeString,
		fxBuildUTF16String(fixtureDescription)))

	nonceCounter := uint32(1)
	nextNonce := func() [types.NonceSize]byte {
		var nonce [types.NonceSize]byte
		binary.LittleEndian.PutUint64(nonce[:], uint64(types.NewFiletime(fixtureCreated)))
		binary.LittleEndian.PutUint32(nonce[8:], nonceCounter)
		nonceCounter++
		return nonce
	}

	wrap := func(t *testing.T, key []byte, payload []byte) []byte {
		t.Helper()
		nonce := nextNonce()
		mac, ciphertext, err := crypto.WrapAESCCM(key, nonce, payload)
		if err != nil {
			t.Fatalf("fixture wrap: %v", err)
		}
		return fxBuildAESCCMDatum(nonce, mac, ciphertext)
	}

	// The wrapped payload of every protector is the VMK as a key datum entry.
	vmkPayload := fxBuildEntry(0, types.ValueTypeKey, fxBuildKeyDatum(types.EncryptionMethodAESCCM256, vmk))

	if cfg.withClearKey {
		clearKey := make([]byte, 32)
		rng.Read(clearKey)
		entries = append(entries, fxBuildEntry(types.EntryTypeVolumeMasterKey, types.ValueTypeVolumeMasterKey,
			fxBuildVMKDatum(fixtureClearGUID, types.ProtectionTypeClearKey,
				fxBuildEntry(0, types.ValueTypeKey, fxBuildKeyDatum(types.EncryptionMethodAESCCM256, clearKey)),
				fxBuildEntry(0, types.ValueTypeAESCCMEncryptedKey, wrap(t, clearKey, vmkPayload)))))
	}
	if cfg.withTPM {
		// Opaque TPM blob the engine must report but never satisfy.
		entries = append(entries, fxBuildEntry(types.EntryTypeVolumeMasterKey, types.ValueTypeVolumeMasterKey,
			fxBuildVMKDatum(fixtureTPMGUID, types.ProtectionTypeTPM)))
	}
	if cfg.withPassword {
		var salt [types.SaltSize]byte
		rng.Read(salt[:])
		stretched := stretchCredential(t, crypto.PasswordHash(fixturePassword), salt)
		entries = append(entries, fxBuildEntry(types.EntryTypeVolumeMasterKey, types.ValueTypeVolumeMasterKey,
			fxBuildVMKDatum(fixturePasswordGUID, types.ProtectionTypePassword,
				fxBuildEntry(0, types.ValueTypeStretchKey, fxBuildStretchKeyDatum(salt)),
				fxBuildEntry(0, types.ValueTypeAESCCMEncryptedKey, wrap(t, stretched, vmkPayload)))))
	}
	if cfg.withRecovery {
		var salt [types.SaltSize]byte
		rng.Read(salt[:])
		initial, err := crypto.RecoveryPasswordHash(fixtureRecoveryPassword)
		if err != nil {
			t.Fatalf("fixture recovery hash: %v", err)
		}
		stretched := stretchCredential(t, initial, salt)
		entries = append(entries, fxBuildEntry(types.EntryTypeVolumeMasterKey, types.ValueTypeVolumeMasterKey,
			fxBuildVMKDatum(fixtureRecoveryGUID, types.ProtectionTypeRecoveryPassword,
				fxBuildEntry(0, types.ValueTypeStretchKey, fxBuildStretchKeyDatum(salt)),
				fxBuildEntry(0, types.ValueTypeAESCCMEncryptedKey, wrap(t, stretched, vmkPayload)))))
	}

	var bekFile []byte
	if cfg.withStartupKey {
		externalKey := make([]byte, 32)
		rng.Read(externalKey)
		entries = append(entries, fxBuildEntry(types.EntryTypeVolumeMasterKey, types.ValueTypeVolumeMasterKey,
			fxBuildVMKDatum(fixtureStartupGUID, types.ProtectionTypeStartupKey,
				fxBuildEntry(0, types.ValueTypeAESCCMEncryptedKey, wrap(t, externalKey, vmkPayload)))))
		bekFile = fxBuildBEKFile(fixtureStartupGUID, externalKey)
	}

	// Wrapped FVEK and the virtualized region descriptor.
	fvekPayload := fxBuildEntry(0, types.ValueTypeKey, fxBuildKeyDatum(cfg.method, fvek))
	entries = append(entries, fxBuildEntry(types.EntryTypeFullVolumeEncryptionKey, types.ValueTypeAESCCMEncryptedKey,
		wrap(t, vmk, fvekPayload)))
	entries = append(entries, fxBuildEntry(types.EntryTypeVolumeHeaderBlock, types.ValueTypeOffsetAndSize,
		fxBuildOffsetAndSizeDatum(backupOffset, uint64(vhSize))))

	declaredSize := uint64(volumeSize)
	if cfg.zeroVolumeSize {
		declaredSize = 0
	}
	block := fxBuildMetadataBlock(declaredSize, backupOffset, uint64(vhSectors), metadataOffsets, cfg.method, entries)
	for _, offset := range metadataOffsets {
		copy(image[offset:], block)
	}

	return &fixture{
		image:     image,
		plaintext: plaintext,
		bekFile:   bekFile,
		size:      int64(volumeSize),
	}
}

// stretchCredential runs the production key stretch to derive the fixture's
// wrap key from a credential hash.
func stretchCredential(t *testing.T, initial [32]byte, salt [16]byte) []byte {
	t.Helper()
	key, err := crypto.StretchKey(initial, salt, types.DefaultStretchIterations, nil)
	if err != nil {
		t.Fatalf("fixture stretch: %v", err)
	}
	return key[:]
}

func fxBuildEntry(entryType types.EntryType, valueType types.ValueType, data []byte) []byte {
	entry := make([]byte, types.MetadataEntryHeaderSize+len(data))
	binary.LittleEndian.PutUint16(entry[0:], uint16(len(entry)))
	binary.LittleEndian.PutUint16(entry[2:], uint16(entryType))
	binary.LittleEndian.PutUint16(entry[4:], uint16(valueType))
	binary.LittleEndian.PutUint16(entry[6:], 1)
	copy(entry[types.MetadataEntryHeaderSize:], data)
	return entry
}

func fxBuildKeyDatum(method types.EncryptionMethod, key []byte) []byte {
	data := make([]byte, 4+len(key))
	binary.LittleEndian.PutUint32(data[0:], uint32(method))
	copy(data[4:], key)
	return data
}

func fxBuildStretchKeyDatum(salt [types.SaltSize]byte) []byte {
	data := make([]byte, 4+types.SaltSize)
	binary.LittleEndian.PutUint32(data[0:], uint32(types.EncryptionMethodStretchKey))
	copy(data[4:], salt[:])
	return data
}

func fxBuildAESCCMDatum(nonce [types.NonceSize]byte, mac [types.MACSize]byte, ciphertext []byte) []byte {
	data := make([]byte, 0, types.NonceSize+types.MACSize+len(ciphertext))
	data = append(data, nonce[:]...)
	data = append(data, mac[:]...)
	return append(data, ciphertext...)
}

func fxBuildVMKDatum(identifier [16]byte, protection types.ProtectionType, properties ...[]byte) []byte {
	data := make([]byte, 28)
	copy(data[0:], identifier[:])
	binary.LittleEndian.PutUint64(data[16:], uint64(types.NewFiletime(fixtureCreated)))
	binary.LittleEndian.PutUint16(data[26:], uint16(protection))
	for _, property := range properties {
		data = append(data, property...)
	}
	return data
}

func fxBuildOffsetAndSizeDatum(offset, size uint64) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[0:], offset)
	binary.LittleEndian.PutUint64(data[8:], size)
	return data
}

func fxBuildUTF16String(s string) []byte {
	data := make([]byte, 0, 2*len(s)+2)
	for _, r := range s {
		var unit [2]byte
		binary.LittleEndian.PutUint16(unit[:], uint16(r))
		data = append(data, unit[:]...)
	}
	return append(data, 0, 0)
}

func fxBuildVolumeHeader(sectorSize uint32, offsets [3]uint64) []byte {
	data := make([]byte, types.VolumeHeaderSize)
	data[0] = 0xeb
	data[1] = 0x58
	data[2] = 0x90
	copy(data[types.VolumeSignatureOffset:], types.VolumeSignature)
	binary.LittleEndian.PutUint16(data[types.BytesPerSectorOffset:], uint16(sectorSize))
	data[types.BytesPerSectorOffset+2] = 8
	copy(data[types.VolumeIdentifierOffset:], fixtureVolumeGUID[:])
	for i, offset := range offsets {
		binary.LittleEndian.PutUint64(data[types.MetadataOffsetsOffset+8*i:], offset)
	}
	return data
}

func fxBuildMetadataBlock(volumeSize, headerOffset, headerSectors uint64,
	offsets [3]uint64, method types.EncryptionMethod, entries [][]byte) []byte {

	entriesSize := 0
	for _, entry := range entries {
		entriesSize += len(entry)
	}
	metadataSize := uint32(types.MetadataHeaderSize + entriesSize)

	block := make([]byte, types.MetadataBlockHeaderSize+int(metadataSize))
	copy(block[0:], types.VolumeSignature)
	binary.LittleEndian.PutUint16(block[8:], uint16(metadataSize))
	binary.LittleEndian.PutUint16(block[10:], types.MetadataBlockVersionWindows7)
	binary.LittleEndian.PutUint64(block[16:], volumeSize)
	binary.LittleEndian.PutUint32(block[28:], uint32(headerSectors))
	for i, offset := range offsets {
		binary.LittleEndian.PutUint64(block[32+8*i:], offset)
	}
	binary.LittleEndian.PutUint64(block[56:], headerOffset)

	header := block[types.MetadataBlockHeaderSize:]
	binary.LittleEndian.PutUint32(header[0:], metadataSize)
	binary.LittleEndian.PutUint32(header[4:], types.MetadataFormatVersion)
	binary.LittleEndian.PutUint32(header[8:], types.MetadataHeaderSize)
	binary.LittleEndian.PutUint32(header[12:], metadataSize)
	copy(header[16:], fixtureVolumeGUID[:])
	binary.LittleEndian.PutUint32(header[32:], 100)
	binary.LittleEndian.PutUint32(header[36:], uint32(method))
	binary.LittleEndian.PutUint64(header[40:], uint64(types.NewFiletime(fixtureCreated)))

	offset := types.MetadataHeaderSize
	for _, entry := range entries {
		copy(header[offset:], entry)
		offset += len(entry)
	}
	return block
}

func fxBuildBEKFile(identifier [16]byte, key []byte) []byte {
	external := make([]byte, 24)
	copy(external[0:], identifier[:])
	binary.LittleEndian.PutUint64(external[16:], uint64(types.NewFiletime(fixtureCreated)))
	external = append(external, fxBuildEntry(0, types.ValueTypeKey,
		fxBuildKeyDatum(types.EncryptionMethodAESCCM256, key))...)

	entry := fxBuildEntry(types.EntryTypeStartupKey, types.ValueTypeExternalKey, external)
	metadataSize := uint32(types.MetadataHeaderSize + len(entry))

	data := make([]byte, metadataSize)
	binary.LittleEndian.PutUint32(data[0:], metadataSize)
	binary.LittleEndian.PutUint32(data[4:], types.MetadataFormatVersion)
	binary.LittleEndian.PutUint32(data[8:], types.MetadataHeaderSize)
	binary.LittleEndian.PutUint32(data[12:], metadataSize)
	binary.LittleEndian.PutUint64(data[40:], uint64(types.NewFiletime(fixtureCreated)))
	copy(data[types.MetadataHeaderSize:], entry)
	return data
}

func buildNTFSBootSector(sectorSize uint32, totalSectors uint64) []byte {
	data := make([]byte, 512)
	data[0] = 0xeb
	data[1] = 0x52
	data[2] = 0x90
	copy(data[3:], "NTFS    ")
	binary.LittleEndian.PutUint16(data[11:], uint16(sectorSize))
	binary.LittleEndian.PutUint64(data[40:], totalSectors)
	data[510] = 0x55
	data[511] = 0xaa
	return data
}
