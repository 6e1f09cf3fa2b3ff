package types

// EncryptionMethod is the cipher applied to the volume data, as stored in
// the FVE metadata header and in key datums.
type EncryptionMethod uint16

const (
	EncryptionMethodNone              EncryptionMethod = 0x0000
	EncryptionMethodStretchKey        EncryptionMethod = 0x1000
	EncryptionMethodStretchKeySHA256  EncryptionMethod = 0x1001
	EncryptionMethodAESCCM256         EncryptionMethod = 0x2000
	EncryptionMethodAES128CBCDiffuser EncryptionMethod = 0x8000
	EncryptionMethodAES256CBCDiffuser EncryptionMethod = 0x8001
	EncryptionMethodAES128CBC         EncryptionMethod = 0x8002
	EncryptionMethodAES256CBC         EncryptionMethod = 0x8003
	EncryptionMethodAES128XTS         EncryptionMethod = 0x8004
	EncryptionMethodAES256XTS         EncryptionMethod = 0x8005
)

// String returns the conventional name of the encryption method.
func (m EncryptionMethod) String() string {
	switch m {
	case EncryptionMethodNone:
		return "None"
	case EncryptionMethodAES128CBCDiffuser:
		return "AES-CBC 128-bit with Elephant diffuser"
	case EncryptionMethodAES256CBCDiffuser:
		return "AES-CBC 256-bit with Elephant diffuser"
	case EncryptionMethodAES128CBC:
		return "AES-CBC 128-bit"
	case EncryptionMethodAES256CBC:
		return "AES-CBC 256-bit"
	case EncryptionMethodAES128XTS:
		return "AES-XTS 128-bit"
	case EncryptionMethodAES256XTS:
		return "AES-XTS 256-bit"
	}
	return "Unknown"
}

// IsSupported reports whether the engine can decrypt sectors encrypted with
// this method.
func (m EncryptionMethod) IsSupported() bool {
	switch m {
	case EncryptionMethodAES128CBCDiffuser, EncryptionMethodAES256CBCDiffuser,
		EncryptionMethodAES128CBC, EncryptionMethodAES256CBC,
		EncryptionMethodAES128XTS, EncryptionMethodAES256XTS:
		return true
	}
	return false
}

// FVEKSize returns the number of bytes of full volume encryption key
// material the method consumes. For the diffuser methods this includes the
// 32-byte tweak key stored in the upper half of the 64-byte key datum.
func (m EncryptionMethod) FVEKSize() int {
	switch m {
	case EncryptionMethodAES128CBC:
		return 16
	case EncryptionMethodAES256CBC:
		return 32
	case EncryptionMethodAES128XTS:
		return 32
	case EncryptionMethodAES256XTS:
		return 64
	case EncryptionMethodAES128CBCDiffuser, EncryptionMethodAES256CBCDiffuser:
		return 64
	}
	return 0
}
