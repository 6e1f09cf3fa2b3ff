package bitlocker

import "github.com/deploymenttheory/go-bitlocker/internal/types"

// EncryptionMethod is the cipher applied to the volume data.
type EncryptionMethod uint16

const (
	EncryptionMethodNone              EncryptionMethod = 0x0000
	EncryptionMethodAES128CBCDiffuser EncryptionMethod = 0x8000
	EncryptionMethodAES256CBCDiffuser EncryptionMethod = 0x8001
	EncryptionMethodAES128CBC         EncryptionMethod = 0x8002
	EncryptionMethodAES256CBC         EncryptionMethod = 0x8003
	EncryptionMethodAES128XTS         EncryptionMethod = 0x8004
	EncryptionMethodAES256XTS         EncryptionMethod = 0x8005
)

// String returns the conventional name of the encryption method.
func (m EncryptionMethod) String() string {
	return types.EncryptionMethod(m).String()
}
