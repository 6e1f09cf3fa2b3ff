package bitlocker

import (
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-bitlocker/internal/types"
)

// KeyProtectorType identifies the mechanism protecting a copy of the volume
// master key.
type KeyProtectorType uint16

const (
	KeyProtectorTypeClearKey         KeyProtectorType = 0x0000
	KeyProtectorTypeTPM              KeyProtectorType = 0x0100
	KeyProtectorTypeStartupKey       KeyProtectorType = 0x0200
	KeyProtectorTypeTPMAndPIN        KeyProtectorType = 0x0500
	KeyProtectorTypeRecoveryPassword KeyProtectorType = 0x0800
	KeyProtectorTypePassword         KeyProtectorType = 0x2000
)

// String returns a human-readable description of the key protector type.
func (t KeyProtectorType) String() string {
	return types.ProtectionType(t).String()
}

// KeyProtector describes one key protector of an open volume. The engine can
// satisfy clear-key, password, recovery-password and startup-key protectors;
// other kinds are reported but cannot unlock the volume.
type KeyProtector struct {
	// Identifier is the key protector GUID.
	Identifier uuid.UUID

	// Type is the protection mechanism.
	Type KeyProtectorType

	// ModificationTime is the time the protector was last modified.
	ModificationTime time.Time
}
