package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-bitlocker/bitlocker"
)

// Manual smoke test against a real BitLocker volume image. Credentials come
// from the environment so they never land in shell history:
//
//	BDE_PASSWORD=...          user password
//	BDE_RECOVERY_PASSWORD=... recovery password
//	BDE_STARTUP_KEY=...       path to a BEK file
//
// Usage: go run scripts/test_volume_image.go path/to/bde.raw

func testVolumeImage(path string) error {
	volume := bitlocker.NewVolume()

	if password := os.Getenv("BDE_PASSWORD"); password != "" {
		if err := volume.SetPassword(password); err != nil {
			return err
		}
		fmt.Println("✓ Password credential attached")
	}
	if recovery := os.Getenv("BDE_RECOVERY_PASSWORD"); recovery != "" {
		if err := volume.SetRecoveryPassword(recovery); err != nil {
			return err
		}
		fmt.Println("✓ Recovery password credential attached")
	}
	if keyPath := os.Getenv("BDE_STARTUP_KEY"); keyPath != "" {
		if err := volume.ReadStartupKey(keyPath); err != nil {
			return err
		}
		fmt.Println("✓ Startup key attached")
	}

	if err := volume.Open(path, bitlocker.AccessModeReadOnly); err != nil {
		return fmt.Errorf("failed to open volume: %w", err)
	}
	defer volume.Close()

	fmt.Printf("✓ Opened volume: %s\n", path)

	identifier, err := volume.VolumeIdentifier()
	if err != nil {
		return err
	}
	size, err := volume.Size()
	if err != nil {
		return err
	}
	method, err := volume.EncryptionMethod()
	if err != nil {
		return err
	}
	created, err := volume.CreationTime()
	if err != nil {
		return err
	}
	description, err := volume.Description()
	if err != nil {
		return err
	}

	fmt.Printf("  Volume identifier: %s\n", identifier)
	fmt.Printf("  Size: %d bytes (%.2f MB)\n", size, float64(size)/1024/1024)
	fmt.Printf("  Encryption method: %s\n", method)
	fmt.Printf("  Creation time: %s\n", created)
	fmt.Printf("  Description: %s\n", description)

	fmt.Printf("\n--- Key Protectors ---\n")
	count, err := volume.NumberOfKeyProtectors()
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		protector, err := volume.KeyProtector(i)
		if err != nil {
			return err
		}
		fmt.Printf("  %d: %s  %s\n", i, protector.Identifier, protector.Type)
	}

	locked, err := volume.IsLocked()
	if err != nil {
		return err
	}
	if locked {
		fmt.Printf("\n⚠ Volume is locked; set a credential in the environment to test reads\n")
		return nil
	}

	fmt.Printf("\n--- Testing Decrypted Reads ---\n")
	boot, err := volume.ReadBufferAtOffset(512, 0)
	if err != nil {
		return fmt.Errorf("failed to read boot sector: %w", err)
	}
	if len(boot) >= 11 && string(boot[3:11]) == "NTFS    " {
		fmt.Printf("✓ Decrypted boot sector carries the NTFS signature\n")
	} else {
		fmt.Printf("⚠ Decrypted boot sector does not look like NTFS: % x\n", boot[:16])
	}

	// Sample a few positions across the volume.
	for _, offset := range []int64{size / 4, size / 2, size - 512} {
		if offset < 0 {
			continue
		}
		data, err := volume.ReadBufferAtOffset(512, offset)
		if err != nil {
			return fmt.Errorf("failed to read at offset %d: %w", offset, err)
		}
		fmt.Printf("✓ Read %d bytes at offset %d\n", len(data), offset)
	}
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("Usage: go run scripts/test_volume_image.go path/to/bde.raw\n")
		os.Exit(1)
	}
	path := os.Args[1]
	if !filepath.IsAbs(path) {
		if absPath, err := filepath.Abs(path); err == nil {
			path = absPath
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("ERROR: volume image not found: %s\n", path)
		os.Exit(1)
	}

	if err := testVolumeImage(path); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nAll checks complete")
}
