package cmd

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-bitlocker/bitlocker"
)

// openVolume opens the image at path with the credentials resolved from
// flags, environment and config. The caller closes the returned volume.
func openVolume(path string) (*bitlocker.Volume, error) {
	volume := bitlocker.NewVolume()

	if password := viper.GetString("password"); password != "" {
		if err := volume.SetPassword(password); err != nil {
			return nil, err
		}
		log.Debug().Msg("password credential attached")
	}
	if recovery := viper.GetString("recovery-password"); recovery != "" {
		if err := volume.SetRecoveryPassword(recovery); err != nil {
			return nil, err
		}
		log.Debug().Msg("recovery password credential attached")
	}
	if keyPath := viper.GetString("startup-key"); keyPath != "" {
		if err := volume.ReadStartupKey(keyPath); err != nil {
			return nil, err
		}
		log.Debug().Str("path", keyPath).Msg("startup key attached")
	}

	offset := viper.GetInt64("offset")
	size := viper.GetInt64("size")
	if offset == 0 && size == 0 {
		if err := volume.Open(path, bitlocker.AccessModeReadOnly); err != nil {
			return nil, err
		}
	} else {
		source, err := bitlocker.NewFileDataSource(path)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			size = source.Size() - offset
		}
		if err := volume.OpenDataSourceAtRange(source, bitlocker.AccessModeReadOnly, offset, size); err != nil {
			source.Close()
			return nil, err
		}
	}

	locked, err := volume.IsLocked()
	if err != nil {
		volume.Close()
		return nil, err
	}
	if locked {
		log.Warn().Msg("no credential satisfied any key protector; volume is locked")
	}
	return volume, nil
}

// requireUnlocked fails when the volume could not be unlocked.
func requireUnlocked(volume *bitlocker.Volume) error {
	locked, err := volume.IsLocked()
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("volume is locked; provide --password, --recovery-password or --startup-key")
	}
	return nil
}
