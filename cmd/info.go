package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Show volume metadata, encryption method and key protectors",
	Long: `Show the BitLocker metadata of a volume image: size, encryption
method, creation time, description, lock state and the list of key
protectors with their identifiers and kinds.

Credentials are optional; without them the volume is reported as locked
but all metadata is still shown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		volume, err := openVolume(args[0])
		if err != nil {
			return err
		}
		defer volume.Close()

		size, err := volume.Size()
		if err != nil {
			return err
		}
		method, err := volume.EncryptionMethod()
		if err != nil {
			return err
		}
		identifier, err := volume.VolumeIdentifier()
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
		locked, err := volume.IsLocked()
		if err != nil {
			return err
		}
		count, err := volume.NumberOfKeyProtectors()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
		fmt.Fprintf(w, "Volume identifier:\t%s\n", identifier)
		fmt.Fprintf(w, "Size:\t%d bytes\n", size)
		fmt.Fprintf(w, "Encryption method:\t%s\n", method)
		fmt.Fprintf(w, "Creation time:\t%s\n", created)
		fmt.Fprintf(w, "Description:\t%s\n", description)
		fmt.Fprintf(w, "Locked:\t%v\n", locked)
		fmt.Fprintf(w, "Key protectors:\t%d\n", count)
		for i := 0; i < count; i++ {
			protector, err := volume.KeyProtector(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %d:\t%s\t%s\n", i, protector.Identifier, protector.Type)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
