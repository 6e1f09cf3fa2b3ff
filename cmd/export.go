package cmd

import (
	"errors"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-bitlocker/bitlocker"
)

// exportChunkSize is the read granularity of the export loop.
const exportChunkSize = 1 << 20

var exportCmd = &cobra.Command{
	Use:   "export <image> <output>",
	Short: "Decrypt the full volume contents to a file",
	Long: `Decrypt a BitLocker volume image end to end and write the plaintext
to the output file. Requires a credential that satisfies one of the
volume's key protectors. Interrupting with Ctrl-C aborts cleanly.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		volume, err := openVolume(args[0])
		if err != nil {
			return err
		}
		defer volume.Close()

		if err := requireUnlocked(volume); err != nil {
			return err
		}
		size, err := volume.Size()
		if err != nil {
			return err
		}

		out, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer out.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)
		go func() {
			<-interrupt
			log.Warn().Msg("interrupt received, aborting")
			volume.SignalAbort()
		}()

		log.Info().Int64("bytes", size).Str("output", args[1]).Msg("export started")

		var written int64
		lastReported := int64(-1)
		for written < size {
			data, err := volume.ReadBuffer(exportChunkSize)
			if err != nil {
				if errors.Is(err, bitlocker.ErrAborted) {
					log.Warn().Int64("bytes", written).Msg("export aborted")
				}
				return err
			}
			if len(data) == 0 {
				break
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			written += int64(len(data))

			if percent := written * 100 / size; percent/10 != lastReported/10 {
				log.Info().Int64("percent", percent).Int64("bytes", written).Msg("export progress")
				lastReported = percent
			}
		}

		if err := out.Sync(); err != nil {
			return err
		}
		log.Info().Int64("bytes", written).Msg("export finished")

		if written != size {
			return io.ErrShortWrite
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
