package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"tonearm/logger"
	"tonearm/meta"

	"github.com/spf13/cobra"
)

var inspectArtwork bool

// inspectCmd prints a file's metadata without playing it
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print track metadata",
	Long:  "Probe an audio file and print its tags and technical properties as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup("warn", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		md, err := meta.Extract(args[0])
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(md); err != nil {
			return err
		}

		if inspectArtwork && md.HasArtwork {
			art, err := meta.ExtractArtwork(args[0])
			if err != nil {
				return fmt.Errorf("failed to extract artwork: %w", err)
			}
			if art != nil {
				return enc.Encode(art)
			}
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectArtwork, "artwork", false, "include embedded artwork, base64-encoded")
	rootCmd.AddCommand(inspectCmd)
}
