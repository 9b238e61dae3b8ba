package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docpipe/internal/logger"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the watched Drive folder once and publish its files",
	Long: `Run the discovery stage once: every downloadable file in the folder is
published to PREPARATION_TOPIC. Folders and Google-native documents are
skipped.`,
	Example: `  # Discover DRIVE_FOLDER_ID
  docpipe discover

  # Discover another folder
  docpipe discover --folder 1AbCdEf`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().String("folder", "", "Drive folder ID (default: $DRIVE_FOLDER_ID)")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("discover")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	folderID, _ := cmd.Flags().GetString("folder")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize clients: %w", err)
	}
	defer a.Close()

	n, err := a.discovery().Run(ctx, folderID)
	if err != nil {
		return err
	}

	fmt.Printf("Published %d file(s) to %s\n", n, cfg.PreparationTopic)
	return nil
}
