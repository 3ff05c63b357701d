package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deedfetch/internal/common"
)

var (
	// Command-line flags
	configPath string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "deedfetch",
	Short: "Plymouth County Registry of Deeds downloader",
	Long: `Downloads documents from the Plymouth County Registry of Deeds.

The registry identifies documents by book and page, a practice dating back
to physically appending pages to archival books. Given a valid book and page
number, deedfetch retrieves every page image of the document and assembles
them into a single PDF.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			configPath = common.DiscoverConfigFile()
		}
		var err error
		config, err = common.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger = common.InitLogger(config)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path (default: ./deedfetch.toml if present)")
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
