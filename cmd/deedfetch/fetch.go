package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/deedfetch/internal/browser"
	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/models"
	"github.com/ternarybob/deedfetch/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download one document as a PDF",
	Long:  `Locates the document addressed by --book and --page and saves it as a single PDF in --dir.`,
	RunE:  runFetch,
}

var (
	fetchBook     int
	fetchPage     int
	fetchDir      string
	fetchAttempts int
	fetchHeadless bool
)

func init() {
	fetchCmd.Flags().IntVarP(&fetchBook, "book", "b", 0, "Book number (required)")
	fetchCmd.Flags().IntVarP(&fetchPage, "page", "p", 0, "Page number (required)")
	fetchCmd.Flags().StringVarP(&fetchDir, "dir", "d", defaultDownloadDir(), "Directory to save the PDF to")
	fetchCmd.Flags().IntVar(&fetchAttempts, "attempts", -1, "Retries after the first attempt (overrides config)")
	fetchCmd.Flags().BoolVar(&fetchHeadless, "headless", true, "Run the browser headless")
	fetchCmd.MarkFlagRequired("book")
	fetchCmd.MarkFlagRequired("page")
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func runFetch(cmd *cobra.Command, args []string) error {
	common.PrintBanner(common.GetVersion())

	key := models.RecordKey{Book: fetchBook, Page: fetchPage}
	if err := key.Validate(); err != nil {
		return err
	}

	info, err := os.Stat(fetchDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("destination directory %s is not usable", fetchDir)
	}

	// Flag overrides (highest priority)
	if fetchAttempts >= 0 {
		config.Retry.MaxAttempts = fetchAttempts
	}
	if cmd.Flags().Changed("headless") {
		config.Browser.Headless = fetchHeadless
	}

	logger.Info().
		Int("book", key.Book).
		Int("page", key.Page).
		Str("dir", fetchDir).
		Msg("Trying to obtain document")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := pipeline.New(config, browser.NewFactory(config.Browser, logger), logger)
	artifactPath, err := coordinator.Run(ctx, key, fetchDir, config.Retry.MaxAttempts)
	if err != nil {
		return err
	}

	fmt.Printf("Success! Saved %s\n", artifactPath)
	return nil
}
