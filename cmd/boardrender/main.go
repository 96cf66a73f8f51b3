// Command boardrender draws one departure board image.
//
//	boardrender [--fonts dir] <image> <text> <params> <YES|NO> [classic|modern]
//
// Exit status: 0 ok, 1 file I/O error, 2 drawing or font error,
// 3 bad arguments, bad parameters or any other error.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"departure-board-backend/internal/worker"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "boardrender ", log.LstdFlags)

	cmd := &cobra.Command{
		Use:           "boardrender " + worker.Usage,
		Short:         "Draw a departure board image from a board text file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := worker.ParseArgs(args)
			if err != nil {
				return err
			}
			fontDir, _ := cmd.Flags().GetString("fonts")
			stats, err := worker.New(fontDir, logger).Run(job)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "rendered %s board to %s: %s\n", job.Style, job.ImagePath, stats)
			return nil
		},
	}
	cmd.Flags().String("fonts", envOr("BOARD_FONT_DIR", "./fonts"), "directory holding the board fonts")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", worker.ErrConfig, err)
	})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		logger.Printf("Error: %v", err)
		return worker.ExitCode(err)
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
