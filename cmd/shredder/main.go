// Command shredder repacks an archive into a columnar container.
//
// Usage:
//
//	shredder <archive>
//
// The container is written to <archive>.shred.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/meigma/shredder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "shredder <archive>",
		Short:         "Repack an archive into a columnar container",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, archivePath string) error {
	outPath := shredder.DefaultOutputPath(archivePath)
	fmt.Fprintf(stdout, "|    %s\n", archivePath)

	// The output path is echoed only once the archive has been opened.
	progress := func(ev shredder.ProgressEvent) {
		if ev.Stage == shredder.StageOpened {
			fmt.Fprintf(stdout, "|    %s\n", outPath)
		}
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	stats, err := shredder.Pack(ctx, archivePath, outPath,
		shredder.PackWithLogger(logger),
		shredder.PackWithProgress(progress))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%d records packed.\n", stats.Records)
	return nil
}
