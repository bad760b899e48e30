// Command shredcheck reports how an archive would be packed without writing
// a container.
//
// Usage:
//
//	shredcheck [--chunk-size SIZE] <archive>
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
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
	var chunkSize string
	cmd := &cobra.Command{
		Use:           "shredcheck <archive>",
		Short:         "Report the records of an archive",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := humanize.ParseBytes(chunkSize)
			if err != nil {
				return fmt.Errorf("invalid --chunk-size: %w", err)
			}
			if size == 0 || size > 1<<30 {
				return fmt.Errorf("invalid --chunk-size: %s", chunkSize)
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], int(size))
		},
	}
	cmd.Flags().StringVar(&chunkSize, "chunk-size", humanize.IBytes(shredder.DefaultChunkSize),
		"read chunk size, e.g. 64KiB")
	return cmd
}

func run(ctx context.Context, stdout, stderr io.Writer, archivePath string, chunkSize int) error {
	fmt.Fprintf(stdout, "|    %s\n", archivePath)

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	report, err := shredder.Check(ctx, archivePath,
		shredder.CheckWithChunkSize(chunkSize),
		shredder.CheckWithLogger(logger))
	if err != nil {
		return err
	}

	format := report.Format
	if len(report.Filters) > 0 {
		format += "+" + strings.Join(report.Filters, "+")
	}
	fmt.Fprintf(stdout, "%d files can be extracted.\n", report.NonEmpty)
	fmt.Fprintf(stdout, "%s records, %s of content, %s chunks (%s)\n",
		humanize.Comma(int64(report.Records)), //nolint:gosec // record counts fit in int64
		humanize.IBytes(report.DataBytes),
		humanize.Comma(int64(report.Chunks)), //nolint:gosec // chunk counts fit in int64
		format)
	if report.MultiChunk > 0 {
		fmt.Fprintf(stdout, "WARNING: %d files > %s found; largest is %s (%s).\n",
			report.MultiChunk,
			humanize.IBytes(uint64(report.ChunkSize)), //nolint:gosec // chunk size is positive
			report.Largest,
			humanize.IBytes(report.LargestSize))
	}
	return nil
}
