// Command profiler packs and reads synthetic archives under the Go profilers.
package main

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"github.com/ulikunitz/xz"

	"github.com/meigma/shredder"
)

type config struct {
	mode        string
	files       int
	fileSize    string
	dirCount    int
	filter      string
	pattern     string
	chunkSize   string
	compression string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	readRandom  bool
	tempDir     string
	keepTemp    bool
	randomSeed  int64
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkBytes []byte
	sinkCount int
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var cfg config
	cmd := &cobra.Command{
		Use:           "profiler",
		Short:         "Profile packing and reading of synthetic archives",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.mode, "mode", "pack", "mode: pack, readfile, records, verify")
	f.IntVar(&cfg.files, "files", 512, "number of files")
	f.StringVar(&cfg.fileSize, "file-size", "16KiB", "file size")
	f.IntVar(&cfg.dirCount, "dir-count", 16, "number of directories")
	f.StringVar(&cfg.filter, "filter", "none", "archive filter: none, gzip, zstd, xz")
	f.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	f.StringVar(&cfg.chunkSize, "chunk-size", humanize.IBytes(shredder.DefaultChunkSize), "read chunk size")
	f.StringVar(&cfg.compression, "compression", "none", "data compression: none, deflate, zstd, snappy")
	f.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	f.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	f.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	f.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	f.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	f.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	f.BoolVar(&cfg.readRandom, "read-random", true, "randomize readfile path selection")
	f.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	f.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	f.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	return cmd
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func run(ctx context.Context, stdout io.Writer, cfg config) error {
	fileSize, err := humanize.ParseBytes(cfg.fileSize)
	if err != nil {
		return fmt.Errorf("file-size: %w", err)
	}
	chunkSize, err := humanize.ParseBytes(cfg.chunkSize)
	if err != nil || chunkSize == 0 || chunkSize > 1<<30 {
		return fmt.Errorf("invalid chunk-size %q", cfg.chunkSize)
	}
	compression, err := parseCompression(cfg.compression)
	if err != nil {
		return err
	}

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	archive, paths, err := makeArchive(cfg, int(fileSize)) //nolint:gosec // profiler sizes are small
	if err != nil {
		return err
	}
	archivePath := filepath.Join(dir, "input.tar")
	if err := os.WriteFile(archivePath, archive, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
		return err
	}
	outPath := shredder.DefaultOutputPath(archivePath)
	packOpts := []shredder.PackOption{
		shredder.PackWithChunkSize(int(chunkSize)), //nolint:gosec // bounded above
		shredder.PackWithDataCompression(compression),
	}

	// Read modes profile a container packed once up front.
	var a *shredder.Archive
	if cfg.mode != "pack" {
		if _, err := shredder.Pack(ctx, archivePath, outPath, packOpts...); err != nil {
			return err
		}
		if a, err = shredder.Open(ctx, outPath); err != nil {
			return err
		}
		defer a.Close()
	}

	stop, err := startProfiles(cfg)
	if err != nil {
		return err
	}
	stats, err := runProfile(ctx, cfg, archivePath, outPath, packOpts, a, paths)
	stop()
	if err != nil {
		return err
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			return err
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			_ = f.Close()
			return err
		}
		_ = f.Close()
	}

	fmt.Fprintf(stdout, "mode=%s ops=%d bytes=%s elapsed=%s throughput=%s/s\n",
		cfg.mode,
		stats.ops,
		humanize.IBytes(uint64(stats.bytes)), //nolint:gosec // byte counts are non-negative
		stats.elapsed,
		humanize.IBytes(uint64(float64(stats.bytes)/stats.elapsed.Seconds())),
	)
	return nil
}

// startProfiles starts the CPU profile and trace if requested and returns a
// function that stops them.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func startProfiles(cfg config) (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if cfg.cpuProfile != "" {
		cpuFile, err := os.Create(cfg.cpuProfile)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			_ = cpuFile.Close()
			return nil, err
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		})
	}

	if cfg.traceFile != "" {
		traceFile, err := os.Create(cfg.traceFile)
		if err != nil {
			stop()
			return nil, err
		}
		if err := trace.Start(traceFile); err != nil {
			_ = traceFile.Close()
			stop()
			return nil, err
		}
		stops = append(stops, func() {
			trace.Stop()
			_ = traceFile.Close()
		})
	}
	return stop, nil
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func runProfile(ctx context.Context, cfg config, archivePath, outPath string, packOpts []shredder.PackOption, a *shredder.Archive, paths []string) (profileStats, error) {
	start := time.Now()
	ops := 0
	var byteCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "pack":
		for shouldContinue() {
			stats, err := shredder.Pack(ctx, archivePath, outPath, packOpts...)
			if err != nil {
				return profileStats{}, err
			}
			byteCount += int64(stats.DataBytes) //nolint:gosec // profiler sizes are small
			ops++
		}

	case "readfile":
		rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
		for shouldContinue() {
			path := pickPath(paths, ops, rng, cfg.readRandom)
			content, err := a.ReadFile(path)
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = content
			byteCount += int64(len(content))
			ops++
		}

	case "records":
		for shouldContinue() {
			count := 0
			for rec, err := range a.Records() {
				if err != nil {
					return profileStats{}, err
				}
				sinkBytes = rec.Data
				byteCount += int64(len(rec.Data))
				count++
			}
			sinkCount = count
			ops++
		}

	case "verify":
		for shouldContinue() {
			if err := a.Verify(ctx); err != nil {
				return profileStats{}, err
			}
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{ops: ops, bytes: byteCount, elapsed: time.Since(start)}, nil
}

func pickPath(paths []string, idx int, rng *rand.Rand, random bool) string {
	if random {
		return paths[rng.Intn(len(paths))]
	}
	return paths[idx%len(paths)]
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "shredder-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

// makeArchive builds a tar archive of synthetic files, wrapped in the
// configured filter, and returns it with the file names.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func makeArchive(cfg config, fileSize int) ([]byte, []string, error) {
	dirCount := max(cfg.dirCount, 1)
	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	paths := make([]string, 0, cfg.files)
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional use for reproducible benchmarks
	modTime := time.Unix(0, 0)

	for i := range cfg.files {
		name := fmt.Sprintf("dir%02d/file%05d.dat", i%dirCount, i)
		content := make([]byte, fileSize)
		switch cfg.pattern {
		case "random":
			if _, err := rng.Read(content); err != nil {
				return nil, nil, err
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
			if len(content) > 0 {
				content[0] = byte(i)
			}
		}

		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(fileSize), ModTime: modTime, Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, nil, err
		}
		if _, err := tw.Write(content); err != nil {
			return nil, nil, err
		}
		paths = append(paths, name)
	}
	if err := tw.Close(); err != nil {
		return nil, nil, err
	}

	data, err := applyFilter(cfg.filter, raw.Bytes())
	if err != nil {
		return nil, nil, err
	}
	return data, paths, nil
}

func applyFilter(name string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch name {
	case "none":
		return data, nil
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zstd":
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = enc
	case "xz":
		xw, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = xw
	default:
		return nil, fmt.Errorf("unknown filter: %s", name)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseCompression(name string) (shredder.Compression, error) {
	switch name {
	case "none":
		return shredder.CompressionNone, nil
	case "deflate":
		return shredder.CompressionDeflate, nil
	case "zstd":
		return shredder.CompressionZstd, nil
	case "snappy":
		return shredder.CompressionSnappy, nil
	default:
		return shredder.CompressionNone, errors.New("unknown compression: " + name)
	}
}
