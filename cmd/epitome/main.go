// Package main implements the epitome binary: a one-shot aggregation of
// a tabular input into an exemplars table and a members table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/epitomedb/epitome/internal/aggregate"
	"github.com/epitomedb/epitome/internal/config"
	"github.com/epitomedb/epitome/internal/export"
	"github.com/epitomedb/epitome/internal/ingest"
	"github.com/epitomedb/epitome/internal/progress"
	"github.com/epitomedb/epitome/internal/storage"
	"github.com/epitomedb/epitome/pkg/frame"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML or JSON config file")
		input      = flag.String("input", "", "Input file (local path or s3:// URL)")
		outputDir  = flag.String("output", "", "Output directory (local path or s3:// prefix)")
		format     = flag.String("format", "", "Output format: csv, epit, sqlite")
	)
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if *input != "" {
		cfg.Input = *input
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.EnsureOutputDir(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	df, err := loadInput(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	log.Printf("Input loaded: %d rows, %d columns", df.NRows(), df.NCols())

	result, err := run(ctx, cfg, df)
	if err != nil {
		log.Fatalf("Aggregation failed: %v", err)
	}
	log.Printf("Aggregation done: %d exemplars for %d rows (%s path, %s)",
		result.Exemplars.NRows(), df.NRows(), result.Stats.Path, result.Stats.Elapsed)

	if err := writeOutputs(ctx, cfg, result); err != nil {
		log.Fatalf("Failed to write outputs: %v", err)
	}
	log.Printf("Outputs written to %s", cfg.Output.Dir)
}

// run dispatches on the configured float precision.
func run(ctx context.Context, cfg *config.Config, df *frame.Frame) (*aggregate.Result, error) {
	params := aggregate.Params{
		MinRows:       cfg.Aggregation.MinRows,
		NBins:         cfg.Aggregation.NBins,
		NXBins:        cfg.Aggregation.NXBins,
		NYBins:        cfg.Aggregation.NYBins,
		NDMaxBins:     cfg.Aggregation.NDMaxBins,
		MaxDimensions: cfg.Aggregation.MaxDimensions,
		Seed:          cfg.Aggregation.Seed,
		NThreads:      cfg.Aggregation.NThreads,
		Progress:      logProgress(),
	}
	if cfg.Aggregation.Precision == 32 {
		agg, err := aggregate.New[float32](params)
		if err != nil {
			return nil, err
		}
		return agg.Aggregate(ctx, df)
	}
	agg, err := aggregate.New[float64](params)
	if err != nil {
		return nil, err
	}
	return agg.Aggregate(ctx, df)
}

// logProgress logs progress at 10% steps plus every terminal status.
func logProgress() progress.Func {
	last := -1
	return func(fraction float64, status progress.Status) {
		if status != progress.StatusRunning {
			log.Printf("Progress: %3.0f%% (%s)", fraction*100, status)
			return
		}
		step := int(fraction * 10)
		if step > last {
			last = step
			log.Printf("Progress: %3.0f%%", fraction*100)
		}
	}
}

// loadInput fetches (if remote) and parses the input table.
func loadInput(ctx context.Context, cfg *config.Config) (*frame.Frame, error) {
	path := cfg.Input
	if strings.HasPrefix(path, "s3://") {
		local, err := fetchS3(ctx, cfg, path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(local)
		path = local
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".epit") {
		return export.ReadEpit(f)
	}
	return ingest.ReadCSV(f)
}

// fetchS3 downloads an s3://bucket/key object to a temp file.
func fetchS3(ctx context.Context, cfg *config.Config, url string) (string, error) {
	bucket, key, err := splitS3URL(url)
	if err != nil {
		return "", err
	}
	store, err := storage.NewS3Storage(ctx, bucket, storage.S3Config{
		Region:   cfg.Storage.S3.Region,
		Endpoint: cfg.Storage.S3.Endpoint,
	})
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp("", "epitome-input-*"+filepath.Ext(key))
	if err != nil {
		return "", err
	}
	tmp.Close()
	if err := store.Download(ctx, key, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// writeOutputs writes the exemplars and members tables in the configured
// format, uploading them when the output directory is an s3:// prefix.
func writeOutputs(ctx context.Context, cfg *config.Config, result *aggregate.Result) error {
	dir := cfg.Output.Dir
	remote := strings.HasPrefix(dir, "s3://")
	localDir := dir
	if remote {
		tmpDir, err := os.MkdirTemp("", "epitome-output-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)
		localDir = tmpDir
	}

	var files []string
	switch cfg.Output.Format {
	case "sqlite":
		path := filepath.Join(localDir, "epitome.db")
		if err := export.WriteSQLite(ctx, path, result.Exemplars, result.Members); err != nil {
			return err
		}
		files = append(files, path)
	case "epit":
		for name, f := range map[string]*frame.Frame{
			"exemplars.epit": result.Exemplars,
			"members.epit":   result.Members,
		} {
			path := filepath.Join(localDir, name)
			if err := writeFile(path, f, export.WriteEpit); err != nil {
				return err
			}
			files = append(files, path)
		}
	default:
		for name, f := range map[string]*frame.Frame{
			"exemplars.csv": result.Exemplars,
			"members.csv":   result.Members,
		} {
			path := filepath.Join(localDir, name)
			if err := writeFile(path, f, export.WriteCSV); err != nil {
				return err
			}
			files = append(files, path)
		}
	}

	if !remote {
		return nil
	}
	bucket, prefix, err := splitS3URL(dir)
	if err != nil {
		return err
	}
	store, err := storage.NewS3Storage(ctx, bucket, storage.S3Config{
		Region:   cfg.Storage.S3.Region,
		Endpoint: cfg.Storage.S3.Endpoint,
	})
	if err != nil {
		return err
	}
	for _, path := range files {
		key := strings.TrimSuffix(prefix, "/") + "/" + filepath.Base(path)
		if err := store.Upload(ctx, path, key); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, f *frame.Frame, write func(w io.Writer, f *frame.Frame) error) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// splitS3URL splits s3://bucket/key into its bucket and key parts.
func splitS3URL(url string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s", url)
	}
	return parts[0], parts[1], nil
}
