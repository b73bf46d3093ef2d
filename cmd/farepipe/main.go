package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/farepipe/farepipe/internal/pipeline"
	"github.com/farepipe/farepipe/pkg/config"
	perrors "github.com/farepipe/farepipe/pkg/errors"
	"github.com/farepipe/farepipe/pkg/logger"
	"github.com/farepipe/farepipe/pkg/stage/acquire"
	"github.com/farepipe/farepipe/pkg/stage/ingest"
)

var version = "0.1.0"

const (
	logsDir         = "logs"
	rawSnapshotFile = "flight_price.csv"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	registry := logger.NewRegistry()
	defer registry.Sync()

	root := &cobra.Command{
		Use:   "farepipe",
		Short: "FarePipe - data acquisition and ingestion pipeline for flight fare data",
		Long: `FarePipe is the data-engineering front end of a flight-fare prediction
workflow. It downloads the remote fare dataset archive, extracts it,
bulk-loads the tabular files into a MySQL store, and materializes a
pipeline-local CSV snapshot for downstream stages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/data-source.yaml", "Path to the pipeline configuration YAML file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FarePipe v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "acquire",
		Short: "Download the dataset archive and extract it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAcquire(cmd.Context(), registry, configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "ingest",
		Short: "Create the database if absent and load the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), registry, configPath)
		},
	})

	var snapshotQuery string
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Materialize a CSV snapshot of the store for downstream stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), registry, configPath, snapshotQuery)
		},
	}
	snapshotCmd.Flags().StringVar(&snapshotQuery, "query", "", "Read query to materialize (default: full configured table)")
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		registry.Sync()
		os.Exit(1)
	}
}

// runAcquire executes download-then-extract.
func runAcquire(ctx context.Context, registry *logger.Registry, configPath string) error {
	log, err := registry.Get("data_acquisition", filepath.Join(logsDir, "data_acquisition.log"), logger.ModeOverwrite)
	if err != nil {
		return err
	}
	perrors.SetDiagnostic(log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	acqCfg := acquire.ConfigFrom(cfg)
	if err := config.EnsureDirectories(filepath.Dir(acqCfg.ArchivePath), acqCfg.ExtractDir); err != nil {
		return err
	}

	stage := acquire.NewStage(acqCfg, nil, log)
	runner := pipeline.NewRunner(log,
		pipeline.NewStageFunc("download", stage.DownloadArchive),
		pipeline.NewStageFunc("extract", stage.ExtractArchive),
	)
	return runner.Run(ctx)
}

// runIngest executes database-creation-then-directory-load.
func runIngest(ctx context.Context, registry *logger.Registry, configPath string) error {
	log, err := registry.Get("data_ingestion", filepath.Join(logsDir, "data_ingestion.log"), logger.ModeOverwrite)
	if err != nil {
		return err
	}
	perrors.SetDiagnostic(log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	stage := ingest.NewStage(cfg, config.ConnectionParamsFromEnv(), log)
	runner := pipeline.NewRunner(log,
		pipeline.NewStageFunc("create_database", stage.CreateDatabaseIfAbsent),
		pipeline.NewStageFunc("load_directory", stage.LoadDirectory),
	)
	return runner.Run(ctx)
}

// runSnapshot re-reads the store into the pipeline-local CSV snapshot.
func runSnapshot(ctx context.Context, registry *logger.Registry, configPath, query string) error {
	log, err := registry.Get("data_ingestion", filepath.Join(logsDir, "data_ingestion.log"), logger.ModeOverwrite)
	if err != nil {
		return err
	}
	perrors.SetDiagnostic(log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := config.EnsureDirectories(cfg.DataIngestion.RawDataPath); err != nil {
		return err
	}

	stage := ingest.NewStage(cfg, config.ConnectionParamsFromEnv(), log)
	if query == "" {
		query = stage.DefaultSnapshotQuery()
	}
	dest := filepath.Join(cfg.DataIngestion.RawDataPath, rawSnapshotFile)

	runner := pipeline.NewRunner(log,
		pipeline.NewStageFunc("snapshot", func(ctx context.Context) error {
			return stage.MaterializeSnapshot(ctx, query, dest)
		}),
	)
	return runner.Run(ctx)
}
