// Package config loads and validates the FarePipe pipeline configuration.
//
// The configuration document is a single YAML file deserialized into a
// statically typed PipelineConfig in one pass; all required keys are
// validated before any stage can observe the config. Once loaded the
// config is never mutated; re-resolution means reloading from source.
//
// Database credentials are deliberately kept out of the document: they
// come from the process environment (DB_USER, DB_PASSWORD, DB_HOST,
// DB_PORT, DB_NAME), optionally seeded from a .env file by the CLI.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/farepipe/farepipe/pkg/errors"
)

// GDriveConfig locates the remote archive and its local landing paths.
type GDriveConfig struct {
	FileID           string `yaml:"file_id"`
	DownloadFilePath string `yaml:"download_file_path"`
	ExtractDir       string `yaml:"extract_dir"`
}

// DatabaseConfig names the destination table and the directory of
// tabular source files to load into it.
type DatabaseConfig struct {
	TableName string `yaml:"table_name"`
	DataDir   string `yaml:"data_dir"`
}

// DataIngestionConfig holds the pipeline-local snapshot location.
type DataIngestionConfig struct {
	RawDataPath string `yaml:"raw_data_path"`
}

// PipelineConfig is the immutable configuration record tree for one
// pipeline run. Created once per process, discarded at exit. Stages
// borrow read-only views of it.
type PipelineConfig struct {
	GDrive        GDriveConfig        `yaml:"gdrive"`
	Database      DatabaseConfig      `yaml:"database"`
	DataIngestion DataIngestionConfig `yaml:"data_ingestion"`
}

// Load reads and deserializes the configuration document at path. It
// fails with a config-typed error when the document is unreadable,
// empty, syntactically invalid, or missing a required key. No directory
// creation or network access happens here.
func Load(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("config file %s is empty", path))
	}

	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config YAML")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks every required key. Runs inside Load so an incomplete
// document can never reach a stage.
func (c *PipelineConfig) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"gdrive.file_id", c.GDrive.FileID},
		{"gdrive.download_file_path", c.GDrive.DownloadFilePath},
		{"gdrive.extract_dir", c.GDrive.ExtractDir},
		{"database.table_name", c.Database.TableName},
		{"database.data_dir", c.Database.DataDir},
		{"data_ingestion.raw_data_path", c.DataIngestion.RawDataPath},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("missing required config key %s", r.key))
		}
	}
	return nil
}

// EnsureDirectories creates every directory in the list, parents
// included. Existing directories are a no-op; re-invocation never
// errors. This is the only filesystem mutation in this package.
func EnsureDirectories(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create directory %s", p))
		}
	}
	return nil
}
