// Package ingest implements the database ingestion stages: conditional
// database creation, bulk-loading tabular files into the destination
// table, and materializing query results into a flat-file snapshot.
//
// Loading is a full replace per file: each matching file drops and
// recreates the destination table, so with several source files mapping
// to the same table the final content equals the last file processed.
// Every operation opens and releases its own connection handle; nothing
// is pooled or shared across stages.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql" // register the mysql driver
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/farepipe/farepipe/pkg/config"
	"github.com/farepipe/farepipe/pkg/errors"
	"github.com/farepipe/farepipe/pkg/metrics"
)

const (
	driverName  = "mysql"
	insertBatch = 500
)

// Stage performs the relational load and snapshot operations for one
// pipeline run.
type Stage struct {
	params  config.ConnectionParams
	table   string
	dataDir string
	logger  *zap.Logger

	// driver is swapped by tests for an in-process fake.
	driver string
}

// NewStage creates an ingestion stage from the pipeline config and the
// environment-sourced connection parameters.
func NewStage(pc *config.PipelineConfig, params config.ConnectionParams, logger *zap.Logger) *Stage {
	return &Stage{
		params:  params,
		table:   pc.Database.TableName,
		dataDir: pc.Database.DataDir,
		logger:  logger,
		driver:  driverName,
	}
}

// CreateDatabaseIfAbsent issues a conditional create against the server.
// It connects without a database selected, so the credentials need
// server-level privileges. A database that already exists is a no-op.
func (s *Stage) CreateDatabaseIfAbsent(ctx context.Context) error {
	db, err := sql.Open(s.driver, s.params.ServerDSN())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to open server connection")
	}
	defer db.Close()

	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", sanitizeIdent(s.params.Database))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create database").
			WithDetail("database", s.params.Database)
	}

	s.logger.Info("database ensured", zap.String("database", s.params.Database))
	return nil
}

// LoadDirectory iterates every tabular file in the data directory (in
// os.ReadDir order) and replaces the destination table's content with
// that file's rows. Recognized extensions are .csv and .csv.gz. Last
// file wins: after N matching files the table holds only the rows of
// the final one.
func (s *Stage) LoadDirectory(ctx context.Context) error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIngestion, "failed to read data directory").
			WithDetail("data_dir", s.dataDir)
	}

	db, err := sql.Open(s.driver, s.params.DSN())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database connection")
	}
	defer db.Close()

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isTabular(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dataDir, entry.Name())

		headers, rows, err := readTable(path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeIngestion, "failed to read tabular file").
				WithDetail("file", entry.Name())
		}

		if err := s.replaceTable(ctx, db, headers, rows); err != nil {
			return err
		}

		metrics.RecordsLoaded.WithLabelValues(s.table).Add(float64(len(rows)))
		s.logger.Info("table replaced from file",
			zap.String("file", entry.Name()),
			zap.String("table", s.table),
			zap.Int("rows", len(rows)))
		loaded++
	}

	s.logger.Info("directory ingestion complete",
		zap.String("data_dir", s.dataDir),
		zap.Int("files_loaded", loaded))
	return nil
}

// isTabular reports whether the file name has a recognized extension.
func isTabular(name string) bool {
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".csv.gz")
}

// readTable reads a CSV (optionally gzip-compressed) into memory and
// splits it into header and data rows.
func readTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is under the configured data directory
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		defer gz.Close()
		r = gz
	}

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("file has no header row")
	}
	return records[0], records[1:], nil
}

// replaceTable drops and recreates the destination table, then inserts
// the given rows in batches. Columns are created as TEXT; the store is a
// staging area whose content is re-read verbatim into the snapshot.
func (s *Stage) replaceTable(ctx context.Context, db *sql.DB, headers []string, rows [][]string) error {
	table := sanitizeIdent(s.table)

	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIngestion, "failed to drop existing table").
			WithDetail("table", s.table)
	}

	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = fmt.Sprintf("`%s` TEXT", sanitizeIdent(h))
	}
	create := fmt.Sprintf("CREATE TABLE `%s` (%s)", table, strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIngestion, "failed to create table").
			WithDetail("table", s.table)
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(headers)), ",") + ")"
	for start := 0; start < len(rows); start += insertBatch {
		end := start + insertBatch
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*len(headers))
		for i, row := range batch {
			placeholders[i] = placeholder
			for _, v := range row {
				args = append(args, v)
			}
		}

		insert := fmt.Sprintf("INSERT INTO `%s` VALUES %s", table, strings.Join(placeholders, ", "))
		if _, err := db.ExecContext(ctx, insert, args...); err != nil {
			return errors.Wrap(err, errors.ErrorTypeIngestion, "failed to insert rows").
				WithDetail("table", s.table)
		}
	}
	return nil
}

// sanitizeIdent strips backticks so identifiers can be safely quoted.
func sanitizeIdent(ident string) string {
	return strings.ReplaceAll(ident, "`", "")
}
