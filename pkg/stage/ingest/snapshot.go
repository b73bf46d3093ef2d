package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/farepipe/farepipe/pkg/errors"
	"github.com/farepipe/farepipe/pkg/metrics"
)

// DefaultSnapshotQuery returns the read query used when the caller does
// not supply one: the full content of the configured table.
func (s *Stage) DefaultSnapshotQuery() string {
	return fmt.Sprintf("SELECT * FROM `%s`", sanitizeIdent(s.table))
}

// MaterializeSnapshot executes the read query against the store and
// writes the full result set as a CSV file at destinationPath,
// overwriting any existing file. Query or connection failures surface
// as snapshot errors enriched with provenance.
func (s *Stage) MaterializeSnapshot(ctx context.Context, query, destinationPath string) error {
	db, err := sql.Open(s.driver, s.params.DSN())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to open database connection")
	}
	defer db.Close()

	s.logger.Info("reading snapshot data", zap.String("query", query))
	rows, err := db.QueryContext(ctx, query) //nolint:gosec // G202: query comes from config/operator, not request input
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "snapshot query failed").
			WithDetail("query", query)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to read result columns")
	}

	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to create snapshot directory")
	}
	out, err := os.Create(destinationPath) //nolint:gosec // G304: path comes from validated config
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to create snapshot file")
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(columns); err != nil {
		out.Close()
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to write snapshot header")
	}

	values := make([]sql.RawBytes, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			out.Close()
			return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to scan result row")
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = string(v)
		}
		if err := writer.Write(record); err != nil {
			out.Close()
			return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to write snapshot row")
		}
		count++
	}
	if err := rows.Err(); err != nil {
		out.Close()
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "snapshot result iteration failed")
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		out.Close()
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to flush snapshot file")
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSnapshot, "failed to finalize snapshot file")
	}

	metrics.SnapshotRows.Add(float64(count))
	s.logger.Info("snapshot materialized",
		zap.String("path", destinationPath),
		zap.Int("rows", count))
	return nil
}
