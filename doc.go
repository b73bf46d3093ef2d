// Package farepipe is the data-engineering front end of a flight-fare
// prediction workflow: it acquires a remote ZIP archive of fare data,
// extracts it, bulk-loads the tabular files into a MySQL store, and
// re-reads that store into a pipeline-local CSV snapshot.
//
// The pipeline runs as a short sequence of idempotent, config-driven
// stages executed strictly in order by the farepipe CLI:
//
//	farepipe acquire   download the archive, extract it
//	farepipe ingest    create the database, replace the table
//	farepipe snapshot  re-read the store into a CSV snapshot
//
// Key packages:
//   - pkg/config: typed YAML configuration and env-sourced credentials
//   - pkg/errors: typed stage errors with origin enrichment
//   - pkg/logger: named-logger registry with file+console sinks
//   - pkg/stage/acquire, pkg/stage/ingest: the pipeline stages
//   - internal/pipeline: the sequential stage runner
package farepipe
