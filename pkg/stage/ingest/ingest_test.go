package ingest

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/farepipe/farepipe/pkg/config"
	"github.com/farepipe/farepipe/pkg/errors"
)

func newFakeStage(t *testing.T, dataDir string) *Stage {
	t.Helper()
	fake.reset()
	pc := &config.PipelineConfig{}
	pc.Database.TableName = "flight_prices"
	pc.Database.DataDir = dataDir
	params := config.ConnectionParams{
		User:     "fareuser",
		Password: "secret",
		Host:     "127.0.0.1",
		Port:     "3306",
		Database: "fares",
	}
	st := NewStage(pc, params, zap.NewNop())
	st.driver = "farepipe_fake"
	return st
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeGzipFile(t *testing.T, dir, name, content string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestCreateDatabaseIfAbsent(t *testing.T) {
	st := newFakeStage(t, t.TempDir())

	require.NoError(t, st.CreateDatabaseIfAbsent(context.Background()))

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS `fares`", calls[0].query)
}

func TestCreateDatabaseSurfacesExecError(t *testing.T) {
	st := newFakeStage(t, t.TempDir())
	fake.execErr = stderrors.New("access denied")

	err := st.CreateDatabaseIfAbsent(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestLoadDirectoryLastFileWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "airline,price\nIndigo,4500\nVistara,6100\n")
	writeFile(t, dir, "b.csv", "airline,price\nAirAsia,3900\n")

	st := newFakeStage(t, dir)
	require.NoError(t, st.LoadDirectory(context.Background()))

	// Two files, each a full replace: DROP, CREATE, INSERT per file.
	calls := fake.calls()
	require.Len(t, calls, 6)
	assert.Equal(t, "DROP TABLE IF EXISTS `flight_prices`", calls[0].query)
	assert.Equal(t, "CREATE TABLE `flight_prices` (`airline` TEXT, `price` TEXT)", calls[1].query)
	assert.Equal(t, "INSERT INTO `flight_prices` VALUES (?,?), (?,?)", calls[2].query)
	assert.Equal(t, "DROP TABLE IF EXISTS `flight_prices`", calls[3].query)
	assert.Equal(t, "CREATE TABLE `flight_prices` (`airline` TEXT, `price` TEXT)", calls[4].query)
	assert.Equal(t, "INSERT INTO `flight_prices` VALUES (?,?)", calls[5].query)

	// The final insert carries only the rows of the last file.
	require.Len(t, calls[5].args, 2)
	assert.Equal(t, "AirAsia", calls[5].args[0])
	assert.Equal(t, "3900", calls[5].args[1])
}

func TestLoadDirectorySkipsUnrecognizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "not tabular")
	writeFile(t, dir, "data.json", `{"airline":"Indigo"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))

	st := newFakeStage(t, dir)
	require.NoError(t, st.LoadDirectory(context.Background()))
	assert.Empty(t, fake.calls())
}

func TestLoadDirectoryReadsGzipFiles(t *testing.T) {
	dir := t.TempDir()
	writeGzipFile(t, dir, "fares.csv.gz", "airline,price\nSpiceJet,5200\n")

	st := newFakeStage(t, dir)
	require.NoError(t, st.LoadDirectory(context.Background()))

	calls := fake.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "INSERT INTO `flight_prices` VALUES (?,?)", calls[2].query)
	assert.Equal(t, "SpiceJet", calls[2].args[0])
	assert.Equal(t, "5200", calls[2].args[1])
}

func TestLoadDirectoryHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "airline,price\n")

	st := newFakeStage(t, dir)
	require.NoError(t, st.LoadDirectory(context.Background()))

	// The table is still replaced: drop and create, but no insert.
	calls := fake.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "DROP TABLE IF EXISTS `flight_prices`", calls[0].query)
	assert.Equal(t, "CREATE TABLE `flight_prices` (`airline` TEXT, `price` TEXT)", calls[1].query)
}

func TestLoadDirectoryRejectsFileWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blank.csv", "")

	st := newFakeStage(t, dir)
	err := st.LoadDirectory(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIngestion))
	assert.Contains(t, err.Error(), "no header row")
}

func TestLoadDirectoryMalformedCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.csv", "airline,price\nIndigo,4500,extra\n")

	st := newFakeStage(t, dir)
	err := st.LoadDirectory(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIngestion))
}

func TestLoadDirectoryMissingDataDir(t *testing.T) {
	st := newFakeStage(t, filepath.Join(t.TempDir(), "absent"))

	err := st.LoadDirectory(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIngestion))
	assert.Contains(t, err.Error(), "failed to read data directory")
}

func TestLoadDirectorySurfacesExecError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "airline,price\nIndigo,4500\n")

	st := newFakeStage(t, dir)
	fake.execErr = stderrors.New("table is locked")

	err := st.LoadDirectory(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIngestion))
}

func TestLoadDirectoryBatchesLargeFiles(t *testing.T) {
	dir := t.TempDir()
	content := "airline,price\n"
	for i := 0; i < insertBatch+1; i++ {
		content += "Indigo,4500\n"
	}
	writeFile(t, dir, "big.csv", content)

	st := newFakeStage(t, dir)
	require.NoError(t, st.LoadDirectory(context.Background()))

	// DROP, CREATE, then two inserts: a full batch and the remainder.
	calls := fake.calls()
	require.Len(t, calls, 4)
	assert.Len(t, calls[2].args, insertBatch*2)
	assert.Len(t, calls[3].args, 2)
}
