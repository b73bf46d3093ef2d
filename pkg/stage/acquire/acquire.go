// Package acquire implements the archive acquisition stage: downloading
// the remote fare dataset archive and extracting it into the local data
// directory. Both operations are idempotent: a present, non-empty
// archive short-circuits the download, and extraction simply overwrites
// previously extracted entries.
package acquire

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/farepipe/farepipe/pkg/config"
	"github.com/farepipe/farepipe/pkg/errors"
)

// driveURLFormat is the direct-download URL form for a Google Drive file ID.
const driveURLFormat = "https://drive.google.com/uc?id=%s&export=download"

// Config holds the acquisition parameters for one pipeline run.
type Config struct {
	FileID      string // remote file identifier
	ArchivePath string // local path of the downloaded ZIP archive
	ExtractDir  string // directory the archive is unpacked into
}

// ConfigFrom derives the acquisition view from the pipeline config.
func ConfigFrom(pc *config.PipelineConfig) Config {
	return Config{
		FileID:      pc.GDrive.FileID,
		ArchivePath: pc.GDrive.DownloadFilePath,
		ExtractDir:  pc.GDrive.ExtractDir,
	}
}

// Stage downloads and extracts the dataset archive.
type Stage struct {
	cfg     Config
	fetcher Fetcher
	logger  *zap.Logger
}

// NewStage creates an acquisition stage. A nil fetcher selects the
// production HTTP fetcher.
func NewStage(cfg Config, fetcher Fetcher, logger *zap.Logger) *Stage {
	if fetcher == nil {
		fetcher = &HTTPFetcher{}
	}
	return &Stage{cfg: cfg, fetcher: fetcher, logger: logger}
}

// DownloadArchive fetches the remote archive to the configured path. If
// the archive already exists with size greater than zero the network is
// not touched at all and the call returns successfully. After a fetch,
// a path that is missing or zero bytes fails the post-condition: an
// exists-but-empty file left behind by a broken fetch must not pass.
func (s *Stage) DownloadArchive(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.ArchivePath), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to create archive directory")
	}

	if info, err := os.Stat(s.cfg.ArchivePath); err == nil && info.Size() > 0 {
		s.logger.Info("archive already exists, skipping download",
			zap.String("path", s.cfg.ArchivePath),
			zap.Int64("size_bytes", info.Size()))
		return nil
	}

	url := fmt.Sprintf(driveURLFormat, s.cfg.FileID)
	s.logger.Info("downloading archive",
		zap.String("file_id", s.cfg.FileID),
		zap.String("path", s.cfg.ArchivePath))

	if err := s.fetcher.Fetch(ctx, url, s.cfg.ArchivePath); err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "archive download failed").
			WithDetail("file_id", s.cfg.FileID)
	}

	info, err := os.Stat(s.cfg.ArchivePath)
	if err != nil || info.Size() == 0 {
		return errors.New(errors.ErrorTypeAcquisition, "download failed or produced empty file").
			WithDetail("path", s.cfg.ArchivePath)
	}

	s.logger.Info("archive downloaded", zap.Int64("size_bytes", info.Size()))
	return nil
}

// ExtractArchive unpacks every entry of the archive into ExtractDir,
// preserving relative paths. The archive is validated before any write
// happens under ExtractDir; a missing or empty archive fails with an
// archive_not_found error. A corrupt archive surfaces the underlying
// decompression failure.
func (s *Stage) ExtractArchive(ctx context.Context) error {
	info, err := os.Stat(s.cfg.ArchivePath)
	if err != nil || info.Size() == 0 {
		return errors.New(errors.ErrorTypeArchiveNotFound, "archive is missing or empty, cannot extract").
			WithDetail("path", s.cfg.ArchivePath)
	}

	reader, err := zip.OpenReader(s.cfg.ArchivePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to open archive")
	}
	defer reader.Close()

	if err := os.MkdirAll(s.cfg.ExtractDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to create extraction directory")
	}

	for _, entry := range reader.File {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrorTypeAcquisition, "extraction canceled")
		default:
		}
		if err := s.extractEntry(entry); err != nil {
			return err
		}
	}

	s.logger.Info("archive extracted",
		zap.Int("entries", len(reader.File)),
		zap.String("extract_dir", s.cfg.ExtractDir))
	return nil
}

func (s *Stage) extractEntry(entry *zip.File) error {
	target := filepath.Join(s.cfg.ExtractDir, entry.Name) //nolint:gosec // G305: escape checked below

	// Entries must stay inside the extraction directory.
	if !strings.HasPrefix(target, filepath.Clean(s.cfg.ExtractDir)+string(os.PathSeparator)) {
		return errors.New(errors.ErrorTypeAcquisition, "archive entry escapes extraction directory").
			WithDetail("entry", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to create archive directory entry")
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to create entry parent directory")
	}

	rc, err := entry.Open()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to open archive entry").
			WithDetail("entry", entry.Name)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, entry.Mode()) //nolint:gosec // G304: target validated above
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to create extracted file")
	}

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // G110: archive comes from the configured trusted source
		out.Close()
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to decompress archive entry").
			WithDetail("entry", entry.Name)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeAcquisition, "failed to finalize extracted file")
	}
	return nil
}
