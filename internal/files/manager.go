package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shwndea/automated-padc-processor/internal/config"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

// Manager stores files under the configured directories.
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{paths: paths, logger: logger.With(slog.String("component", "file_manager"))}
}

// SaveUpload copies r into the downloads directory as name and returns the
// stored path. At most limit bytes are accepted when limit is positive.
func (m *Manager) SaveUpload(name string, r io.Reader, limit int64) (string, error) {
	clean, err := SafeName(name)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(clean), ".xlsx") {
		return "", apperrors.NewValidationError("only .xlsx workbooks are accepted")
	}

	dst := m.paths.DownloadPath(clean)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", apperrors.NewStorageError("create downloads directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", apperrors.NewStorageError("create upload file", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", apperrors.NewStorageError("write upload", err)
	}
	if limit > 0 && n > limit {
		return "", apperrors.NewValidationError(fmt.Sprintf("upload exceeds %d bytes", limit))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", apperrors.NewStorageError("store upload", err)
	}

	m.logger.Info("workbook uploaded",
		slog.String("name", clean),
		slog.String("path", dst),
		slog.Int64("size_bytes", n))
	return dst, nil
}

// ReportPath resolves a report file name inside the reports directory.
func (m *Manager) ReportPath(name string) (string, error) {
	clean, err := SafeName(name)
	if err != nil {
		return "", err
	}
	return m.paths.ReportPath(clean), nil
}

// SafeName reduces name to its base and rejects traversal or empty names.
func SafeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if base == "" || base == "." || base == ".." || base == "/" || strings.HasPrefix(base, "~$") {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid file name %q", name))
	}
	return base, nil
}
