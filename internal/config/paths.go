package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// HomeEnv overrides the executable directory as the root of all paths.
const HomeEnv = EnvPrefix + "_HOME"

// Paths contains all the application paths
type Paths struct {
	BaseDir      string
	DataDir      string
	DownloadsDir string
	ReportsDir   string
	ProfilesDir  string
	CacheDir     string
	LogsDir      string
	WebDir       string
}

// GetPaths returns the application paths rooted at ADA_HOME, or at the directory
// holding the executable when ADA_HOME is unset.
func GetPaths() (*Paths, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		abs, err := filepath.Abs(home)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", HomeEnv, err)
		}
		return NewPaths(abs), nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return NewPaths(filepath.Dir(exe)), nil
}

// NewPaths lays out the directory tree under base:
//
//	base/
//	  ├── data/
//	  │   ├── downloads/          (attendance summary exports)
//	  │   ├── reports/            (reconciliation workbooks, text and CSV exports)
//	  │   ├── boundary_settings/  (saved boundary profiles)
//	  │   └── cache/
//	  ├── logs/
//	  └── web/
func NewPaths(base string) *Paths {
	dataDir := filepath.Join(base, "data")
	return &Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		DownloadsDir: filepath.Join(dataDir, "downloads"),
		ReportsDir:   filepath.Join(dataDir, "reports"),
		ProfilesDir:  filepath.Join(dataDir, "boundary_settings"),
		CacheDir:     filepath.Join(dataDir, "cache"),
		LogsDir:      filepath.Join(base, "logs"),
		WebDir:       filepath.Join(base, "web"),
	}
}

// Apply replaces directories explicitly configured in cfg. Relative overrides are
// resolved against BaseDir.
func (p *Paths) Apply(cfg PathsConfig) *Paths {
	if cfg.BaseDir != "" {
		*p = *NewPaths(p.resolve(cfg.BaseDir))
	}
	if cfg.DownloadsDir != "" {
		p.DownloadsDir = p.resolve(cfg.DownloadsDir)
	}
	if cfg.ReportsDir != "" {
		p.ReportsDir = p.resolve(cfg.ReportsDir)
	}
	if cfg.ProfilesDir != "" {
		p.ProfilesDir = p.resolve(cfg.ProfilesDir)
	}
	return p
}

func (p *Paths) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.DownloadsDir,
		p.ReportsDir,
		p.ProfilesDir,
		p.CacheDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ReportPath returns the path for a report file
func (p *Paths) ReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// DownloadPath returns the path of a file in the downloads directory
func (p *Paths) DownloadPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// ProfilePath returns the JSON file backing a saved boundary profile.
func (p *Paths) ProfilePath(name string) string {
	return filepath.Join(p.ProfilesDir, name+".json")
}

// LogPath returns the path for a log file. Absolute names are returned unchanged.
func (p *Paths) LogPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(p.LogsDir, filepath.Base(filename))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LogPathResolution logs the resolved directory layout.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("downloads", p.DownloadsDir),
			slog.String("reports", p.ReportsDir),
			slog.String("profiles", p.ProfilesDir),
			slog.String("cache", p.CacheDir),
			slog.String("logs", p.LogsDir),
		))
}
