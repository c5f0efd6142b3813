package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test so config file discovery
// does not pick up files from the package directory.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "TK-8", cfg.Audit.Location)
				assert.Equal(t, "2025-2026", cfg.Audit.SchoolYear)
				assert.Equal(t, "CCCS", cfg.Audit.SchoolName)
				assert.Equal(t, "PrintMonthlyAttendanceSummaryTotals_*.xlsx", cfg.Audit.InputPattern)
				assert.Equal(t, "Template- Apportionment Summary", cfg.Audit.Worksheet)
				assert.Equal(t, "2025-2026_I4C_ADA_Reconciliation.xlsx", cfg.Audit.OutputFile)
				assert.Equal(t, 35, cfg.Audit.Layout().ValueColumn)
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Empty(t, cfg.Database.DSN)
				assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
			},
		},
		{
			name: "file overlays defaults",
			file: "server:\n  port: 9090\naudit:\n  school_name: Twin Rivers\n  columns:\n    value: 30\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "Twin Rivers", cfg.Audit.SchoolName)
				assert.Equal(t, "TK-8", cfg.Audit.Location)
				assert.Equal(t, 30, cfg.Audit.Layout().ValueColumn)
				assert.Equal(t, 1, cfg.Audit.Layout().ProgramColumn)
			},
		},
		{
			name: "env wins over file",
			file: "server:\n  port: 9090\n",
			env: map[string]string{
				"ADA_SERVER_PORT":       "7070",
				"ADA_AUDIT_SCHOOL_YEAR": "2026-2027",
				"ADA_CACHE_TTL":         "1h",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "2026-2027", cfg.Audit.SchoolYear)
				assert.Equal(t, time.Hour, cfg.Cache.TTL)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"ADA_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "invalid driver",
			env:     map[string]string{"ADA_DATABASE_DRIVER": "sqlite"},
			wantErr: true,
		},
		{
			name:    "invalid concurrency",
			file:    "audit:\n  concurrency: 0\n",
			wantErr: true,
		},
		{
			name:    "malformed file",
			file:    "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			chdir(t, dir)
			t.Setenv("ADA_CONFIG", "")
			if tt.file != "" {
				path := filepath.Join(dir, "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadExplicitConfigPath(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audit:\n  location: K-12\n"), 0644))
	t.Setenv("ADA_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "K-12", cfg.Audit.Location)
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		output     string
		wantFormat string
		wantErr    bool
	}{
		{name: "text to stderr", format: "text", output: "stderr", wantFormat: "text"},
		{name: "empty format defaults to json", format: "", output: "stdout", wantFormat: "json"},
		{name: "unknown format", format: "xml", output: "stdout", wantErr: true},
		{name: "unknown output", format: "json", output: "syslog", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Logging.Format = tt.format
			cfg.Logging.Output = tt.output
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, cfg.Logging.Format)
		})
	}
}

func TestServerAddress(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", ServerConfig{Host: "127.0.0.1", Port: 8080}.Address())
	assert.Equal(t, ":9000", ServerConfig{Port: 9000}.Address())
}
