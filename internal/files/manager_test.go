package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shwndea/automated-padc-processor/internal/config"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

func TestManager_SaveUpload(t *testing.T) {
	paths := config.NewPaths(t.TempDir())
	logger, logs := testutil.NewTestLogger(t)
	m := NewManager(paths, logger)

	path, err := m.SaveUpload("../../etc/ada.xlsx", strings.NewReader("workbook"), 0)
	require.NoError(t, err)
	assert.Equal(t, paths.DownloadPath("ada.xlsx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))
	assert.True(t, logs.ContainsMessage("workbook uploaded"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary upload file left behind")
}

func TestManager_SaveUploadRejects(t *testing.T) {
	m := NewManager(config.NewPaths(t.TempDir()), nil)

	tests := []struct {
		name    string
		file    string
		content string
		limit   int64
	}{
		{"wrong extension", "ada.csv", "x", 0},
		{"empty name", "  ", "x", 0},
		{"lock file", "~$ada.xlsx", "x", 0},
		{"too large", "ada.xlsx", "0123456789", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.SaveUpload(tt.file, strings.NewReader(tt.content), tt.limit)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation), "got %v", err)
		})
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ada.xlsx", "ada.xlsx", false},
		{`C:\Users\me\ada.xlsx`, "ada.xlsx", false},
		{"../ada.xlsx", "ada.xlsx", false},
		{"..", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := SafeName(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
