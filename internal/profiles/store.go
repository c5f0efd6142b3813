package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

// ErrExists is wrapped by Save when a profile exists and overwrite is false.
var ErrExists = errors.New("profile already exists")

// Store keeps profiles as JSON files in one directory.
type Store struct {
	dir      string
	validate *validator.Validate
	logger   *slog.Logger
	mu       sync.Mutex
}

func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:      dir,
		validate: newValidator(),
		logger:   logger.With(slog.String("component", "profile_store")),
	}
}

// Dir is the directory profiles are stored in.
func (s *Store) Dir() string { return s.dir }

// ValidateName checks name the same way Save does.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewValidationError("profile name is required")
	}
	if strings.ContainsAny(name, invalidNameChars) {
		return apperrors.NewValidationError(fmt.Sprintf("profile name contains invalid characters: %s", invalidNameChars))
	}
	return nil
}

// Save writes p. An existing profile of the same name is replaced only when
// overwrite is set.
func (s *Store) Save(p Profile, overwrite bool) error {
	p.Name = strings.TrimSpace(p.Name)
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if err := s.validate.Struct(p); err != nil {
		return validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(p.Name)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return apperrors.NewAppError(apperrors.ErrTypeConflict,
			fmt.Sprintf("profile %q already exists", p.Name), ErrExists)
	}
	if err := writeJSON(path, p); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("save profile %q", p.Name), err)
	}

	s.logger.Info("profile saved",
		slog.String("name", p.Name),
		slog.Int("programs", len(p.Boundaries)),
		slog.Bool("overwrite", overwrite))
	return nil
}

// Load reads the named profile. The returned name always matches the file.
func (s *Store) Load(name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return Profile{}, err
	}
	return s.read(s.path(name))
}

func (s *Store) read(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		name := stem(path)
		if errors.Is(err, fs.ErrNotExist) {
			return Profile{}, apperrors.NewAppError(apperrors.ErrTypeNotFound,
				fmt.Sprintf("profile %q not found", name), err)
		}
		return Profile{}, apperrors.NewStorageError(fmt.Sprintf("read profile %q", name), err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, apperrors.NewParsingError(fmt.Sprintf("decode profile %q", stem(path)), err)
	}
	p.Name = stem(path)
	return p, nil
}

// List returns every readable profile sorted by name. Unreadable files are
// logged and skipped.
func (s *Store) List() ([]Profile, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, apperrors.NewStorageError("list profiles", err)
	}
	out := make([]Profile, 0, len(matches))
	for _, m := range matches {
		p, err := s.read(m)
		if err != nil {
			s.logger.Warn("skipping unreadable profile", slog.String("file", filepath.Base(m)), slog.String("error", err.Error()))
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the named profile.
func (s *Store) Delete(name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.NewAppError(apperrors.ErrTypeNotFound, fmt.Sprintf("profile %q not found", name), err)
		}
		return apperrors.NewStorageError(fmt.Sprintf("delete profile %q", name), err)
	}
	s.logger.Info("profile deleted", slog.String("name", name))
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".profile-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "hasends":
			msgs = append(msgs, "no boundary data to save")
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	appErr := apperrors.NewValidationError(strings.Join(msgs, "; "))
	appErr.Cause = err
	return appErr
}
