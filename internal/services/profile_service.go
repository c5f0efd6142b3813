package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/profiles"
)

// BoundarySession is the part of AuditService profiles work against.
type BoundarySession interface {
	Snapshot() (attendance.Boundaries, []attendance.ProgramMapping, string, error)
	ApplyBoundaries(b attendance.Boundaries, mappings []attendance.ProgramMapping) (BoundariesView, error)
}

// SaveProfileRequest names the profile to save. Nil Boundaries saves the
// boundaries of the loaded workbook.
type SaveProfileRequest struct {
	Name        string                `json:"name" validate:"required,max=100"`
	Description string                `json:"description" validate:"max=500"`
	Overwrite   bool                  `json:"overwrite"`
	Boundaries  attendance.Boundaries `json:"program_boundaries,omitempty"`
}

// ProfileService manages saved boundary profiles.
type ProfileService struct {
	store   *profiles.Store
	session BoundarySession
	logger  *slog.Logger
}

func NewProfileService(store *profiles.Store, session BoundarySession, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		store:   store,
		session: session,
		logger:  logger.With(slog.String("component", "profile_service")),
	}
}

// List returns every saved profile sorted by name.
func (s *ProfileService) List(ctx context.Context) ([]profiles.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.List()
}

// Get loads one profile.
func (s *ProfileService) Get(ctx context.Context, name string) (profiles.Profile, error) {
	if err := ctx.Err(); err != nil {
		return profiles.Profile{}, err
	}
	return s.store.Load(name)
}

// Save stores the requested boundaries, or the session's when none are given.
func (s *ProfileService) Save(ctx context.Context, req SaveProfileRequest) (profiles.Profile, error) {
	if err := ctx.Err(); err != nil {
		return profiles.Profile{}, err
	}
	b, mappings := req.Boundaries, []attendance.ProgramMapping(nil)
	if b == nil {
		var err error
		if b, mappings, _, err = s.session.Snapshot(); err != nil {
			return profiles.Profile{}, err
		}
	}
	p := profiles.New(req.Name, req.Description, b, mappings)
	if err := s.store.Save(p, req.Overwrite); err != nil {
		return profiles.Profile{}, err
	}
	return p, nil
}

// Delete removes a profile.
func (s *ProfileService) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.Delete(name)
}

// Apply loads a profile into the session.
func (s *ProfileService) Apply(ctx context.Context, name string) (BoundariesView, error) {
	p, err := s.Get(ctx, name)
	if err != nil {
		return BoundariesView{}, err
	}
	if !p.Boundaries.Any() {
		return BoundariesView{}, ErrNoBoundaries
	}
	view, err := s.session.ApplyBoundaries(p.Boundaries, p.ProgramMappings())
	if err != nil {
		return BoundariesView{}, err
	}
	s.logger.InfoContext(ctx, "profile applied", slog.String("name", p.Name))
	return view, nil
}

// Export writes the session's boundaries as an export document.
func (s *ProfileService) Export(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, mappings, input, err := s.session.Snapshot()
	if err != nil {
		return err
	}
	return profiles.WriteExport(w, b, mappings, filepath.Base(input))
}

// Import reads an export document and applies it to the session.
func (s *ProfileService) Import(ctx context.Context, r io.Reader) (BoundariesView, error) {
	if err := ctx.Err(); err != nil {
		return BoundariesView{}, err
	}
	doc, err := profiles.ReadExport(r)
	if err != nil {
		return BoundariesView{}, err
	}
	view, err := s.session.ApplyBoundaries(doc.Boundaries, doc.ProgramMappings())
	if err != nil {
		return BoundariesView{}, err
	}
	s.logger.InfoContext(ctx, "boundaries imported", slog.String("document", doc.String()))
	return view, nil
}
