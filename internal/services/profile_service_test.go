package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apierrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/profiles"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

func newProfileService(t *testing.T) (*ProfileService, *MockBoundarySession) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	session := &MockBoundarySession{}
	return NewProfileService(profiles.NewStore(t.TempDir(), logger), session, logger), session
}

func sessionBoundaries() attendance.Boundaries {
	return attendance.Boundaries{
		attendance.ProgC:   {Start: attendance.Row(2), Stop: attendance.Row(4)},
		attendance.ProgCTK: {Start: attendance.Row(5), Stop: attendance.Row(5)},
		attendance.ProgJ:   {},
	}
}

func TestProfileServiceSaveFromSession(t *testing.T) {
	svc, session := newProfileService(t)
	ctx := context.Background()
	session.On("Snapshot").Return(sessionBoundaries(), attendance.DefaultProgramMappings(), "/data/in.xlsx", nil).Once()

	p, err := svc.Save(ctx, SaveProfileRequest{Name: " fall ", Description: "first pass"})
	require.NoError(t, err)
	assert.Equal(t, "fall", p.Name)

	got, err := svc.Get(ctx, "fall")
	require.NoError(t, err)
	assert.Equal(t, 4, *got.Boundaries[attendance.ProgC].Stop)
	assert.Equal(t, attendance.ProgC, got.Mappings["Program C Charter Resident"])

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.Save(ctx, SaveProfileRequest{Name: "fall", Boundaries: sessionBoundaries()})
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeConflict))
	assert.ErrorIs(t, err, profiles.ErrExists)

	_, err = svc.Save(ctx, SaveProfileRequest{Name: "fall", Boundaries: sessionBoundaries(), Overwrite: true})
	assert.NoError(t, err)
	session.AssertExpectations(t)
}

func TestProfileServiceSaveErrors(t *testing.T) {
	svc, session := newProfileService(t)
	ctx := context.Background()

	session.On("Snapshot").Return(nil, nil, "", ErrNoWorkbook).Once()
	_, err := svc.Save(ctx, SaveProfileRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrNoWorkbook)

	_, err = svc.Save(ctx, SaveProfileRequest{Name: "a/b", Boundaries: sessionBoundaries()})
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))

	_, err = svc.Save(ctx, SaveProfileRequest{Name: "empty", Boundaries: attendance.Boundaries{attendance.ProgC: {}}})
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))
}

func TestProfileServiceApply(t *testing.T) {
	svc, session := newProfileService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, SaveProfileRequest{Name: "spring", Boundaries: sessionBoundaries()})
	require.NoError(t, err)

	want := BoundariesView{Input: "in.xlsx"}
	session.On("ApplyBoundaries", mock.MatchedBy(func(b attendance.Boundaries) bool {
		return b[attendance.ProgC].Stop != nil && *b[attendance.ProgC].Stop == 4
	}), mock.Anything).Return(want, nil).Once()

	view, err := svc.Apply(ctx, "spring")
	require.NoError(t, err)
	assert.Equal(t, want, view)

	_, err = svc.Apply(ctx, "missing")
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeNotFound))
	session.AssertExpectations(t)
}

func TestProfileServiceDelete(t *testing.T) {
	svc, _ := newProfileService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, SaveProfileRequest{Name: "old", Boundaries: sessionBoundaries()})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "old"))

	err = svc.Delete(ctx, "old")
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeNotFound))
}

func TestProfileServiceExportImport(t *testing.T) {
	svc, session := newProfileService(t)
	ctx := context.Background()
	session.On("Snapshot").Return(sessionBoundaries(), attendance.DefaultProgramMappings(), "/data/in.xlsx", nil).Once()

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	info := doc["export_info"].(map[string]interface{})
	assert.Equal(t, "1.0", info["version"])
	assert.Equal(t, "in.xlsx", info["source"])

	session.On("ApplyBoundaries", mock.AnythingOfType("attendance.Boundaries"), mock.Anything).
		Return(BoundariesView{Input: "in.xlsx"}, nil).Once()
	view, err := svc.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, "in.xlsx", view.Input)

	_, err = svc.Import(ctx, strings.NewReader(`{"program_mappings":{}}`))
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))

	_, err = svc.Import(ctx, strings.NewReader(`{`))
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeParsing))
	session.AssertExpectations(t)
}
