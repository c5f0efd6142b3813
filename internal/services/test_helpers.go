package services

import (
	"github.com/stretchr/testify/mock"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/operations"
)

// MockBoundarySession is a mock for BoundarySession
type MockBoundarySession struct {
	mock.Mock
}

func (m *MockBoundarySession) Snapshot() (attendance.Boundaries, []attendance.ProgramMapping, string, error) {
	args := m.Called()
	b, _ := args.Get(0).(attendance.Boundaries)
	mappings, _ := args.Get(1).([]attendance.ProgramMapping)
	return b, mappings, args.String(2), args.Error(3)
}

func (m *MockBoundarySession) ApplyBoundaries(b attendance.Boundaries, mappings []attendance.ProgramMapping) (BoundariesView, error) {
	args := m.Called(b, mappings)
	return args.Get(0).(BoundariesView), args.Error(1)
}

// MockClientCounter is a mock for ClientCounter
type MockClientCounter struct {
	mock.Mock
}

func (m *MockClientCounter) ClientCount() int {
	return m.Called().Int(0)
}

// MockOperationLister is a mock for OperationLister
type MockOperationLister struct {
	mock.Mock
}

func (m *MockOperationLister) ListOperations() []*operations.OperationState {
	args := m.Called()
	ops, _ := args.Get(0).([]*operations.OperationState)
	return ops
}
