package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager orchestrates audit runs
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster
	tracer      *Tracer
	logger      *slog.Logger

	// runs in flight
	mu         sync.RWMutex
	operations map[string]*OperationState
}

// NewManager creates a manager. Nil registry, config or logger get defaults.
func NewManager(hub WebSocketHub, registry *Registry, config *Config, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: NewStatusBroadcaster(hub, logger),
		logger:      logger.With(slog.String("component", "operations_manager")),
		operations:  make(map[string]*OperationState),
	}
}

// RegisterStep registers a step with the manager
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// SetTracer enables span and metric recording. nil disables it.
func (m *Manager) SetTracer(t *Tracer) {
	m.tracer = t
}

// GetRegistry returns the step registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs the requested steps against req.Audit. The audit is mutated in
// place and returned on the response.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	audit := req.Audit
	if audit == nil {
		audit = &Audit{}
	}

	state := NewOperationState(req.ID, audit)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	state.setCancel(cancel)

	m.storeOperation(state)
	defer m.removeOperation(req.ID)

	runCtx, span := m.tracer.StartRun(runCtx, req.ID, audit.Input)
	m.tracer.TrackActive(runCtx, 1)
	defer m.tracer.TrackActive(runCtx, -1)

	steps, err := m.registry.Select(req.Steps)
	if err != nil {
		m.logger.ErrorContext(runCtx, "operation_error",
			slog.String("operation_id", req.ID),
			slog.String("error", err.Error()))
		state.Fail(err)
		m.tracer.EndRun(runCtx, span, audit, state.Duration(), err)
		return m.createResponse(state, audit), err
	}

	snapshots := make([]StepSnapshot, len(steps))
	for i, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		snapshots[i] = StepSnapshot{ID: step.ID(), Name: step.Name(), Milestone: StepMilestones[step.ID()]}
	}
	m.broadcaster.CreateOperation(req.ID, snapshots)

	m.logger.InfoContext(runCtx, "operation_start",
		slog.String("operation_id", req.ID),
		slog.String("input", audit.Input),
		slog.Int("step_count", len(steps)))

	state.Start()
	m.broadcaster.StartOperation(req.ID)

	err = m.executeSequential(runCtx, state, steps)

	if err != nil {
		if state.CurrentStatus() == OperationStatusCancelled {
			m.broadcaster.CancelOperation(req.ID)
		} else {
			m.broadcaster.FailOperation(req.ID, err)
		}
		state.Fail(err)
	} else {
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Audit completed successfully")
	}

	m.logger.InfoContext(runCtx, "operation_complete",
		slog.String("operation_id", req.ID),
		slog.String("status", string(state.CurrentStatus())),
		slog.Duration("duration", state.Duration()))
	m.tracer.EndRun(runCtx, span, audit, state.Duration(), err)

	return m.createResponse(state, audit), err
}

// executeSequential executes steps one by one
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	var failed error
	for i, step := range steps {
		if ctx.Err() != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID())
		}

		stepState := state.GetStep(step.ID())
		if stepState.CurrentStatus() == StepStatusSkipped {
			continue
		}

		m.logger.InfoContext(ctx, "executing_step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.logger.ErrorContext(ctx, "step_error",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			if !m.config.ContinueOnError {
				m.skipDependentSteps(state, steps, step.ID())
				return err
			}
			if failed == nil {
				failed = err
			}
		}
	}
	return failed
}

// executeStep executes a single step with retry logic
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStep(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(err.Error())
		m.broadcaster.SkipStep(state.ID, step.ID(), err.Error())
		return err
	}

	if err := step.Validate(state); err != nil {
		verr := NewValidationError(step.ID(), err.Error())
		stepState.Fail(verr)
		m.broadcaster.FailStep(state.ID, step.ID(), verr)
		return verr
	}

	timeout := m.config.GetStepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retry := m.config.RetryConfig
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		stepState.Start()
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 1, "Step started")

		spanCtx, span := m.tracer.StartStep(stepCtx, state.ID, step.ID())
		start := time.Now()
		err := step.Execute(spanCtx, state)
		duration := time.Since(start)
		m.tracer.EndStep(spanCtx, span, step.ID(), duration, err)

		if err == nil && stepCtx.Err() == nil {
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed successfully")
			m.logger.InfoContext(ctx, "step_complete",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.Duration("duration", duration))
			return nil
		}
		if err == nil {
			err = stepCtx.Err()
		}

		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			err = NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(err)
			m.broadcaster.FailStep(state.ID, step.ID(), err)
			return err
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			err = NewCancellationError(step.ID())
			stepState.Fail(err)
			m.broadcaster.FailStep(state.ID, step.ID(), err)
			return err
		}

		lastErr = err
		if !IsRetryable(err) || attempt >= retry.MaxAttempts {
			break
		}

		delay := m.calculateRetryDelay(attempt, retry)
		m.logger.WarnContext(ctx, "step_retry",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-stepCtx.Done():
			err := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(err)
			m.broadcaster.FailStep(state.ID, step.ID(), err)
			return err
		}
	}

	wrapped := WrapError(lastErr, step.ID(), "step execution failed")
	stepState.Fail(wrapped)
	m.broadcaster.FailStep(state.ID, step.ID(), wrapped)
	return wrapped
}

// skipDependentSteps marks every pending step that depends on failedID as skipped
func (m *Manager) skipDependentSteps(state *OperationState, steps []Step, failedID string) {
	for _, step := range steps {
		for _, dep := range step.GetDependencies() {
			if dep != failedID {
				continue
			}
			stepState := state.GetStep(step.ID())
			if stepState != nil && stepState.CurrentStatus() == StepStatusPending {
				reason := fmt.Sprintf("Dependency %s failed", failedID)
				stepState.Skip(reason)
				m.broadcaster.SkipStep(state.ID, step.ID(), reason)
				m.skipDependentSteps(state, steps, step.ID())
			}
			break
		}
	}
}

// checkDependencies requires every dependency that is part of this run to have
// completed. Dependencies outside the run are assumed settled by an earlier one.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStep(dep)
		if depState == nil {
			continue
		}
		if status := depState.CurrentStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

// calculateRetryDelay grows the delay geometrically up to MaxDelay
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

func (m *Manager) createResponse(state *OperationState, audit *Audit) *OperationResponse {
	clone := state.Clone()
	resp := &OperationResponse{
		ID:       clone.ID,
		Status:   clone.Status,
		Duration: clone.Duration(),
		Steps:    clone.Steps,
		Audit:    audit,
	}
	if clone.Error != nil {
		resp.Error = clone.Error.Error()
	}
	return resp
}

// GetOperation retrieves the state of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return state.Clone(), nil
}

// ListOperations returns all active operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		operations = append(operations, state.Clone())
	}
	return operations
}

// CancelOperation cancels a running operation
func (m *Manager) CancelOperation(id string) error {
	m.mu.RLock()
	state, exists := m.operations[id]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	state.Cancel()
	return nil
}

func (m *Manager) storeOperation(state *OperationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}

// Close stops the broadcaster.
func (m *Manager) Close() {
	m.broadcaster.Stop()
}
