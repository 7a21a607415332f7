package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
)

// State is the lifecycle state of the service.
type State int

// Lifecycle states.
const (
	StateNew State = iota
	StateStarting
	StateStartFailed
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateStartFailed:
		return "startFailed"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is published on every state transition.
type Event struct {
	Service string
	State   State
}

// Hooks are called on state transitions. Both are optional.
type Hooks struct {
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// Service manages the lifecycle of a component and runs its health checks while it is running.
type Service struct {
	name   string
	hooks  Hooks
	checks []HealthCheck

	// opMu serializes Start and Stop.
	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	subscribers []chan Event
	results     map[string]HealthResult

	stopHealth context.CancelFunc
	healthDone chan struct{}
}

// New creates service.
func New(name string, hooks Hooks, checks ...HealthCheck) *Service {
	return &Service{
		name:    name,
		hooks:   hooks,
		checks:  checks,
		state:   StateNew,
		results: map[string]HealthResult{},
	}
}

// Name returns the name of the service.
func (s *Service) Name() string {
	return s.name
}

// State returns current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Subscribe returns the channel state transitions are published to.
// Events are dropped for subscribers not keeping up with the buffer.
func (s *Service) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Start starts the service. It does nothing if service is already running.
// If start hook fails, service is stopped.
func (s *Service) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	switch s.State() {
	case StateStarting, StateRunning:
		return nil
	case StateStopping, StateStartFailed:
		return errors.Errorf("service %s cannot be started in state %s", s.name, s.State())
	}

	s.setState(ctx, StateStarting)
	if s.hooks.Start != nil {
		if err := s.hooks.Start(ctx); err != nil {
			s.setState(ctx, StateStartFailed)
			if stopErr := s.stop(ctx); stopErr != nil {
				logger.Get(ctx).Error("Stopping failed service failed", zap.String("service", s.name),
					zap.Error(stopErr))
			}
			return errors.Wrapf(err, "starting service %s failed", s.name)
		}
	}
	s.setState(ctx, StateRunning)
	s.startHealthChecks(ctx)
	return nil
}

// Stop stops the service. It does nothing if service is already stopped.
func (s *Service) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.stop(ctx)
}

func (s *Service) stop(ctx context.Context) error {
	switch s.State() {
	case StateStopping, StateStopped:
		return nil
	case StateNew:
		s.setState(ctx, StateStopped)
		return nil
	}

	s.setState(ctx, StateStopping)
	s.stopHealthChecks()

	var err error
	if s.hooks.Stop != nil {
		err = s.hooks.Stop(ctx)
	}
	s.setState(ctx, StateStopped)
	return errors.Wrapf(err, "stopping service %s failed", s.name)
}

func (s *Service) setState(ctx context.Context, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Get(ctx).Info("Service state changed", zap.String("service", s.name),
		zap.Stringer("from", s.state), zap.Stringer("to", state))

	s.state = state
	event := Event{Service: s.name, State: state}
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
