package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/infrastructure/metrics"
)

var ErrMissingUser = errors.New("user id is required")

// Repository persists delivery registrations. Upsert is keyed on
// (user_id, token): re-registering an existing pair is a successful no-op.
type Repository interface {
	Upsert(ctx context.Context, reg *Registration) error
	ListByUser(ctx context.Context, userID string) ([]Registration, error)
}

// Platform abstracts the background delivery agent: permission negotiation,
// agent lifecycle and token subscription. Permission and readiness calls have
// no hard timeout; they wait on user or platform action, bounded only by ctx.
type Platform interface {
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	RegisterAgent(ctx context.Context) error
	WaitReady(ctx context.Context) error
	Subscribe(ctx context.Context) (*Token, error)
	// ActivateWaiting tells an installed-and-waiting agent update to take over.
	ActivateWaiting(ctx context.Context) error
}

type userState struct {
	state        State
	retryPending bool
	retryTimer   *time.Timer
}

// Service drives registration through the permission/agent/token sequence.
// It is safe to call on every app start and sign-in: the token upsert dedupes,
// a denied permission is remembered for the session so the user is never
// nagged, and a pending retry is never stacked by a newer call.
type Service struct {
	repo         Repository
	persistDelay time.Duration
	failureDelay time.Duration
	log          zerolog.Logger

	mu     sync.Mutex
	states map[string]*userState

	// afterFunc is swapped in tests to make retry timing deterministic.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewService(repo Repository, persistDelay, failureDelay time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		persistDelay: persistDelay,
		failureDelay: failureDelay,
		log:          log.With().Str("component", "push-service").Logger(),
		states:       make(map[string]*userState),
		afterFunc:    time.AfterFunc,
	}
}

// EnsureRegistered runs the registration sequence for the user and returns
// the resulting state. Failures never surface to the caller as errors: push
// delivery is an enhancement, so a failed attempt schedules at most one
// silent retry and a failed retry only logs.
func (s *Service) EnsureRegistered(ctx context.Context, userID string, platform Platform) (State, error) {
	if userID == "" {
		return StateUnregistered, ErrMissingUser
	}

	s.mu.Lock()
	st := s.stateLocked(userID)
	switch {
	case st.state == StatePermissionDenied:
		// Terminal for the session. Asking again is nagging.
		s.mu.Unlock()
		return StatePermissionDenied, nil
	case st.retryPending:
		state := st.state
		s.mu.Unlock()
		return state, nil
	}
	st.state = StateAwaitingPermission
	s.mu.Unlock()

	return s.attempt(ctx, userID, platform, false), nil
}

// State reports the session registration state for the user.
func (s *Service) State(userID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		return st.state
	}
	return StateUnregistered
}

// Registrations lists the user's persisted delivery routes.
func (s *Service) Registrations(ctx context.Context, userID string) ([]Registration, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.repo.ListByUser(ctx, userID)
}

// HandleAgentUpdate activates a waiting agent update and reports whether the
// client must reload so the active agent and loaded code agree on schema.
func (s *Service) HandleAgentUpdate(ctx context.Context, userID string, platform Platform) (bool, error) {
	if err := platform.ActivateWaiting(ctx); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("agent activation failed")
		return false, fmt.Errorf("activate waiting agent: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("agent update activated, reload required")
	return true, nil
}

// Forget drops the session state for the user, for sign-out. A pending retry
// is cancelled; a denied memo is cleared so the next session may ask again.
func (s *Service) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok && st.retryTimer != nil {
		st.retryTimer.Stop()
	}
	delete(s.states, userID)
}

func (s *Service) attempt(ctx context.Context, userID string, platform Platform, isRetry bool) State {
	perm, err := platform.Permission(ctx)
	if err != nil {
		return s.fail(userID, platform, err, s.failureDelay, isRetry)
	}
	if perm == PermissionUndetermined {
		perm, err = platform.RequestPermission(ctx)
		if err != nil {
			return s.fail(userID, platform, err, s.failureDelay, isRetry)
		}
	}
	if perm == PermissionDenied {
		s.setState(userID, StatePermissionDenied)
		metrics.RecordPushRegistration("denied")
		return StatePermissionDenied
	}
	if perm != PermissionGranted {
		// Still undetermined: the prompt has not been answered. Stay put so a
		// later call can pick up from the start without a denied memo.
		s.setState(userID, StateAwaitingPermission)
		return StateAwaitingPermission
	}

	// Token subscription before the agent controls delivery races the
	// platform; wait for readiness first.
	if err := platform.RegisterAgent(ctx); err != nil {
		return s.fail(userID, platform, err, s.failureDelay, isRetry)
	}
	if err := platform.WaitReady(ctx); err != nil {
		return s.fail(userID, platform, err, s.failureDelay, isRetry)
	}
	s.setState(userID, StateAwaitingToken)

	token, err := platform.Subscribe(ctx)
	if err != nil {
		return s.fail(userID, platform, err, s.failureDelay, isRetry)
	}

	reg := &Registration{
		UserID:       userID,
		Token:        token.Value,
		Platform:     token.Platform,
		Subscription: token.Subscription,
	}
	if err := s.repo.Upsert(ctx, reg); err != nil {
		return s.fail(userID, platform, err, s.persistDelay, isRetry)
	}

	s.clearRetry(userID)
	s.setState(userID, StateTokenPersisted)
	metrics.RecordPushRegistration("persisted")
	s.log.Info().Str("user_id", userID).Str("platform", reg.Platform).Msg("push registration persisted")
	return StateTokenPersisted
}

// fail handles any failure point. The first failure schedules exactly one
// retry after the given delay; a failed retry logs and stops.
func (s *Service) fail(userID string, platform Platform, cause error, delay time.Duration, isRetry bool) State {
	if isRetry {
		s.clearRetry(userID)
		s.setState(userID, StateUnregistered)
		metrics.RecordPushRegistration("abandoned")
		s.log.Error().Err(cause).Str("user_id", userID).Msg("push registration retry failed, giving up")
		return StateUnregistered
	}

	s.mu.Lock()
	st := s.stateLocked(userID)
	if st.retryPending {
		// An earlier failure already owns the retry timer.
		s.mu.Unlock()
		return st.state
	}
	st.state = StateRetryBackoff
	st.retryPending = true
	st.retryTimer = s.afterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.attempt(ctx, userID, platform, true)
	})
	s.mu.Unlock()

	metrics.RecordPushRegistration("retry_scheduled")
	s.log.Warn().Err(cause).Str("user_id", userID).Dur("retry_in", delay).Msg("push registration failed, retry scheduled")
	return StateRetryBackoff
}

func (s *Service) stateLocked(userID string) *userState {
	st, ok := s.states[userID]
	if !ok {
		st = &userState{state: StateUnregistered}
		s.states[userID] = st
	}
	return st
}

func (s *Service) setState(userID string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateLocked(userID).state = state
}

func (s *Service) clearRetry(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(userID)
	st.retryPending = false
	st.retryTimer = nil
}
