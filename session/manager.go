// Package session owns the console's authentication state: the stored
// bearer token and the server-confirmed user behind it.
//
// All mutation goes through Initialize, Login, RefreshUser and Logout.
// Anything that fails while resolving identity ends in the unauthenticated
// state; the session never holds a user it could not confirm.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pilab-dev/shadow-admin/cache"
	"github.com/pilab-dev/shadow-admin/domain"
	serrors "github.com/pilab-dev/shadow-admin/errors"
	"github.com/pilab-dev/shadow-admin/internal/metrics"
	"github.com/pilab-dev/shadow-admin/log"
	"github.com/pilab-dev/shadow-admin/token"
	"github.com/pilab-dev/shadow-admin/tracing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Backend is the part of the REST backend the session depends on.
type Backend interface {
	// Authenticate exchanges credentials for a bearer token.
	Authenticate(ctx context.Context, email, password string) (string, error)
	// FetchProfile returns the user the token belongs to.
	FetchProfile(ctx context.Context, token string) (*domain.UserRecord, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records transitions in sm.
func WithMetrics(sm *metrics.SessionMetrics) Option {
	return func(m *Manager) { m.metrics = sm }
}

// WithInspector replaces the default token inspector, typically to inject
// a fixed clock.
func WithInspector(i *token.Inspector) Option {
	return func(m *Manager) { m.inspector = i }
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Manager is the process-wide session. Create one with NewManager and pass
// it to whatever needs to read or change the session.
type Manager struct {
	store     cache.TokenStore
	backend   Backend
	inspector *token.Inspector
	logger    log.Logger
	metrics   *metrics.SessionMetrics
	tracer    trace.Tracer

	// opMu serializes Initialize, Login and RefreshUser.
	opMu      sync.Mutex
	loginBusy atomic.Bool

	// mu guards the fields below and every write to store.
	mu    sync.Mutex
	state State
	user  *domain.UserRecord
	// gen is bumped by every logout. An operation that saw an older gen
	// drops its result.
	gen uint64
	// ticket numbers commits. Their side effects run in ticket order.
	ticket uint64

	pubMu   sync.Mutex
	pubCond *sync.Cond
	pubNext uint64

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// NewManager creates a Manager in StateUnknown.
func NewManager(store cache.TokenStore, backend Backend, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		backend: backend,
		logger:  log.NewNopLogger(),
		tracer:  tracing.Tracer(),
		state:   StateUnknown,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.inspector == nil {
		m.inspector = token.NewInspector(nil)
	}
	m.pubCond = sync.NewCond(&m.pubMu)
	m.logger = m.logger.With(log.Fields{"component": "session"})
	return m
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, User: m.user.Clone()}
}

// Subscribe registers fn for every transition and returns a function that
// removes it. fn runs synchronously on the goroutine that made the
// transition, in commit order. It may call Snapshot but must not call
// Initialize, Login, RefreshUser or Logout.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subMu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Manager) publish(ev Event) {
	m.subMu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// nextTicket is called with mu held.
func (m *Manager) nextTicket() uint64 {
	t := m.ticket
	m.ticket++
	return t
}

// deliver runs fn once every earlier ticket has been delivered.
func (m *Manager) deliver(ticket uint64, fn func()) {
	m.pubMu.Lock()
	for m.pubNext != ticket {
		m.pubCond.Wait()
	}
	m.pubMu.Unlock()

	defer func() {
		m.pubMu.Lock()
		m.pubNext++
		m.pubCond.Broadcast()
		m.pubMu.Unlock()
	}()
	fn()
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Initialize reconciles the stored token with the backend. It always
// leaves the session in a settled state; the returned error is non-nil
// only when the token store itself could not be read.
func (m *Manager) Initialize(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "session.Initialize")
	defer span.End()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()

	tok, ok, err := m.store.Get(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read stored token: %w", err)
		m.logger.Error(ctx, "Token store unreadable, starting logged out", err)
		m.end(ctx, gen, ReasonStoreFailed, err, true)
		recordError(span, err)
		return err
	}
	if !ok {
		m.logger.Debug(ctx, "No stored token")
		m.end(ctx, gen, ReasonNoToken, nil, false)
		return nil
	}

	if err := m.refresh(ctx, gen, tok, ReasonRestored); err != nil {
		recordError(span, err)
	}
	return nil
}

// Login authenticates, stores the returned token and loads the user.
// When the backend rejects the credentials nothing is changed. Only one
// Login may be outstanding; a second one gets ErrOperationInFlight.
func (m *Manager) Login(ctx context.Context, email, password string) (err error) {
	if !m.loginBusy.CompareAndSwap(false, true) {
		return serrors.ErrOperationInFlight
	}
	defer m.loginBusy.Store(false)

	ctx, span := m.tracer.Start(ctx, "session.Login")
	defer span.End()
	defer func() {
		if err != nil {
			m.metrics.LoginFailed()
			recordError(span, err)
			return
		}
		m.metrics.LoginSucceeded()
	}()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()

	tok, err := m.backend.Authenticate(ctx, email, password)
	if err != nil {
		m.logger.Warn(ctx, "Login rejected", log.Fields{"email": email, "error": err.Error()})
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Info(ctx, "Logout during login, discarding token")
		return serrors.ErrSessionChanged
	}
	if err := m.store.Set(ctx, tok); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to store token: %w", err)
	}
	m.mu.Unlock()

	m.logger.Debug(ctx, "Token stored", log.Fields{"token": cache.Fingerprint(tok)})
	return m.refresh(ctx, gen, tok, ReasonLogin)
}

// RefreshUser reloads the user for the stored token. Any failure logs out.
func (m *Manager) RefreshUser(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "session.RefreshUser")
	defer span.End()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()

	tok, ok, err := m.store.Get(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read stored token: %w", err)
		m.metrics.RefreshFailed()
		m.end(ctx, gen, ReasonStoreFailed, err, true)
		recordError(span, err)
		return err
	}
	if !ok {
		m.metrics.RefreshFailed()
		m.end(ctx, gen, ReasonNoToken, serrors.ErrNotAuthenticated, false)
		recordError(span, serrors.ErrNotAuthenticated)
		return serrors.ErrNotAuthenticated
	}

	if err := m.refresh(ctx, gen, tok, ReasonRefreshed); err != nil {
		recordError(span, err)
		return err
	}
	return nil
}

// refresh checks tok locally, then fetches the profile. Callers hold opMu.
func (m *Manager) refresh(ctx context.Context, gen uint64, tok string, onSuccess Reason) error {
	claims, err := m.inspector.Decode(tok)
	if err != nil {
		// Decode failures are handled exactly like expiry.
		m.logger.Warn(ctx, "Stored token is malformed, logging out", log.Fields{"error": err.Error()})
		m.metrics.RefreshFailed()
		m.end(ctx, gen, ReasonTokenInvalid, err, true)
		return err
	}
	if m.inspector.Expired(claims) {
		m.logger.Info(ctx, "Stored token expired, logging out", log.Fields{
			"user_id": claims.SubjectID(), "expired_at": claims.Expiry(),
		})
		m.metrics.RefreshFailed()
		m.end(ctx, gen, ReasonTokenExpired, serrors.ErrTokenExpired, true)
		return serrors.ErrTokenExpired
	}

	user, err := m.backend.FetchProfile(ctx, tok)
	if err == nil && user == nil {
		err = errors.New("backend returned an empty profile")
	}
	if err != nil {
		if m.generation() != gen {
			return serrors.ErrSessionChanged
		}
		m.logger.Error(ctx, "Failed to refresh user, logging out", err, log.Fields{"token": cache.Fingerprint(tok)})
		m.metrics.RefreshFailed()
		m.end(ctx, gen, ReasonRefreshFailed, err, true)
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Info(ctx, "Logout during profile fetch, discarding user")
		return serrors.ErrSessionChanged
	}
	from := m.state
	m.user = user.Clone()
	m.state = StateAuthenticated
	snap := Snapshot{State: m.state, User: m.user.Clone()}
	ticket := m.nextTicket()
	m.mu.Unlock()

	m.deliver(ticket, func() {
		m.metrics.SetAuthenticated(true)
		m.publish(Event{From: from, To: StateAuthenticated, Reason: onSuccess, Snapshot: snap, UserID: user.ID})
	})
	m.logger.Info(ctx, "Session authenticated", log.Fields{"user_id": user.ID, "role": string(user.Role)})
	return nil
}

// Logout clears the token and the user. It may be called at any time and
// does not wait for in-flight operations; their results are discarded.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.finishLocked(ctx, ReasonLogout, nil, true)
}

// end moves to StateUnauthenticated unless a logout already superseded gen.
func (m *Manager) end(ctx context.Context, gen uint64, reason Reason, cause error, clearStore bool) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.finishLocked(ctx, reason, cause, clearStore)
}

// finishLocked resets the session. It is called with mu held and releases
// it only after the store is cleared.
func (m *Manager) finishLocked(ctx context.Context, reason Reason, cause error, clearStore bool) {
	m.gen++

	var clearErr error
	if clearStore {
		clearErr = m.store.Clear(ctx)
	}
	from := m.state
	var userID string
	if m.user != nil {
		userID = m.user.ID
	}
	m.user = nil
	m.state = StateUnauthenticated
	ticket := m.nextTicket()
	m.mu.Unlock()

	m.deliver(ticket, func() {
		m.metrics.SetAuthenticated(false)
		if from == StateAuthenticated {
			m.metrics.LoggedOut(string(reason))
		}
		if from == StateUnauthenticated {
			return
		}
		m.publish(Event{
			From:     from,
			To:       StateUnauthenticated,
			Reason:   reason,
			Snapshot: Snapshot{State: StateUnauthenticated},
			UserID:   userID,
			Err:      cause,
		})
	})

	if clearErr != nil {
		m.logger.Error(ctx, "Failed to clear stored token", clearErr, log.Fields{"reason": string(reason)})
	}
	if from == StateAuthenticated {
		m.logger.Info(ctx, "Session ended", log.Fields{"reason": string(reason)})
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
