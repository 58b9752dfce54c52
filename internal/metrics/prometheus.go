package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics counts session transitions. A nil *SessionMetrics is valid
// and records nothing.
type SessionMetrics struct {
	LoginSuccessTotal   prometheus.Counter
	LoginFailureTotal   prometheus.Counter
	LogoutTotal         *prometheus.CounterVec
	RefreshFailureTotal prometheus.Counter
	AuthenticatedGauge  prometheus.Gauge
}

// NewSessionMetrics creates the session metrics and registers them with reg.
// A nil reg skips registration. Already registered collectors are reused.
func NewSessionMetrics(reg prometheus.Registerer) (*SessionMetrics, error) {
	m := &SessionMetrics{
		LoginSuccessTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_logins_success_total",
			Help: "Total number of successful logins.",
		}),
		LoginFailureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_logins_failure_total",
			Help: "Total number of rejected or failed logins.",
		}),
		LogoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_session_logouts_total",
			Help: "Total number of logouts by reason.",
		}, []string{"reason"}),
		RefreshFailureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_refresh_failures_total",
			Help: "Total number of failed profile refreshes.",
		}),
		AuthenticatedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "admin_session_authenticated",
			Help: "1 while the session holds an authenticated user, else 0.",
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.LoginSuccessTotal, err = register(reg, m.LoginSuccessTotal); err != nil {
		return nil, err
	}
	if m.LoginFailureTotal, err = register(reg, m.LoginFailureTotal); err != nil {
		return nil, err
	}
	if m.LogoutTotal, err = register(reg, m.LogoutTotal); err != nil {
		return nil, err
	}
	if m.RefreshFailureTotal, err = register(reg, m.RefreshFailureTotal); err != nil {
		return nil, err
	}
	if m.AuthenticatedGauge, err = register(reg, m.AuthenticatedGauge); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, returning the existing collector when one with the
// same descriptor is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *SessionMetrics) LoginSucceeded() {
	if m == nil {
		return
	}
	m.LoginSuccessTotal.Inc()
}

func (m *SessionMetrics) LoginFailed() {
	if m == nil {
		return
	}
	m.LoginFailureTotal.Inc()
}

func (m *SessionMetrics) RefreshFailed() {
	if m == nil {
		return
	}
	m.RefreshFailureTotal.Inc()
}

func (m *SessionMetrics) LoggedOut(reason string) {
	if m == nil {
		return
	}
	m.LogoutTotal.WithLabelValues(reason).Inc()
}

func (m *SessionMetrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.AuthenticatedGauge.Set(1)
	} else {
		m.AuthenticatedGauge.Set(0)
	}
}
