package account

import (
	"time"

	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/signal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReconnectPolicy controls automatic reconnection after transient errors.
type ReconnectPolicy struct {
	Enabled bool
	Initial time.Duration
	Max     time.Duration
	// Burst is how many attempts may start back to back before the
	// limiter spaces them Initial apart.
	Burst int
}

// DefaultReconnectPolicy matches the shipped configuration.
var DefaultReconnectPolicy = ReconnectPolicy{
	Enabled: true,
	Initial: 5 * time.Second,
	Max:     5 * time.Minute,
	Burst:   5,
}

type retry struct {
	attempts int
	timer    *eventloop.Timer
	limiter  *rate.Limiter
}

// Reconnector schedules reconnects for enabled accounts whose connection
// failed with a transient error. Fatal errors never reconnect.
type Reconnector struct {
	m      *Manager
	loop   *eventloop.Loop
	logger *zap.Logger
	policy ReconnectPolicy
	state  map[string]*retry

	errH, connH, removedH, changedH, onlineH signal.Handle
}

// NewReconnector attaches a reconnector to m.
func NewReconnector(m *Manager, policy ReconnectPolicy) *Reconnector {
	r := &Reconnector{
		m:      m,
		loop:   m.env.Loop,
		logger: m.logger.Named("reconnect"),
		policy: policy,
		state:  make(map[string]*retry),
	}
	r.errH = m.env.Connections.Error.Connect(r.onError)
	r.connH = m.AccountConnected.Connect(func(a *Account) { r.forget(a.id) })
	r.removedH = m.Removed.Connect(func(a *Account) { r.forget(a.id) })
	r.changedH = m.AccountChanged.Connect(func(c Change) {
		if c.Name == PropEnabled && !c.Account.enabled {
			r.forget(c.Account.id)
		}
	})
	r.onlineH = m.OnlineChanged.Connect(func(online bool) {
		if !online {
			r.reset()
		}
	})
	return r
}

// SetPolicy replaces the policy. Scheduled attempts keep their deadline.
func (r *Reconnector) SetPolicy(p ReconnectPolicy) {
	r.policy = p
	if !p.Enabled {
		r.reset()
	}
	for _, st := range r.state {
		st.limiter = nil
	}
}

// Policy returns the active policy.
func (r *Reconnector) Policy() ReconnectPolicy { return r.policy }

// Pending reports whether a reconnect is scheduled for the account.
func (r *Reconnector) Pending(accountID string) bool {
	st, ok := r.state[accountID]
	return ok && st.timer.Active()
}

// Attempts reports how many reconnects were scheduled since the account
// last connected.
func (r *Reconnector) Attempts(accountID string) int {
	if st, ok := r.state[accountID]; ok {
		return st.attempts
	}
	return 0
}

// Close detaches from the manager and cancels pending attempts.
func (r *Reconnector) Close() {
	r.m.env.Connections.Error.Disconnect(r.errH)
	r.m.AccountConnected.Disconnect(r.connH)
	r.m.Removed.Disconnect(r.removedH)
	r.m.AccountChanged.Disconnect(r.changedH)
	r.m.OnlineChanged.Disconnect(r.onlineH)
	r.reset()
}

func (r *Reconnector) onError(ev ErrorEvent) {
	if !r.policy.Enabled || ev.Info == nil || connerr.IsFatal(ev.Info.Kind) {
		return
	}
	a := ev.Connection.Owner()
	if a.manager != r.m || !a.enabled || !r.m.online {
		return
	}

	st, ok := r.state[a.id]
	if !ok {
		st = &retry{}
		r.state[a.id] = st
	}
	if st.limiter == nil {
		st.limiter = rate.NewLimiter(rate.Every(r.policy.Initial), max(r.policy.Burst, 1))
	}
	st.attempts++

	delay := r.backoff(st.attempts)
	now := r.loop.Now()
	if wait := st.limiter.ReserveN(now, 1).DelayFrom(now); wait > delay {
		delay = wait
	}

	st.timer.Stop()
	st.timer = r.loop.Once(delay, func() { r.fire(a) })
	r.logger.Info("reconnect scheduled",
		zap.String("account", a.username),
		zap.Int("attempt", st.attempts),
		zap.Duration("delay", delay))
}

func (r *Reconnector) backoff(attempt int) time.Duration {
	d := r.policy.Initial
	for i := 1; i < attempt && d < r.policy.Max; i++ {
		d *= 2
	}
	if r.policy.Max > 0 && d > r.policy.Max {
		d = r.policy.Max
	}
	return d
}

func (r *Reconnector) fire(a *Account) {
	if a.manager != r.m || !a.enabled || !r.m.online || !a.IsDisconnected() {
		return
	}
	a.Connect()
}

func (r *Reconnector) forget(id string) {
	if st, ok := r.state[id]; ok {
		st.timer.Stop()
		delete(r.state, id)
	}
}

func (r *Reconnector) reset() {
	for id := range r.state {
		r.forget(id)
	}
}
