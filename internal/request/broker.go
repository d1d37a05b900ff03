// Package request queues questions and notices for the user. Front ends
// list pending requests and answer them; the core only sees callbacks.
package request

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/signal"
	"go.uber.org/zap"
)

// Kind distinguishes request types.
type Kind int

const (
	KindPassword Kind = iota
	KindNotify
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindPassword:
		return "password"
	case KindNotify:
		return "notify"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}

var (
	ErrNotFound  = errors.New("request not found")
	ErrWrongKind = errors.New("request kind does not accept this answer")
)

// PasswordAnswer is the user's reply to a password prompt.
type PasswordAnswer struct {
	Password string
	Remember bool
}

// Request is one pending question or notice.
type Request struct {
	ID        string
	Kind      Kind
	Handle    string
	AccountID string
	Title     string
	Primary   string
	Secondary string
	// Data carries preformatted content such as a rendered QR code.
	Data      string
	CreatedAt time.Time

	onPassword func(PasswordAnswer)
	onCancel   func()
}

// Broker owns the pending requests. It is confined to the event loop.
type Broker struct {
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time
	pending map[string]*Request

	Opened signal.Signal[*Request]
	Closed signal.Signal[*Request]
}

// NewBroker creates a broker. b may be nil.
func NewBroker(b *bus.Bus, logger *zap.Logger, now func() time.Time) *Broker {
	if now == nil {
		now = time.Now
	}
	return &Broker{
		bus:     b,
		logger:  logger,
		now:     now,
		pending: make(map[string]*Request),
	}
}

// RequestPassword opens a password prompt. Exactly one of ok or cancel is
// called when the user responds; neither is called if the request is
// closed by handle.
func (b *Broker) RequestPassword(handle, accountID, title, primary string, ok func(PasswordAnswer), cancel func()) *Request {
	return b.open(&Request{
		Kind:       KindPassword,
		Handle:     handle,
		AccountID:  accountID,
		Title:      title,
		Primary:    primary,
		onPassword: ok,
		onCancel:   cancel,
	})
}

// Notify shows a notice that the user dismisses.
func (b *Broker) Notify(handle, accountID, title, primary, secondary string) *Request {
	return b.open(&Request{
		Kind:      KindNotify,
		Handle:    handle,
		AccountID: accountID,
		Title:     title,
		Primary:   primary,
		Secondary: secondary,
	})
}

// Info shows preformatted data, closed by the user or by its handle.
func (b *Broker) Info(handle, accountID, title, primary, data string) *Request {
	return b.open(&Request{
		Kind:      KindInfo,
		Handle:    handle,
		AccountID: accountID,
		Title:     title,
		Primary:   primary,
		Data:      data,
	})
}

func (b *Broker) open(r *Request) *Request {
	r.ID = uuid.NewString()
	r.CreatedAt = b.now()
	b.pending[r.ID] = r
	b.logger.Debug("request opened",
		zap.String("id", r.ID),
		zap.Stringer("kind", r.Kind),
		zap.String("handle", r.Handle))
	b.Opened.Emit(r)
	if b.bus != nil {
		b.bus.Emit(bus.RequestOpened, r.ID)
	}
	return r
}

// AnswerPassword completes a password prompt.
func (b *Broker) AnswerPassword(id string, answer PasswordAnswer) error {
	r, ok := b.pending[id]
	if !ok {
		return fmt.Errorf("answer %s: %w", id, ErrNotFound)
	}
	if r.Kind != KindPassword {
		return fmt.Errorf("answer %s: %w", id, ErrWrongKind)
	}
	b.close(r)
	if r.onPassword != nil {
		r.onPassword(answer)
	}
	return nil
}

// Dismiss closes a request as cancelled by the user.
func (b *Broker) Dismiss(id string) error {
	r, ok := b.pending[id]
	if !ok {
		return fmt.Errorf("dismiss %s: %w", id, ErrNotFound)
	}
	b.close(r)
	if r.onCancel != nil {
		r.onCancel()
	}
	return nil
}

// Close removes a request without running its callbacks.
func (b *Broker) Close(id string) error {
	r, ok := b.pending[id]
	if !ok {
		return fmt.Errorf("close %s: %w", id, ErrNotFound)
	}
	b.close(r)
	return nil
}

// CloseWithHandle closes every request opened for handle without running
// their callbacks.
func (b *Broker) CloseWithHandle(handle string) int {
	var closing []*Request
	for _, r := range b.pending {
		if r.Handle == handle {
			closing = append(closing, r)
		}
	}
	for _, r := range closing {
		b.close(r)
	}
	return len(closing)
}

func (b *Broker) close(r *Request) {
	delete(b.pending, r.ID)
	b.Closed.Emit(r)
	if b.bus != nil {
		b.bus.Emit(bus.RequestClosed, r.ID)
	}
}

// Get returns the pending request with id.
func (b *Broker) Get(id string) (*Request, bool) {
	r, ok := b.pending[id]
	return r, ok
}

// Pending returns pending requests, oldest first.
func (b *Broker) Pending() []*Request {
	out := make([]*Request, 0, len(b.pending))
	for _, r := range b.pending {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len reports the number of pending requests.
func (b *Broker) Len() int { return len(b.pending) }
