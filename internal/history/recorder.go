// Package history persists what happens in conversations and on
// connections: messages published on the bus and the per-account system
// log.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/store"
	"go.uber.org/zap"
)

const maxBatch = 64

type logLine struct {
	accountID, kind, message string
	at                       time.Time
}

// Recorder writes conversation messages and system log lines to the
// store from its own goroutine.
type Recorder struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	lines  chan logLine
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a recorder. Start begins consuming.
func NewRecorder(db *store.DB, b *bus.Bus, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		db:     db,
		bus:    b,
		logger: logger.Named("history"),
		lines:  make(chan logLine, 256),
	}
}

// Start subscribes to conversation messages on the bus.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe(bus.ConversationMessage, 256)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handle(evt, ch)
			case l := <-r.lines:
				if err := r.db.AppendAccountLog(l.accountID, l.kind, l.message, l.at); err != nil {
					r.logger.Error("failed to append system log", zap.String("account", l.accountID), zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the recorder and waits for its goroutine.
func (r *Recorder) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
}

// handle records evt together with whatever else is already waiting.
func (r *Recorder) handle(evt bus.Event, ch <-chan bus.Event) {
	batch := make([]bus.MessagePayload, 0, 1)
	add := func(evt bus.Event) {
		if p, ok := evt.Payload.(bus.MessagePayload); ok {
			batch = append(batch, p)
		}
	}
	add(evt)
drain:
	for len(batch) < maxBatch {
		select {
		case evt := <-ch:
			add(evt)
		default:
			break drain
		}
	}

	var err error
	if len(batch) == 1 {
		err = r.Record(batch[0])
	} else if len(batch) > 1 {
		err = r.RecordBatch(batch)
	}
	if err != nil {
		r.logger.Error("failed to record messages", zap.Int("count", len(batch)), zap.Error(err))
	}
}

func toStore(p bus.MessagePayload) *store.Message {
	return &store.Message{
		MsgID:          p.MsgID,
		AccountID:      p.AccountID,
		ConversationID: p.ConversationID,
		Author:         p.Author,
		Body:           p.Body,
		Outgoing:       p.Outgoing,
		Flags:          p.Flags,
		Timestamp:      p.Timestamp.UnixMilli(),
	}
}

// Record stores one message. Recording the same id twice is a no-op.
func (r *Recorder) Record(p bus.MessagePayload) error {
	if err := r.db.InsertMessage(toStore(p)); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecordBatch stores messages in one transaction.
func (r *Recorder) RecordBatch(batch []bus.MessagePayload) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, p := range batch {
		m := toStore(p)
		if _, err := tx.Exec(`
			INSERT INTO messages (msg_id, account_id, conversation_id, author, body, outgoing, flags, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(msg_id) DO NOTHING`,
			m.MsgID, m.AccountID, m.ConversationID, m.Author, m.Body, m.Outgoing, m.Flags, m.Timestamp, now); err != nil {
			return fmt.Errorf("insert message in batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	r.logger.Debug("message batch recorded", zap.Int("messages", len(batch)))
	return nil
}

// Append queues a system log line. It never blocks the caller; a line
// that does not fit the queue is dropped with a warning.
func (r *Recorder) Append(accountID, kind, message string, at time.Time) {
	select {
	case r.lines <- logLine{accountID: accountID, kind: kind, message: message, at: at}:
	default:
		r.logger.Warn("system log queue full, dropping line", zap.String("account", accountID), zap.String("kind", kind))
	}
}

var _ account.SystemLog = (*Recorder)(nil)
