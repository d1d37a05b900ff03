// Package outbox holds direct messages written while their account was
// offline and sends them once the account signs on.
package outbox

import (
	"context"
	"errors"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/store"
	"go.uber.org/zap"
)

// Outbox queues messages in the store and drains them through the IM
// capability of the owning account's connection. It is confined to the
// event loop; store and network work runs through eventloop.Await.
type Outbox struct {
	db     *store.DB
	env    *account.Env
	logger *zap.Logger

	// draining marks accounts with a drain in flight; again asks for
	// another pass when it finishes.
	draining map[string]bool
	again    map[string]bool
	stop     func()
}

type result struct {
	entry store.OutboxEntry
	err   error
}

// New creates an outbox that drains on every sign-on.
func New(db *store.DB, env *account.Env) *Outbox {
	o := &Outbox{
		db:       db,
		env:      env,
		logger:   env.Logger.Named("outbox"),
		draining: make(map[string]bool),
		again:    make(map[string]bool),
	}
	h := env.Connections.SignedOn.Connect(o.drain)
	o.stop = func() { env.Connections.SignedOn.Disconnect(h) }
	return o
}

// Close stops following sign-ons.
func (o *Outbox) Close() {
	if o.stop != nil {
		o.stop()
		o.stop = nil
	}
}

// Enqueue stores a message for recipient. msgID is the conversation
// message id and becomes the entry's client id.
func (o *Outbox) Enqueue(accountID, recipient, body, msgID string) {
	eventloop.Await(o.env.Loop, context.Background(), func(context.Context) (struct{}, error) {
		return struct{}{}, o.db.QueueOutbox(msgID, accountID, recipient, body)
	}, func(_ struct{}, err error) {
		if err != nil {
			o.logger.Error("failed to queue message", zap.String("msg_id", msgID), zap.Error(err))
			return
		}
		o.publish(bus.OutboxQueued, store.OutboxEntry{ClientMsgID: msgID, AccountID: accountID, Recipient: recipient}, nil)
		for _, c := range o.env.Connections.Connected() {
			if c.Owner().ID() == accountID {
				o.drain(c)
			}
		}
	})
}

func (o *Outbox) drain(conn *account.Connection) {
	accountID := conn.Owner().ID()
	if o.draining[accountID] {
		o.again[accountID] = true
		return
	}
	im, ok := protocol.As[protocol.IM](conn.Protocol())
	if !ok {
		return
	}
	o.draining[accountID] = true

	eventloop.Await(o.env.Loop, conn.Context(), func(ctx context.Context) ([]result, error) {
		return o.send(ctx, conn, im, accountID)
	}, func(results []result, err error) {
		delete(o.draining, accountID)
		if err != nil {
			o.logger.Error("failed to read outbox", zap.String("account", accountID), zap.Error(err))
		}
		for _, r := range results {
			switch {
			case r.err == nil:
				o.logger.Info("queued message sent", zap.String("msg_id", r.entry.ClientMsgID))
				o.publish(bus.OutboxSent, r.entry, nil)
			case !errors.Is(r.err, context.Canceled):
				o.publish(bus.OutboxFailed, r.entry, r.err)
			}
		}
		if o.again[accountID] {
			delete(o.again, accountID)
			if conn.State() == protocol.Connected {
				o.drain(conn)
			}
		}
	})
}

// send runs off the loop. Entries interrupted by the connection going
// away are put back in the queue.
func (o *Outbox) send(ctx context.Context, conn *account.Connection, im protocol.IM, accountID string) ([]result, error) {
	pending, err := o.db.PendingOutbox(accountID)
	if err != nil {
		return nil, err
	}
	var results []result
	for _, entry := range pending {
		if err := o.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			o.logger.Error("failed to mark sending", zap.String("msg_id", entry.ClientMsgID), zap.Error(err))
			continue
		}
		serr := im.SendIM(ctx, conn, entry.Recipient, entry.Body)
		switch {
		case serr == nil:
			err = o.db.MarkOutboxSent(entry.ClientMsgID)
		case errors.Is(serr, context.Canceled) || ctx.Err() != nil:
			serr = context.Canceled
			err = o.db.RequeueOutbox(entry.ClientMsgID)
		default:
			err = o.db.MarkOutboxFailed(entry.ClientMsgID, serr.Error())
		}
		if err != nil {
			o.logger.Error("failed to update outbox", zap.String("msg_id", entry.ClientMsgID), zap.Error(err))
		}
		results = append(results, result{entry: entry, err: serr})
		if ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

func (o *Outbox) publish(kind string, e store.OutboxEntry, err error) {
	if o.env.Bus == nil {
		return
	}
	p := bus.OutboxPayload{MsgID: e.ClientMsgID, AccountID: e.AccountID, Recipient: e.Recipient}
	if err != nil {
		p.Error = err.Error()
	}
	o.env.Bus.Emit(kind, p)
}
