package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/presence"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/proxy"
	"github.com/matheus3301/imcore/internal/signal"
	"go.uber.org/zap"
)

// Property names reported on Account.Changed.
const (
	PropUsername         = "username"
	PropAlias            = "alias"
	PropUserInfo         = "user-info"
	PropBuddyIcon        = "buddy-icon-path"
	PropPrivateAlias     = "private-alias"
	PropEnabled          = "enabled"
	PropRequirePassword  = "require-password"
	PropRememberPassword = "remember-password"
	PropProxy            = "proxy-info"
	PropError            = "error"
	PropConnection       = "connection"
)

// ErrorChange is emitted when the account's error is replaced.
type ErrorChange struct {
	Account *Account
	Old     *connerr.Info
	New     *connerr.Info
}

// Account is one configured identity on one protocol.
type Account struct {
	env     *Env
	manager *Manager
	logger  *zap.Logger

	id           string
	username     string
	protocolID   string
	alias        string
	userInfo     string
	buddyIcon    string
	privateAlias string

	enabled          bool
	requirePassword  bool
	rememberPassword bool
	password         string

	settings map[string]Setting
	proxy    *proxy.Info
	err      *connerr.Info
	errReq   string

	presence      *presence.Presence
	conn          *Connection
	disconnecting bool

	// pending connect sequence (can-connect, credentials, prompt)
	connecting    bool
	connectCancel context.CancelFunc

	frozen  int
	changed []string

	Changed        signal.Signal[string]
	SettingChanged signal.Signal[string]
	ErrorChanged   signal.Signal[ErrorChange]
	Connected      signal.Signal[*Account]
	Disconnected   signal.Signal[*Account]
}

// GenerateID derives the stable id used when an account has none.
func GenerateID(protocolID, username string) string {
	sum := sha256.Sum256([]byte(protocolID + username))
	return hex.EncodeToString(sum[:])
}

// New creates a disabled account. An empty id is derived from the
// protocol and username.
func New(env *Env, id, username, protocolID string) *Account {
	if id == "" {
		id = GenerateID(protocolID, username)
	}
	return &Account{
		env:        env,
		logger:     env.Logger.Named("account").With(zap.String("account", username), zap.String("protocol", protocolID)),
		id:         id,
		username:   username,
		protocolID: protocolID,
		settings:   make(map[string]Setting),
		presence:   presence.New(),
	}
}

func (a *Account) ID() string                   { return a.id }
func (a *Account) Username() string             { return a.username }
func (a *Account) ProtocolID() string           { return a.protocolID }
func (a *Account) Alias() string                { return a.alias }
func (a *Account) UserInfo() string             { return a.userInfo }
func (a *Account) BuddyIconPath() string        { return a.buddyIcon }
func (a *Account) PrivateAlias() string         { return a.privateAlias }
func (a *Account) Enabled() bool                { return a.enabled }
func (a *Account) RequirePassword() bool        { return a.requirePassword }
func (a *Account) RememberPassword() bool       { return a.rememberPassword }
func (a *Account) Presence() *presence.Presence { return a.presence }
func (a *Account) Error() *connerr.Info         { return a.err }
func (a *Account) Proxy() *proxy.Info           { return a.proxy }

// Connection returns the live connection, or nil.
func (a *Account) Connection() *Connection { return a.conn }

// Protocol looks up the account's protocol.
func (a *Account) Protocol() (protocol.Protocol, bool) {
	return a.env.Protocols.Find(a.protocolID)
}

// ProtocolName returns the protocol's display name, or its id when the
// protocol is not registered.
func (a *Account) ProtocolName() string {
	if p, ok := a.Protocol(); ok {
		return p.Name()
	}
	return a.protocolID
}

func (a *Account) IsConnected() bool {
	return a.conn != nil && a.conn.state == protocol.Connected
}

func (a *Account) IsConnecting() bool {
	return a.conn != nil && a.conn.state == protocol.Connecting
}

func (a *Account) IsDisconnected() bool {
	return a.conn == nil || a.conn.state == protocol.Disconnected
}

func (a *Account) IsDisconnecting() bool { return a.disconnecting }

func (a *Account) SetUsername(username string) {
	a.setString(&a.username, username, PropUsername)
}

func (a *Account) SetAlias(alias string) {
	a.setString(&a.alias, alias, PropAlias)
}

func (a *Account) SetUserInfo(info string) {
	a.setString(&a.userInfo, info, PropUserInfo)
}

func (a *Account) SetBuddyIconPath(path string) {
	a.setString(&a.buddyIcon, path, PropBuddyIcon)
}

func (a *Account) SetPrivateAlias(alias string) {
	a.setString(&a.privateAlias, alias, PropPrivateAlias)
}

func (a *Account) setString(field *string, v, prop string) {
	if *field == v {
		return
	}
	*field = v
	a.notify(prop)
	a.scheduleSave()
}

func (a *Account) SetRequirePassword(v bool) {
	if a.requirePassword == v {
		return
	}
	a.requirePassword = v
	a.notify(PropRequirePassword)
	a.scheduleSave()
}

func (a *Account) SetRememberPassword(v bool) {
	if a.rememberPassword == v {
		return
	}
	a.rememberPassword = v
	a.notify(PropRememberPassword)
	a.scheduleSave()
}

// SetPassword keeps password in memory for the next connect. It is never
// written to disk by the account itself.
func (a *Account) SetPassword(password string) { a.password = password }

// SetProxy replaces the per-account proxy. A default proxy is stored as
// nil.
func (a *Account) SetProxy(info *proxy.Info) {
	if info.IsDefault() {
		info = nil
	}
	if a.proxy == nil && info == nil {
		return
	}
	if a.proxy != nil && info != nil && *a.proxy == *info {
		return
	}
	a.proxy = info.Clone()
	a.notify(PropProxy)
	a.scheduleSave()
}

// SetEnabled turns the account on or off. Enabling an account whose
// presence is online connects it; disabling a live account disconnects it.
// An account whose connection hit a fatal error is left alone.
func (a *Account) SetEnabled(v bool) {
	was := a.enabled
	a.enabled = v
	if was != v {
		a.notify(PropEnabled)
	}

	if a.conn != nil && a.conn.wantsToDie {
		a.scheduleSave()
		return
	}

	if v && a.presence.IsOnline() {
		a.Connect()
	} else if !v {
		a.cancelPendingConnect()
		if !a.IsDisconnected() {
			if err := a.Disconnect(); err != nil {
				a.logger.Warn("disconnect on disable failed", zap.Error(err))
			}
		}
	}
	a.scheduleSave()
}

// setEnabledPlain restores the flag from disk without side effects.
func (a *Account) setEnabledPlain(v bool) { a.enabled = v }

// SetError replaces the account's error and its user notification.
func (a *Account) SetError(info *connerr.Info) {
	if a.err.Equal(info) {
		return
	}
	old := a.err
	a.err = info

	if a.errReq != "" {
		_ = a.env.Requests.Close(a.errReq)
		a.errReq = ""
	}
	if info != nil {
		r := a.env.Requests.Notify(a.id+"/error", a.id,
			"Connection Error",
			fmt.Sprintf("%s disconnected", a.username),
			info.Description)
		a.errReq = r.ID
	}

	a.notify(PropError)
	a.ErrorChanged.Emit(ErrorChange{Account: a, Old: old, New: info})
	ev := bus.ConnectionPayload{AccountID: a.id}
	if info != nil {
		ev.ErrorKind = info.Kind.String()
		ev.Description = info.Description
	}
	a.env.publish(bus.AccountErrorChanged, ev)
	a.scheduleSave()
}

// StatusTypes returns the statuses the account's protocol supports.
func (a *Account) StatusTypes() []protocol.StatusType {
	p, ok := a.Protocol()
	if !ok {
		return nil
	}
	client, _ := protocol.As[protocol.Client](p)
	return client.StatusTypes(a)
}

// SetStatus applies one of StatusTypes to the account's presence and
// pushes it to the server when connected.
func (a *Account) SetStatus(statusID, message string) error {
	var st *protocol.StatusType
	for _, t := range a.StatusTypes() {
		if t.ID == statusID {
			st = &t
			break
		}
	}
	if st == nil {
		return fmt.Errorf("status %q for %s: %w", statusID, a.username, ErrPrecondition)
	}
	a.presence.SetPrimitive(st.Primitive)
	a.presence.SetMessage(message)
	if !a.IsConnected() {
		return nil
	}
	p, _ := a.Protocol()
	if setter, ok := protocol.As[protocol.StatusSetter](p); ok {
		return setter.SetStatus(a.conn, *st, message)
	}
	return nil
}

// Freeze buffers setting notifications until the matching Thaw. Calls
// nest.
func (a *Account) Freeze() { a.frozen++ }

// Thaw ends one Freeze. When the last one ends, every setting changed in
// between is announced once, in first-change order.
func (a *Account) Thaw() {
	if a.frozen == 0 {
		a.logger.Error("thaw called without a matching freeze")
		return
	}
	a.frozen--
	if a.frozen > 0 {
		return
	}
	names := a.changed
	a.changed = nil
	for _, name := range names {
		a.emitSetting(name)
	}
}

func (a *Account) settingChanged(name string) {
	if a.frozen > 0 {
		for _, n := range a.changed {
			if n == name {
				a.scheduleSave()
				return
			}
		}
		a.changed = append(a.changed, name)
	} else {
		a.emitSetting(name)
	}
	a.scheduleSave()
}

func (a *Account) emitSetting(name string) {
	a.SettingChanged.Emit(name)
	a.env.publish(bus.AccountSettingChanged, a.payload(name))
}

func (a *Account) notify(prop string) {
	a.Changed.Emit(prop)
	a.env.publish(bus.AccountChanged, a.payload(prop))
}

func (a *Account) payload(setting string) bus.AccountPayload {
	return bus.AccountPayload{
		AccountID:  a.id,
		Username:   a.username,
		ProtocolID: a.protocolID,
		Setting:    setting,
	}
}

func (a *Account) scheduleSave() {
	if a.manager != nil {
		a.manager.scheduleSave()
	}
}

func (a *Account) setConnection(c *Connection) {
	if a.conn == c {
		return
	}
	a.conn = c
	a.notify(PropConnection)
}

// connectionState runs after the live connection changed state.
func (a *Account) connectionState(s protocol.State) {
	switch s {
	case protocol.Connected:
		a.Connected.Emit(a)
		a.env.publish(bus.AccountConnected, a.payload(""))
	case protocol.Disconnected:
		a.Disconnected.Emit(a)
		a.env.publish(bus.AccountDisconnected, a.payload(""))
	}
}

// SettingNames returns the names of all settings, sorted.
func (a *Account) SettingNames() []string {
	names := make([]string, 0, len(a.settings))
	for name := range a.settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
