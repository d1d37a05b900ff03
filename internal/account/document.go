package account

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/proxy"
	"go.uber.org/zap"
)

const documentVersion = "1.0"

type accountsXML struct {
	XMLName  xml.Name     `xml:"account"`
	Version  string       `xml:"version,attr"`
	Accounts []accountXML `xml:"account"`
}

type accountXML struct {
	ID              string         `xml:"id,omitempty"`
	Protocol        string         `xml:"protocol"`
	Name            string         `xml:"name,omitempty"`
	Username        string         `xml:"username,omitempty"`
	RequirePassword string         `xml:"require_password"`
	Enabled         string         `xml:"enabled"`
	Alias           string         `xml:"alias,omitempty"`
	UserInfo        string         `xml:"user-info,omitempty"`
	LegacyUserInfo  string         `xml:"userinfo,omitempty"`
	Settings        []settingsXML  `xml:"settings,omitempty"`
	Proxy           *proxyXML      `xml:"proxy,omitempty"`
	CurrentError    *currentErrXML `xml:"current_error"`
}

type settingsXML struct {
	UI       string       `xml:"ui,attr,omitempty"`
	Settings []settingXML `xml:"setting"`
}

type settingXML struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type proxyXML struct {
	Type     string `xml:"type"`
	Host     string `xml:"host,omitempty"`
	Port     string `xml:"port,omitempty"`
	Username string `xml:"username,omitempty"`
	Password string `xml:"password,omitempty"`
}

type currentErrXML struct {
	Type        string `xml:"type,omitempty"`
	Description string `xml:"description,omitempty"`
}

// Encode renders accounts as an accounts.xml document, preserving order.
func Encode(accounts []*Account) ([]byte, error) {
	doc := accountsXML{Version: documentVersion}
	for _, a := range accounts {
		doc.Accounts = append(doc.Accounts, a.toXML())
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode accounts: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (a *Account) toXML() accountXML {
	x := accountXML{
		ID:              a.id,
		Protocol:        a.protocolID,
		Name:            a.username,
		RequirePassword: boolDigit(a.requirePassword),
		Enabled:         boolDigit(a.enabled),
		Alias:           a.alias,
		UserInfo:        a.userInfo,
		CurrentError:    &currentErrXML{},
	}
	if len(a.settings) > 0 {
		s := settingsXML{}
		for _, name := range a.SettingNames() {
			v := a.settings[name]
			sx := settingXML{Name: name, Type: v.Type.String()}
			switch v.Type {
			case SettingInt:
				sx.Value = strconv.Itoa(v.Int)
			case SettingBool:
				sx.Value = boolDigit(v.Bool)
			default:
				sx.Value = v.Str
			}
			s.Settings = append(s.Settings, sx)
		}
		x.Settings = []settingsXML{s}
	}
	if p := a.proxy; p != nil {
		px := &proxyXML{Type: p.Type.String(), Host: p.Host, Username: p.Username, Password: p.Password}
		if p.Port != 0 {
			px.Port = strconv.Itoa(p.Port)
		}
		x.Proxy = px
	}
	// Transient errors are not worth restoring after a restart.
	if a.err != nil && connerr.IsFatal(a.err.Kind) {
		x.CurrentError.Type = strconv.FormatUint(uint64(a.err.Kind), 10)
		x.CurrentError.Description = a.err.Description
	}
	return x
}

// ReadFile decodes the accounts document at path. A missing file yields no
// accounts.
func ReadFile(env *Env, path string) ([]*Account, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	return Decode(env, data)
}

// Decode parses an accounts.xml document. Entries without a protocol or a
// name are skipped.
func Decode(env *Env, data []byte) ([]*Account, error) {
	var doc accountsXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	logger := env.Logger.Named("accounts")
	var out []*Account
	for _, x := range doc.Accounts {
		a := fromXML(env, logger, x)
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func atoiLoose(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func fromXML(env *Env, logger *zap.Logger, x accountXML) *Account {
	name := strings.TrimSpace(x.Name)
	if name == "" {
		name = strings.TrimSpace(x.Username)
	}
	protocolID := strings.TrimSpace(x.Protocol)
	if protocolID == "" || name == "" {
		logger.Warn("skipping account without protocol or name", zap.String("id", x.ID))
		return nil
	}

	a := New(env, strings.TrimSpace(x.ID), name, protocolID)
	a.requirePassword = atoiLoose(x.RequirePassword) != 0
	enabled := atoiLoose(x.Enabled) != 0

	if alias := strings.TrimSpace(x.Alias); alias != "" {
		a.alias = alias
	}
	if x.UserInfo != "" {
		a.userInfo = x.UserInfo
	} else if x.LegacyUserInfo != "" {
		a.userInfo = x.LegacyUserInfo
	}

	for _, group := range x.Settings {
		if group.UI != "" {
			continue
		}
		for _, s := range group.Settings {
			a.loadSetting(logger, s)
		}
	}
	migrateXMPPSecurity(a)

	if x.Proxy != nil {
		a.proxy = proxyFromXML(x.Proxy)
	}

	if ce := x.CurrentError; ce != nil && strings.TrimSpace(ce.Type) != "" {
		kind, err := strconv.ParseUint(strings.TrimSpace(ce.Type), 10, 32)
		if err != nil {
			logger.Warn("bad current_error type", zap.String("account", name), zap.String("type", ce.Type))
		} else {
			k, coerced := connerr.Coerce(connerr.Kind(kind))
			if coerced {
				logger.Warn("current_error type out of range", zap.String("account", name), zap.Uint64("type", kind))
			}
			a.SetError(connerr.NewInfo(k, ce.Description))
		}
	}

	a.setEnabledPlain(enabled)
	return a
}

func (a *Account) loadSetting(logger *zap.Logger, s settingXML) {
	if s.Name == "" || s.Type == "" {
		return
	}
	t, ok := ParseSettingType(s.Type)
	if !ok {
		logger.Debug("unknown setting type", zap.String("name", s.Name), zap.String("type", s.Type))
		return
	}
	if t != SettingString && s.Value == "" {
		return
	}
	switch t {
	case SettingInt:
		n, err := strconv.Atoi(strings.TrimSpace(s.Value))
		if err != nil {
			logger.Warn("invalid int setting", zap.String("account", a.username), zap.String("name", s.Name), zap.String("value", s.Value))
			return
		}
		a.settings[s.Name] = Setting{Type: SettingInt, Int: n}
	case SettingBool:
		a.settings[s.Name] = Setting{Type: SettingBool, Bool: s.Value[0] != '0'}
	default:
		a.settings[s.Name] = Setting{Type: SettingString, Str: s.Value}
	}
}

// migrateXMPPSecurity converts the old XMPP TLS flags to the
// connection_security setting.
func migrateXMPPSecurity(a *Account) {
	if a.protocolID != "prpl-jabber" || a.String("connection_security", "") != "" {
		return
	}
	security := "require_tls"
	if a.Bool("old_ssl", false) {
		security = "old_ssl"
	} else if !a.Bool("require_tls", true) {
		security = "opportunistic_tls"
	}
	a.settings["connection_security"] = Setting{Type: SettingString, Str: security}
}

func proxyFromXML(px *proxyXML) *proxy.Info {
	info := &proxy.Info{Type: proxy.UseGlobal}
	if t, ok := proxy.ParseType(strings.TrimSpace(px.Type)); ok {
		info.Type = t
	}
	info.Host = strings.TrimSpace(px.Host)
	info.Port = atoiLoose(px.Port)
	info.Username = px.Username
	info.Password = px.Password
	if info.IsDefault() {
		return nil
	}
	return info
}
