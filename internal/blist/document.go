package blist

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/persist"
	"go.uber.org/zap"
)

type purpleXML struct {
	XMLName xml.Name  `xml:"purple"`
	Version string    `xml:"version,attr"`
	Blist   *blistXML `xml:"blist"`
}

type blistXML struct {
	LocalizedDefault string     `xml:"localized-default-group,attr,omitempty"`
	Groups           []groupXML `xml:"group"`
}

type groupXML struct {
	Name     *string      `xml:"name,attr"`
	Settings []settingXML `xml:"setting"`
	Contacts []contactXML `xml:"contact"`
}

// UnmarshalXML reads <contact> and the older <person> elements into one
// list, keeping their document order.
func (g *groupXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "name" {
			name := attr.Value
			g.Name = &name
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "setting":
				var sx settingXML
				if err := d.DecodeElement(&sx, &t); err != nil {
					return err
				}
				g.Settings = append(g.Settings, sx)
			case "contact", "person":
				var cx contactXML
				if err := d.DecodeElement(&cx, &t); err != nil {
					return err
				}
				g.Contacts = append(g.Contacts, cx)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

type contactXML struct {
	Alias    *string      `xml:"alias,attr"`
	Settings []settingXML `xml:"setting"`
	Buddies  []buddyXML   `xml:"buddy"`
}

type buddyXML struct {
	Account  string       `xml:"account,attr"`
	Proto    string       `xml:"proto,attr,omitempty"`
	Name     string       `xml:"name"`
	Alias    string       `xml:"alias,omitempty"`
	Settings []settingXML `xml:"setting"`
}

type settingXML struct {
	Name  string  `xml:"name,attr"`
	Type  *string `xml:"type,attr"`
	Value string  `xml:",chardata"`
}

func (l *List) settingsXML(id NodeID) []settingXML {
	settings := l.nodes[id].settings
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]settingXML, 0, len(names))
	for _, name := range names {
		s := settings[name]
		t := s.Type.String()
		x := settingXML{Name: name, Type: &t}
		switch s.Type {
		case account.SettingInt:
			x.Value = strconv.Itoa(s.Int)
		case account.SettingBool:
			x.Value = "0"
			if s.Bool {
				x.Value = "1"
			}
		default:
			x.Value = s.Str
		}
		out = append(out, x)
	}
	return out
}

// Encode renders the list as a blist.xml document.
func (l *List) Encode() ([]byte, error) {
	bl := &blistXML{LocalizedDefault: l.localizedDefault}
	for _, g := range l.Groups() {
		gx := groupXML{Settings: l.settingsXML(g)}
		if name := l.nodes[g].name; name != DefaultGroupName {
			gx.Name = &name
		}
		for _, c := range l.Children(g) {
			cx := contactXML{Settings: l.settingsXML(c)}
			if alias := l.nodes[c].alias; alias != "" {
				cx.Alias = &alias
			}
			for _, b := range l.Children(c) {
				n := &l.nodes[b]
				cx.Buddies = append(cx.Buddies, buddyXML{
					Account:  n.accountID,
					Name:     n.name,
					Alias:    n.alias,
					Settings: l.settingsXML(b),
				})
			}
			gx.Contacts = append(gx.Contacts, cx)
		}
		bl.Groups = append(bl.Groups, gx)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(purpleXML{Version: "1.0", Blist: bl}); err != nil {
		return nil, fmt.Errorf("encode buddy list: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode merges a blist.xml document into the list. Contacts left without
// buddies are dropped.
func (l *List) Decode(data []byte) error {
	var doc purpleXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode buddy list: %w", err)
	}
	if doc.Blist == nil {
		l.localizedDefault = ""
		return nil
	}
	l.localizedDefault = doc.Blist.LocalizedDefault

	l.loading = true
	defer func() { l.loading = false }()
	for _, gx := range doc.Blist.Groups {
		l.parseGroup(gx)
	}
	return nil
}

func (l *List) parseGroup(gx groupXML) {
	name := ""
	if gx.Name != nil {
		name = *gx.Name
	}
	g := l.AddGroup(name, l.lastSibling(l.root))
	for _, s := range gx.Settings {
		l.parseSetting(g, s)
	}
	for _, cx := range gx.Contacts {
		l.parseContact(g, cx)
	}
}

func (l *List) parseContact(g NodeID, cx contactXML) {
	c, err := l.AddContact(None, g, l.LastChild(g))
	if err != nil {
		l.logger.Warn("failed to add contact", zap.Error(err))
		return
	}
	if cx.Alias != nil {
		l.nodes[c].alias = *cx.Alias
	}
	for _, s := range cx.Settings {
		l.parseSetting(c, s)
	}
	for _, bx := range cx.Buddies {
		name := strings.TrimSpace(bx.Name)
		if bx.Account == "" || name == "" {
			l.logger.Debug("skipping buddy without account or name")
			continue
		}
		b, err := l.AddBuddy(bx.Account, name, bx.Alias, c, None)
		if err != nil {
			l.logger.Warn("skipping buddy", zap.String("name", name), zap.Error(err))
			continue
		}
		for _, s := range bx.Settings {
			l.parseSetting(b, s)
		}
	}
	if l.nodes[c].child == None {
		_ = l.RemoveContact(c)
	}
}

func (l *List) parseSetting(id NodeID, s settingXML) {
	if s.Name == "" {
		return
	}
	if s.Type == nil || *s.Type == "string" {
		l.SetString(id, s.Name, s.Value)
		return
	}
	if s.Value == "" {
		return
	}
	n, _ := strconv.Atoi(strings.TrimSpace(s.Value))
	switch {
	case *s.Type == "bool":
		l.SetBool(id, s.Name, n != 0)
	case *s.Type == "int":
		l.SetInt(id, s.Name, n)
	}
}

func (l *List) scheduleSave() {
	if l.loading {
		return
	}
	l.saver.Schedule()
}

// Load reads blist.xml. A missing file leaves the list empty.
func (l *List) Load() error {
	l.loaded = true
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read buddy list: %w", err)
	}
	if err := l.Decode(data); err != nil {
		return err
	}
	l.logger.Info("buddy list loaded", zap.Int("buddies", len(l.Buddies())))
	return nil
}

// Save writes blist.xml now.
func (l *List) Save() error {
	if !l.loaded {
		l.logger.Error("attempted to save buddy list before it was read")
		return ErrNotLoaded
	}
	if l.path == "" {
		return nil
	}
	data, err := l.Encode()
	if err != nil {
		return err
	}
	return persist.WriteFile(l.path, data)
}

// Flush writes a pending save now.
func (l *List) Flush() error { return l.saver.Flush() }

// SavePending reports whether a save is scheduled.
func (l *List) SavePending() bool { return l.saver.Pending() }
