package account

// SettingType tags a setting's value.
type SettingType int

const (
	SettingString SettingType = iota
	SettingInt
	SettingBool
)

func (t SettingType) String() string {
	switch t {
	case SettingInt:
		return "int"
	case SettingBool:
		return "bool"
	default:
		return "string"
	}
}

// ParseSettingType maps a document type attribute to a SettingType.
func ParseSettingType(s string) (SettingType, bool) {
	switch s {
	case "string":
		return SettingString, true
	case "int":
		return SettingInt, true
	case "bool":
		return SettingBool, true
	}
	return SettingString, false
}

// Setting is one typed account setting.
type Setting struct {
	Type SettingType
	Str  string
	Int  int
	Bool bool
}

// Setting returns the raw setting with name.
func (a *Account) Setting(name string) (Setting, bool) {
	s, ok := a.settings[name]
	return s, ok
}

// String returns the string setting name, or def when unset or of another
// type.
func (a *Account) String(name, def string) string {
	if s, ok := a.settings[name]; ok && s.Type == SettingString {
		return s.Str
	}
	return def
}

// Int returns the int setting name, or def.
func (a *Account) Int(name string, def int) int {
	if s, ok := a.settings[name]; ok && s.Type == SettingInt {
		return s.Int
	}
	return def
}

// Bool returns the bool setting name, or def.
func (a *Account) Bool(name string, def bool) bool {
	if s, ok := a.settings[name]; ok && s.Type == SettingBool {
		return s.Bool
	}
	return def
}

func (a *Account) SetString(name, v string) {
	a.settings[name] = Setting{Type: SettingString, Str: v}
	a.settingChanged(name)
}

func (a *Account) SetInt(name string, v int) {
	a.settings[name] = Setting{Type: SettingInt, Int: v}
	a.settingChanged(name)
}

func (a *Account) SetBool(name string, v bool) {
	a.settings[name] = Setting{Type: SettingBool, Bool: v}
	a.settingChanged(name)
}

// RemoveSetting deletes name. Removing an unset name does nothing.
func (a *Account) RemoveSetting(name string) {
	if _, ok := a.settings[name]; !ok {
		return
	}
	delete(a.settings, name)
	a.settingChanged(name)
}
