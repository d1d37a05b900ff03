package views

import (
	"strings"
	"time"
)

// now is swapped in tests.
var now = time.Now

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	n := now()
	if t.Year() == n.Year() && t.YearDay() == n.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// containsFold reports whether any of fields contains substr, ignoring
// case. An empty substr matches everything.
func containsFold(substr string, fields ...string) bool {
	if substr == "" {
		return true
	}
	substr = strings.ToLower(substr)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
