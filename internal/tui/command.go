package tui

import "strings"

// Command is a parsed ":" command line.
type Command struct {
	Name string
	Args []string
	// Rest is everything after the name, spacing preserved.
	Rest string
}

var commandAliases = map[string]string{
	"q":     "quit",
	"h":     "help",
	"convs": "conversations",
	"m":     "msg",
	"/":     "search",
}

// ParseCommand parses input without its leading ':'. Names are
// case-insensitive and aliases resolve to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	name, rest, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	if full, ok := commandAliases[name]; ok {
		name = full
	}
	rest = strings.TrimSpace(rest)
	return Command{Name: name, Args: strings.Fields(rest), Rest: rest}
}

// Arg returns the ith argument or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// From returns the arguments from i on, joined by single spaces.
func (c Command) From(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}
