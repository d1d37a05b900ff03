package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/imcore/internal/profile"
	"github.com/matheus3301/imcore/internal/tui/client"
	"github.com/spf13/pflag"
)

type cli struct {
	c       *client.Client
	jsonOut bool
}

func main() {
	profileFlag := pflag.StringP("profile", "p", "", "profile name (overrides config default_profile)")
	baseDir := pflag.String("base-dir", "", "data directory (default ~/.imcore)")
	socket := pflag.String("socket", "", "daemon socket (default: the profile's)")
	jsonFlag := pflag.Bool("json", false, "output in JSON format")
	timeout := pflag.Duration("timeout", 10*time.Second, "request timeout")
	// Subcommand flags follow the command name.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	socketPath := *socket
	name := *profileFlag
	if socketPath == "" {
		prof, err := profile.Find(*profileFlag, *baseDir)
		if err != nil {
			fatal(err)
		}
		socketPath, name = prof.SocketPath(), prof.Name
	}
	if _, err := os.Stat(socketPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: daemon for profile %q is not running (no socket at %s)\n", name, socketPath)
		os.Exit(1)
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", name, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	if args[0] != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	x := &cli{c: c, jsonOut: *jsonFlag}
	rest := args[1:]
	switch args[0] {
	case "status":
		x.status(ctx)
	case "online":
		x.online(ctx, rest)
	case "accounts":
		x.accounts(ctx, rest)
	case "buddies":
		x.buddies(ctx, rest)
	case "conversations":
		x.conversations(ctx, rest)
	case "send":
		x.send(ctx, rest)
	case "typing":
		x.typing(ctx, rest)
	case "history":
		x.history(ctx, rest)
	case "search":
		x.search(ctx, rest)
	case "requests":
		x.requests(ctx, rest)
	case "watch":
		x.watch(ctx, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: imctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                                   Show daemon status")
	fmt.Fprintln(os.Stderr, "  online <on|off>                          Bring the core online or offline")
	fmt.Fprintln(os.Stderr, "  accounts list                            List accounts")
	fmt.Fprintln(os.Stderr, "  accounts add <protocol> <username>       Add an account")
	fmt.Fprintln(os.Stderr, "  accounts remove <id>                     Remove an account")
	fmt.Fprintln(os.Stderr, "  accounts enable|disable <id>             Toggle auto-connect")
	fmt.Fprintln(os.Stderr, "  accounts connect|disconnect <id>         Connect or disconnect now")
	fmt.Fprintln(os.Stderr, "  accounts set <id> <name> <type> <value>  Set a protocol setting")
	fmt.Fprintln(os.Stderr, "  accounts status <id> <status> [message]  Activate a status")
	fmt.Fprintln(os.Stderr, "  accounts log <id>                        Show connection history")
	fmt.Fprintln(os.Stderr, "  buddies list                             Show the buddy list")
	fmt.Fprintln(os.Stderr, "  buddies add <account> <name>             Add a buddy")
	fmt.Fprintln(os.Stderr, "  buddies remove <account> <name>          Remove a buddy")
	fmt.Fprintln(os.Stderr, "  buddies alias <account> <name> <alias>   Set a local alias")
	fmt.Fprintln(os.Stderr, "  conversations                            List open conversations")
	fmt.Fprintln(os.Stderr, "  send <account> <to> <message...>         Send an instant message")
	fmt.Fprintln(os.Stderr, "  typing <account> <to> <typing|paused|none>")
	fmt.Fprintln(os.Stderr, "  history <account> <conversation-id>      Show stored messages")
	fmt.Fprintln(os.Stderr, "  search <query...>                        Search message history")
	fmt.Fprintln(os.Stderr, "  requests list                            Show pending requests")
	fmt.Fprintln(os.Stderr, "  requests answer <id>                     Answer a password request from stdin")
	fmt.Fprintln(os.Stderr, "  requests cancel <id>                     Dismiss a request")
	fmt.Fprintln(os.Stderr, "  watch [namespace]                        Stream daemon events")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func usage(line string) {
	fmt.Fprintln(os.Stderr, "usage: imctl "+line)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
