package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/spf13/pflag"
)

func (x *cli) accounts(ctx context.Context, args []string) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		resp, err := x.c.Accounts.List(ctx)
		if err != nil {
			fatal(err)
		}
		if x.jsonOut {
			outputJSON(resp)
			return
		}
		if len(resp.Accounts) == 0 {
			fmt.Println("No accounts.")
			return
		}
		printAccounts(resp.Accounts)
	case "add":
		x.accountAdd(ctx, rest)
	case "remove":
		if len(rest) != 1 {
			usage("accounts remove <id>")
		}
		if err := x.c.Accounts.Remove(ctx, rest[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("Removed account %s.\n", rest[0])
	case "enable", "disable":
		if len(rest) != 1 {
			usage("accounts " + sub + " <id>")
		}
		x.printAccount(x.c.Accounts.SetEnabled(ctx, rest[0], sub == "enable"))
	case "connect":
		if len(rest) != 1 {
			usage("accounts connect <id>")
		}
		x.printAccount(x.c.Accounts.Connect(ctx, rest[0]))
	case "disconnect":
		if len(rest) != 1 {
			usage("accounts disconnect <id>")
		}
		x.printAccount(x.c.Accounts.Disconnect(ctx, rest[0]))
	case "set":
		if len(rest) != 4 {
			usage("accounts set <id> <name> <bool|int|string> <value>")
		}
		x.printAccount(x.c.Accounts.SetSetting(ctx, &api.SetSettingRequest{
			ID: rest[0], Name: rest[1], Type: rest[2], Value: rest[3],
		}))
	case "status":
		if len(rest) < 2 {
			usage("accounts status <id> <status-id> [message...]")
		}
		x.printAccount(x.c.Accounts.SetStatus(ctx, &api.SetStatusRequest{
			ID: rest[0], StatusID: rest[1], Message: strings.Join(rest[2:], " "),
		}))
	case "log":
		x.accountLog(ctx, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown accounts subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func (x *cli) accountAdd(ctx context.Context, args []string) {
	fs := pflag.NewFlagSet("accounts add", pflag.ExitOnError)
	alias := fs.String("alias", "", "local alias")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "store the password")
	enabled := fs.Bool("enable", true, "connect whenever the core is online")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		usage("accounts add [--alias a] [--password p] [--remember] [--enable=false] <protocol> <username>")
	}
	x.printAccount(x.c.Accounts.Add(ctx, &api.AddAccountRequest{
		ProtocolID: fs.Arg(0),
		Username:   fs.Arg(1),
		Alias:      *alias,
		Password:   *password,
		Remember:   *remember,
		Enabled:    *enabled,
	}))
}

func (x *cli) accountLog(ctx context.Context, args []string) {
	fs := pflag.NewFlagSet("accounts log", pflag.ExitOnError)
	limit := fs.IntP("limit", "n", 20, "number of entries")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage("accounts log [-n limit] <id>")
	}
	resp, err := x.c.Accounts.Log(ctx, fs.Arg(0), *limit)
	if err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(resp)
		return
	}
	for _, e := range resp.Entries {
		fmt.Printf("%s  %-14s %s\n", formatMillis(e.LoggedAtMs), e.Kind, e.Message)
	}
}

func (x *cli) printAccount(a *api.Account, err error) {
	if err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(a)
		return
	}
	printAccounts([]api.Account{*a})
	if len(a.Settings) > 0 {
		names := make([]string, 0, len(a.Settings))
		for name := range a.Settings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s = %s\n", name, a.Settings[name])
		}
	}
}

func printAccounts(accts []api.Account) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROTOCOL\tUSERNAME\tENABLED\tSTATE\tPRESENCE\tERROR")
	for _, a := range accts {
		enabled := "no"
		if a.Enabled {
			enabled = "yes"
		}
		errText := a.Error
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.ProtocolID, a.Username, enabled, a.State, a.Presence, errText)
	}
	_ = w.Flush()
}
