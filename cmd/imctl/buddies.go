package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/spf13/pflag"
)

func (x *cli) buddies(ctx context.Context, args []string) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		fs := pflag.NewFlagSet("buddies list", pflag.ExitOnError)
		all := fs.BoolP("all", "a", false, "include offline buddies")
		_ = fs.Parse(rest)
		resp, err := x.c.Buddies.List(ctx)
		if err != nil {
			fatal(err)
		}
		if x.jsonOut {
			outputJSON(resp)
			return
		}
		printGroups(resp.Groups, *all)
	case "add":
		fs := pflag.NewFlagSet("buddies add", pflag.ExitOnError)
		alias := fs.String("alias", "", "local alias")
		group := fs.StringP("group", "g", "", "group (default Buddies)")
		_ = fs.Parse(rest)
		if fs.NArg() != 2 {
			usage("buddies add [--alias a] [--group g] <account> <name>")
		}
		b, err := x.c.Buddies.Add(ctx, &api.AddBuddyRequest{
			AccountID: fs.Arg(0), Name: fs.Arg(1), Alias: *alias, Group: *group,
		})
		if err != nil {
			fatal(err)
		}
		x.printBuddy(b)
	case "remove":
		if len(rest) != 2 {
			usage("buddies remove <account> <name>")
		}
		if err := x.c.Buddies.Remove(ctx, rest[0], rest[1]); err != nil {
			fatal(err)
		}
		fmt.Printf("Removed %s.\n", rest[1])
	case "alias":
		if len(rest) != 3 {
			usage("buddies alias <account> <name> <alias>")
		}
		b, err := x.c.Buddies.Alias(ctx, &api.AliasBuddyRequest{AccountID: rest[0], Name: rest[1], Alias: rest[2]})
		if err != nil {
			fatal(err)
		}
		x.printBuddy(b)
	default:
		fmt.Fprintf(os.Stderr, "unknown buddies subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func (x *cli) printBuddy(b *api.Buddy) {
	if x.jsonOut {
		outputJSON(b)
		return
	}
	fmt.Printf("%s/%s", b.AccountID, b.Name)
	if b.Alias != "" {
		fmt.Printf(" (%s)", b.Alias)
	}
	fmt.Println()
}

func printGroups(groups []api.Group, all bool) {
	for _, g := range groups {
		fmt.Printf("%s (%d/%d)\n", g.Name, g.Online, g.Total)
		for _, c := range g.Contacts {
			for _, b := range c.Buddies {
				if !b.Visible || (!b.Online && !all) {
					continue
				}
				mark := " "
				if b.Online {
					mark = "*"
				}
				name := b.Name
				if b.Alias != "" {
					name = b.Alias + " <" + b.Name + ">"
				}
				fmt.Printf("  %s %-30s %s\n", mark, name, b.AccountID)
			}
		}
	}
}
