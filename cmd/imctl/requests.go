package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/spf13/pflag"
)

func (x *cli) requests(ctx context.Context, args []string) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		resp, err := x.c.Requests.List(ctx)
		if err != nil {
			fatal(err)
		}
		if x.jsonOut {
			outputJSON(resp)
			return
		}
		if len(resp.Requests) == 0 {
			fmt.Println("No pending requests.")
			return
		}
		for _, r := range resp.Requests {
			fmt.Printf("%s  [%s] %s\n", r.ID, r.Kind, r.Title)
			for _, line := range []string{r.Primary, r.Secondary} {
				if line != "" {
					fmt.Printf("    %s\n", line)
				}
			}
			if r.Data != "" {
				fmt.Println(r.Data)
			}
		}
	case "answer":
		fs := pflag.NewFlagSet("requests answer", pflag.ExitOnError)
		remember := fs.Bool("remember", false, "store the password")
		_ = fs.Parse(rest)
		if fs.NArg() != 1 {
			usage("requests answer [--remember] <id> < password")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fatal(fmt.Errorf("read password: %w", err))
		}
		err = x.c.Requests.AnswerPassword(ctx, &api.AnswerPasswordRequest{
			ID:       fs.Arg(0),
			Password: strings.TrimRight(line, "\r\n"),
			Remember: *remember,
		})
		if err != nil {
			fatal(err)
		}
		fmt.Fprintln(os.Stderr, "Answered.")
	case "cancel":
		if len(rest) != 1 {
			usage("requests cancel <id>")
		}
		if err := x.c.Requests.Dismiss(ctx, rest[0]); err != nil {
			fatal(err)
		}
		fmt.Println("Dismissed.")
	default:
		fmt.Fprintf(os.Stderr, "unknown requests subcommand: %s\n", sub)
		os.Exit(1)
	}
}
