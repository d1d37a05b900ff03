package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/spf13/pflag"
)

func (x *cli) conversations(ctx context.Context, args []string) {
	fs := pflag.NewFlagSet("conversations", pflag.ExitOnError)
	account := fs.StringP("account", "a", "", "only this account")
	_ = fs.Parse(args)
	resp, err := x.c.Conversations.List(ctx, *account)
	if err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Conversations) == 0 {
		fmt.Println("No open conversations.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACCOUNT\tTYPE\tTITLE\tTYPING\tMESSAGES")
	for _, c := range resp.Conversations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", c.ID, c.AccountID, c.Type, c.Title, c.Typing, c.Messages)
	}
	_ = w.Flush()
}

func (x *cli) send(ctx context.Context, args []string) {
	if len(args) < 3 {
		usage("send <account> <to> <message...>")
	}
	resp, err := x.c.Conversations.Send(ctx, &api.SendRequest{
		AccountID: args[0],
		To:        args[1],
		Body:      strings.Join(args[2:], " "),
	})
	if err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(resp)
		return
	}
	if resp.Queued {
		fmt.Printf("Queued %s; it will be sent when the account connects.\n", resp.MsgID)
		return
	}
	fmt.Printf("Sent %s.\n", resp.MsgID)
}

func (x *cli) typing(ctx context.Context, args []string) {
	if len(args) != 3 {
		usage("typing <account> <to> <typing|paused|none>")
	}
	conv, err := x.c.Conversations.SetTyping(ctx, &api.SetTypingRequest{AccountID: args[0], To: args[1], State: args[2]})
	if err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(conv)
		return
	}
	fmt.Printf("%s: %s\n", conv.Title, args[2])
}

func (x *cli) history(ctx context.Context, args []string) {
	fs := pflag.NewFlagSet("history", pflag.ExitOnError)
	limit := fs.IntP("limit", "n", 50, "number of messages")
	before := fs.String("before", "", "only messages before this RFC 3339 time")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		usage("history [-n limit] [--before time] <account> <conversation-id>")
	}
	req := &api.HistoryRequest{AccountID: fs.Arg(0), ConversationID: fs.Arg(1), Limit: *limit}
	if *before != "" {
		t, err := time.Parse(time.RFC3339, *before)
		if err != nil {
			fatal(fmt.Errorf("--before: %w", err))
		}
		req.BeforeMs = t.UnixMilli()
	}
	resp, err := x.c.Conversations.History(ctx, req)
	if err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(resp)
		return
	}
	printMessages(resp.Messages)
	if resp.HasMore {
		fmt.Println("(more)")
	}
}

func (x *cli) search(ctx context.Context, args []string) {
	fs := pflag.NewFlagSet("search", pflag.ExitOnError)
	account := fs.StringP("account", "a", "", "only this account")
	limit := fs.IntP("limit", "n", 50, "number of messages")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		usage("search [-a account] [-n limit] <query...>")
	}
	resp, err := x.c.Conversations.Search(ctx, &api.SearchRequest{
		Query:     strings.Join(fs.Args(), " "),
		AccountID: *account,
		Limit:     *limit,
	})
	if err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Messages) == 0 {
		fmt.Println("No matches.")
		return
	}
	printMessages(resp.Messages)
}

// printMessages prints msgs oldest first; the daemon returns them newest
// first.
func printMessages(msgs []api.Message) {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		author := m.Author
		if m.Outgoing {
			author = "me"
		}
		fmt.Printf("%s  %s: %s\n", formatMillis(m.TimestampMs), author, m.Body)
	}
}
