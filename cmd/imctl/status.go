package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/imcore/internal/api"
	"golang.org/x/sync/errgroup"
)

func (x *cli) status(ctx context.Context) {
	var (
		st    *api.StatusResponse
		accts *api.ListAccountsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { st, err = x.c.Core.Status(gctx); return })
	g.Go(func() (err error) { accts, err = x.c.Accounts.List(gctx); return })
	if err := g.Wait(); err != nil {
		fatal(err)
	}
	if x.jsonOut {
		outputJSON(struct {
			*api.StatusResponse
			AccountList []api.Account `json:"account_list"`
		}{st, accts.Accounts})
		return
	}

	online := "offline"
	if st.Online {
		online = "online"
	}
	fmt.Printf("Profile:       %s\n", st.Profile)
	fmt.Printf("State:         %s (%s)\n", st.State, online)
	fmt.Printf("Uptime:        %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
	fmt.Printf("Accounts:      %d (%d connected)\n", st.Accounts, st.Connected)
	fmt.Printf("Buddies:       %d\n", st.Buddies)
	fmt.Printf("Conversations: %d\n", st.Conversations)
	fmt.Printf("Messages:      %d\n", st.Messages)
	fmt.Printf("Requests:      %d pending\n", st.PendingRequests)
	ids := make([]string, 0, len(st.Protocols))
	for _, p := range st.Protocols {
		ids = append(ids, p.ID)
	}
	fmt.Printf("Protocols:     %s\n", strings.Join(ids, ", "))
	if len(accts.Accounts) > 0 {
		fmt.Println()
		printAccounts(accts.Accounts)
	}
}

func (x *cli) online(ctx context.Context, args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		usage("online <on|off>")
	}
	if err := x.c.Core.SetOnline(ctx, args[0] == "on"); err != nil {
		fatal(err)
	}
	if args[0] == "on" {
		fmt.Println("Core is going online.")
	} else {
		fmt.Println("Core is going offline.")
	}
}

func (x *cli) watch(ctx context.Context, args []string) {
	ns := ""
	if len(args) > 0 {
		ns = args[0]
	}
	stream, err := x.c.Core.Watch(ctx, ns)
	if err != nil {
		fatal(err)
	}
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fatal(err)
		}
		if x.jsonOut {
			outputJSON(ev)
			continue
		}
		fmt.Printf("%s %-28s %s\n", formatMillis(ev.OccurredAtMs), ev.Kind, ev.Payload)
	}
}
