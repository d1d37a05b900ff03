package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/status"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsEvents(t *testing.T) {
	c := New(nil)
	events := []bus.Event{
		{Kind: bus.AccountConnected},
		{Kind: bus.AccountConnected},
		{Kind: bus.AccountDisconnected},
		{Kind: bus.ConnectionError, Payload: bus.ConnectionPayload{ErrorKind: "network-error"}},
		{Kind: bus.ConnectionError},
		{Kind: bus.ConversationMessage, Payload: bus.MessagePayload{Outgoing: true}},
		{Kind: bus.ConversationMessage, Payload: bus.MessagePayload{}},
		{Kind: bus.ConversationMessage, Payload: bus.MessagePayload{}},
		{Kind: bus.OutboxQueued},
		{Kind: bus.OutboxSent},
	}
	for _, ev := range events {
		c.Observe(ev)
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"connected", testutil.ToFloat64(c.connected), 1},
		{"connect events", testutil.ToFloat64(c.events.WithLabelValues(bus.AccountConnected)), 2},
		{"network errors", testutil.ToFloat64(c.connErrors.WithLabelValues("network-error")), 1},
		{"unknown errors", testutil.ToFloat64(c.connErrors.WithLabelValues("unknown")), 1},
		{"messages in", testutil.ToFloat64(c.messages.WithLabelValues("in")), 2},
		{"messages out", testutil.ToFloat64(c.messages.WithLabelValues("out")), 1},
		{"outbox sent", testutil.ToFloat64(c.outbox.WithLabelValues("sent")), 1},
		{"outbox failed", testutil.ToFloat64(c.outbox.WithLabelValues("failed")), 0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestObserveRPC(t *testing.T) {
	c := New(nil)
	c.ObserveRPC("Send", "OK")
	c.ObserveRPC("Send", "OK")
	c.ObserveRPC("Send", "NotFound")
	if got := testutil.ToFloat64(c.rpcs.WithLabelValues("Send", "OK")); got != 2 {
		t.Errorf("Send OK = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.rpcs.WithLabelValues("Send", "NotFound")); got != 1 {
		t.Errorf("Send NotFound = %v, want 1", got)
	}
}

func TestStatusGaugeFollowsTransitions(t *testing.T) {
	c := New(nil)
	c.Observe(bus.Event{Kind: bus.CoreStatusChanged, Payload: status.StatusChange{From: status.Booting, To: status.Loading}})
	c.Observe(bus.Event{Kind: bus.CoreStatusChanged, Payload: status.StatusChange{From: status.Loading, To: status.Ready}})

	if got := testutil.ToFloat64(c.daemonStatus.WithLabelValues("READY")); got != 1 {
		t.Errorf("READY = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.daemonStatus); n != 1 {
		t.Errorf("status series = %d, want 1", n)
	}
}

func TestRouter(t *testing.T) {
	b := bus.New()
	c := New(b)
	m := status.NewMachine(nil)
	c.Observe(bus.Event{Kind: bus.AccountConnected})
	h := NewRouter(c, m)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"imcore_accounts_connected 1", "imcore_bus_dropped_total 0"} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/healthz status = %d", rr.Code)
	}
	var health Health
	if err := json.NewDecoder(rr.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != string(status.Booting) {
		t.Errorf("health status = %q, want BOOTING", health.Status)
	}

	_ = m.Transition(status.Error)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("/healthz in ERROR status = %d, want 503", rr.Code)
	}
}
