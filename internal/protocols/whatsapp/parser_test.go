package whatsapp

import (
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/protocol"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestExtractTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"image (no text)", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"empty conversation", &waE2E.Message{Conversation: proto.String("")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTextBody(tt.msg)
			if got != tt.want {
				t.Errorf("extractTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, ""},
		{"text", &waE2E.Message{Conversation: proto.String("hi")}, "hi"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, "[image]"},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, "[video]"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, "[audio]"},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, "[document]"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, "[sticker]"},
		{"contact", &waE2E.Message{ContactMessage: &waE2E.ContactMessage{}}, "[contact]"},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}, "[location]"},
		{"empty message", &waE2E.Message{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messageBody(tt.msg); got != tt.want {
				t.Errorf("messageBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIncomingIM(t *testing.T) {
	ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	evt := &events.Message{
		Info: types.MessageInfo{
			PushName:  "Alice",
			Timestamp: ts,
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "558592403672", Server: types.DefaultUserServer, Device: 1},
				Sender: types.JID{User: "558592403672", Server: types.DefaultUserServer, Device: 3},
			},
			ID: "MSG123",
		},
		Message: &waE2E.Message{Conversation: proto.String("hello world")},
	}

	im, ok := incomingIM(evt)
	if !ok {
		t.Fatal("incomingIM() skipped a direct message")
	}
	want := protocol.IncomingIM{ID: "MSG123", From: "558592403672@s.whatsapp.net", Body: "hello world", At: ts}
	if im != want {
		t.Errorf("incomingIM() = %+v, want %+v", im, want)
	}
}

func TestIncomingIMSkips(t *testing.T) {
	dm := types.JID{User: "1", Server: types.DefaultUserServer}
	tests := []struct {
		name   string
		source types.MessageSource
		msg    *waE2E.Message
	}{
		{"from me", types.MessageSource{Chat: dm, IsFromMe: true}, &waE2E.Message{Conversation: proto.String("x")}},
		{"group", types.MessageSource{Chat: types.JID{User: "1203", Server: types.GroupServer}, IsGroup: true}, &waE2E.Message{Conversation: proto.String("x")}},
		{"broadcast", types.MessageSource{Chat: types.JID{User: "status", Server: types.BroadcastServer}}, &waE2E.Message{Conversation: proto.String("x")}},
		{"no body", types.MessageSource{Chat: dm}, &waE2E.Message{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &events.Message{Info: types.MessageInfo{MessageSource: tt.source, ID: "M"}, Message: tt.msg}
			if _, ok := incomingIM(evt); ok {
				t.Error("incomingIM() accepted the message")
			}
		})
	}
}

func TestNormalizeJID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"558592403672@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"558592403672:5@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"+55 85 9240-3672", "558592403672@s.whatsapp.net"},
		{"120363123456@g.us", "120363123456@g.us"},
		{"3917077286968@lid", "3917077286968@lid"},
		{"", ""},
		{"invalid", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeJID(tt.input); got != tt.want {
				t.Errorf("normalizeJID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRosterEntries(t *testing.T) {
	contacts := map[types.JID]types.ContactInfo{
		{User: "2", Server: types.DefaultUserServer}:            {PushName: "bob"},
		{User: "1", Server: types.DefaultUserServer}:            {FullName: "Alice Doe", PushName: "al"},
		{User: "1203", Server: types.GroupServer}:               {FullName: "Group"},
		{User: "3", Server: types.DefaultUserServer, Device: 2}: {},
	}

	got := rosterEntries(contacts)
	want := []rosterEntry{
		{name: "1@s.whatsapp.net", alias: "Alice Doe"},
		{name: "2@s.whatsapp.net", alias: "bob"},
		{name: "3@s.whatsapp.net"},
	}
	if len(got) != len(want) {
		t.Fatalf("rosterEntries() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRenderQR(t *testing.T) {
	art, err := renderQR("2@abc,def,ghi")
	if err != nil {
		t.Fatalf("renderQR() error = %v", err)
	}
	if art == "" {
		t.Error("renderQR() returned nothing")
	}
}
