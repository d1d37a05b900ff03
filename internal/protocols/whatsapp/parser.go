package whatsapp

import (
	"sort"

	"github.com/matheus3301/imcore/internal/protocol"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// incomingIM converts a live message into a direct message. Group,
// broadcast and own messages are skipped, as are messages without a
// displayable body.
func incomingIM(evt *events.Message) (protocol.IncomingIM, bool) {
	info := evt.Info
	if info.IsFromMe || info.IsGroup || info.Chat.Server == types.BroadcastServer {
		return protocol.IncomingIM{}, false
	}
	body := messageBody(evt.Message)
	if body == "" {
		return protocol.IncomingIM{}, false
	}
	return protocol.IncomingIM{
		ID:   info.ID,
		From: info.Chat.ToNonAD().String(),
		Body: body,
		At:   info.Timestamp,
	}, true
}

// messageBody returns the text of msg, or a placeholder such as "[image]"
// for media.
func messageBody(msg *waE2E.Message) string {
	if text := extractTextBody(msg); text != "" {
		return text
	}
	switch typ := detectMessageType(msg); typ {
	case "text", "unknown":
		return ""
	default:
		return "[" + typ + "]"
	}
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}

func typingState(p types.ChatPresence) protocol.TypingState {
	if p == types.ChatPresenceComposing {
		return protocol.Typing
	}
	return protocol.NotTyping
}

type rosterEntry struct {
	name  string
	alias string
}

// rosterEntries lists user contacts sorted by JID. The alias prefers the
// address book name over the push name.
func rosterEntries(contacts map[types.JID]types.ContactInfo) []rosterEntry {
	out := make([]rosterEntry, 0, len(contacts))
	for jid, info := range contacts {
		jid = jid.ToNonAD()
		if jid.Server != types.DefaultUserServer {
			continue
		}
		alias := info.FullName
		if alias == "" {
			alias = info.PushName
		}
		out = append(out, rosterEntry{name: jid.String(), alias: alias})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
