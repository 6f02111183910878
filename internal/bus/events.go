package bus

import "time"

type InboundMessage struct {
	Channel    string
	SenderID   string
	SenderName string
	ChatID     string
	Content    string
	Timestamp  time.Time
	// MentionsSelf is set when the message addresses the bot: an @mention,
	// a reply to one of its messages, a command, or a private chat.
	MentionsSelf bool
	// FromSelf marks messages the bot authored itself.
	FromSelf bool
	Metadata map[string]any
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Metadata map[string]any
}
