package client

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// User is the subset of a Discord user the dispatcher exposes.
type User struct {
	ID            snowflake.ID `json:"id"`
	Username      string       `json:"username"`
	GlobalName    *string      `json:"global_name"`
	Discriminator string       `json:"discriminator"`
	Bot           bool         `json:"bot"`
}

// Channel is the subset of a Discord channel the dispatcher exposes.
type Channel struct {
	ID         snowflake.ID  `json:"id"`
	Type       int           `json:"type"`
	GuildID    *snowflake.ID `json:"guild_id"`
	Name       string        `json:"name"`
	Recipients []User        `json:"recipients"`
}

// MessageReference points at the message being replied to.
type MessageReference struct {
	MessageID snowflake.ID  `json:"message_id"`
	ChannelID snowflake.ID  `json:"channel_id,omitempty"`
	GuildID   *snowflake.ID `json:"guild_id,omitempty"`
}

// Message is the subset of a Discord message the dispatcher exposes.
type Message struct {
	ID        snowflake.ID      `json:"id"`
	ChannelID snowflake.ID      `json:"channel_id"`
	Author    User              `json:"author"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Nonce     any               `json:"nonce"`
	Reference *MessageReference `json:"message_reference"`
}

// MessageOptions are the optional fields of a sent message.
type MessageOptions struct {
	TTS bool
	// Nonce defaults to a snowflake of the current time when empty.
	Nonce string
	// Reply makes the message a reply to the referenced message.
	Reply *MessageReference
}

// MessageQuery pages through channel history. At most one of Before, After
// and Around should be set.
type MessageQuery struct {
	Limit  int
	Before snowflake.ID
	After  snowflake.ID
	Around snowflake.ID
}

// BroadcastResult is the outcome of one channel in a broadcast.
type BroadcastResult struct {
	ChannelID snowflake.ID
	Message   *Message
	Err       error
}
