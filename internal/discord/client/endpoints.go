package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/relay/internal/discord/rate"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// BroadcastConcurrency bounds the number of channels messaged at once.
const BroadcastConcurrency = 4

type messagePayload struct {
	Content   string            `json:"content,omitempty"`
	TTS       bool              `json:"tts"`
	Nonce     string            `json:"nonce,omitempty"`
	Reference *MessageReference `json:"message_reference,omitempty"`
}

// GetMe returns the account behind the token. A rejected token
// is reported as ErrLoginFailure.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	route := rate.NewRoute(http.MethodGet, "/users/@me", nil)

	var user User
	if err := c.decode(ctx, route, nil, &user); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %w", ErrLoginFailure, err)
		}
		return nil, err
	}
	return &user, nil
}

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(
	ctx context.Context, channelID snowflake.ID, content string, opts *MessageOptions,
) (*Message, error) {
	return c.postMessage(ctx, channelID, &Call{Body: newMessagePayload(content, opts)})
}

// SendFiles posts a message with attachments to a channel. Content may be empty.
// Each reader is rewound before every attempt.
func (c *Client) SendFiles(
	ctx context.Context, channelID snowflake.ID, content string, files []File, opts *MessageOptions,
) (*Message, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files to send", ErrInvalidFile)
	}

	return c.postMessage(ctx, channelID, &Call{
		Body:  newMessagePayload(content, opts),
		Files: files,
	})
}

func (c *Client) postMessage(ctx context.Context, channelID snowflake.ID, call *Call) (*Message, error) {
	route := rate.NewRoute(http.MethodPost, "/channels/{channel_id}/messages", rate.Params{
		rate.ChannelParam: channelID.String(),
	})

	var message Message
	if err := c.decode(ctx, route, call, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func newMessagePayload(content string, opts *MessageOptions) messagePayload {
	if opts == nil {
		opts = &MessageOptions{}
	}

	payload := messagePayload{
		Content:   content,
		TTS:       opts.TTS,
		Nonce:     opts.Nonce,
		Reference: opts.Reply,
	}
	if payload.Nonce == "" {
		payload.Nonce = snowflake.New(time.Now()).String()
	}
	return payload
}

// TriggerTyping shows the typing indicator in a channel.
func (c *Client) TriggerTyping(ctx context.Context, channelID snowflake.ID) error {
	route := rate.NewRoute(http.MethodPost, "/channels/{channel_id}/typing", rate.Params{
		rate.ChannelParam: channelID.String(),
	})

	_, err := c.Execute(ctx, route, nil)
	return err
}

// GetMessages returns channel history, newest first.
func (c *Client) GetMessages(ctx context.Context, channelID snowflake.ID, query MessageQuery) ([]Message, error) {
	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Before != 0 {
		params.Set("before", query.Before.String())
	}
	if query.After != 0 {
		params.Set("after", query.After.String())
	}
	if query.Around != 0 {
		params.Set("around", query.Around.String())
	}

	route := rate.NewRoute(http.MethodGet, "/channels/{channel_id}/messages", rate.Params{
		rate.ChannelParam: channelID.String(),
	})

	var messages []Message
	if err := c.decode(ctx, route, &Call{Query: params}, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetChannel returns a channel by ID.
func (c *Client) GetChannel(ctx context.Context, channelID snowflake.ID) (*Channel, error) {
	route := rate.NewRoute(http.MethodGet, "/channels/{channel_id}", rate.Params{
		rate.ChannelParam: channelID.String(),
	})

	var channel Channel
	if err := c.decode(ctx, route, nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// EditMessage replaces the content of a message.
func (c *Client) EditMessage(
	ctx context.Context, channelID, messageID snowflake.ID, content string,
) (*Message, error) {
	route := rate.NewRoute(http.MethodPatch, "/channels/{channel_id}/messages/{message_id}", rate.Params{
		rate.ChannelParam: channelID.String(),
		"message_id":      messageID.String(),
	})

	var message Message
	if err := c.decode(ctx, route, &Call{Body: map[string]string{"content": content}}, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	route := rate.NewRoute(http.MethodDelete, "/channels/{channel_id}/messages/{message_id}", rate.Params{
		rate.ChannelParam: channelID.String(),
		"message_id":      messageID.String(),
	})

	_, err := c.Execute(ctx, route, nil)
	return err
}

// AckMessage marks a channel as read up to the given message.
func (c *Client) AckMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	route := rate.NewRoute(http.MethodPost, "/channels/{channel_id}/messages/{message_id}/ack", rate.Params{
		rate.ChannelParam: channelID.String(),
		"message_id":      messageID.String(),
	})

	_, err := c.Execute(ctx, route, &Call{Body: map[string]any{"token": nil}})
	return err
}

// AddReaction reacts to a message as the current user. Unicode emoji are
// passed as-is; custom emoji use the name:id form.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error {
	route := rate.NewRoute(http.MethodPut,
		"/channels/{channel_id}/messages/{message_id}/reactions/{emoji}/@me", rate.Params{
			rate.ChannelParam: channelID.String(),
			"message_id":      messageID.String(),
			"emoji":           emoji,
		})

	_, err := c.Execute(ctx, route, nil)
	return err
}

// StartPrivateMessage opens a DM channel with a user.
func (c *Client) StartPrivateMessage(ctx context.Context, recipient snowflake.ID) (*Channel, error) {
	route := rate.NewRoute(http.MethodPost, "/users/@me/channels", nil)
	call := &Call{
		Body:    map[string][]string{"recipients": {recipient.String()}},
		Context: EmptyContext(),
	}

	var channel Channel
	if err := c.decode(ctx, route, call, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// Broadcast sends the same content to several channels concurrently.
// Each channel is its own bucket so sends only wait on each other during a
// global rate limit. Results keep the order of channelIDs.
func (c *Client) Broadcast(ctx context.Context, channelIDs []snowflake.ID, content string) []BroadcastResult {
	results := make([]BroadcastResult, len(channelIDs))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(BroadcastConcurrency)

	for i, channelID := range channelIDs {
		p.Go(func(ctx context.Context) error {
			message, err := c.SendMessage(ctx, channelID, content, nil)
			if err != nil {
				c.logger.Warn("Failed to broadcast message",
					zap.Uint64("channel_id", uint64(channelID)),
					zap.Error(err))
			}

			results[i] = BroadcastResult{ChannelID: channelID, Message: message, Err: err}
			return nil
		})
	}

	_ = p.Wait()
	return results
}

// decode executes the call and decodes a JSON response into v.
func (c *Client) decode(ctx context.Context, route rate.Route, call *Call, v any) error {
	resp, err := c.Execute(ctx, route, call)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}
