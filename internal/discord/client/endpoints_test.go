package client

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMe(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users/@me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "80351110224678912", "username": "nelly", "discriminator": "0"}`))
	})

	user, err := c.GetMe(t.Context())
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(80351110224678912), user.ID)
	assert.Equal(t, "nelly", user.Username)
}

func TestGetMeLoginFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "401: Unauthorized", "code": 0}`))
	})

	_, err := c.GetMe(t.Context())
	require.ErrorIs(t, err, ErrLoginFailure)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/123/messages", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &payload))

		_, _ = w.Write([]byte(`{"id": "5", "channel_id": "123", "content": "hello"}`))
	})

	message, err := c.SendMessage(t.Context(), 123, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(5), message.ID)
	assert.Equal(t, snowflake.ID(123), message.ChannelID)

	assert.Equal(t, "hello", payload["content"])
	assert.Equal(t, false, payload["tts"])
	assert.NotEmpty(t, payload["nonce"])
	assert.NotContains(t, payload, "message_reference")
}

func TestSendMessageReply(t *testing.T) {
	t.Parallel()

	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &payload))
		_, _ = w.Write([]byte(`{"id": "6", "channel_id": "123"}`))
	})

	_, err := c.SendMessage(t.Context(), 123, "pong", &MessageOptions{
		Nonce: "42",
		Reply: &MessageReference{MessageID: 9},
	})
	require.NoError(t, err)

	assert.Equal(t, "42", payload["nonce"])
	require.Contains(t, payload, "message_reference")
	assert.Equal(t, "9", payload["message_reference"].(map[string]any)["message_id"])
}

func TestGetMessagesQuery(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/1/messages", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "77", r.URL.Query().Get("before"))
		assert.Empty(t, r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(`[{"id": "76", "channel_id": "1"}, {"id": "75", "channel_id": "1"}]`))
	})

	messages, err := c.GetMessages(t.Context(), 1, MessageQuery{Limit: 50, Before: 77})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, snowflake.ID(76), messages[0].ID)
}

func TestMessageMutations(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		requests []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.EscapedPath())
		mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"id": "1", "type": 0, "guild_id": "3", "name": "general"}`))
			return
		case http.MethodPatch:
			_, _ = w.Write([]byte(`{"id": "2", "channel_id": "1", "content": "edited"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := t.Context()
	channel, err := c.GetChannel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "general", channel.Name)
	require.NotNil(t, channel.GuildID)
	assert.Equal(t, snowflake.ID(3), *channel.GuildID)

	message, err := c.EditMessage(ctx, 1, 2, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", message.Content)

	require.NoError(t, c.AddReaction(ctx, 1, 2, "🔥"))
	require.NoError(t, c.AckMessage(ctx, 1, 2))
	require.NoError(t, c.TriggerTyping(ctx, 1))
	require.NoError(t, c.DeleteMessage(ctx, 1, 2))

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []string{
		"GET /channels/1",
		"PATCH /channels/1/messages/2",
		"PUT /channels/1/messages/2/reactions/%F0%9F%94%A5/@me",
		"POST /channels/1/messages/2/ack",
		"POST /channels/1/typing",
		"DELETE /channels/1/messages/2",
	}, requests)
}

func TestStartPrivateMessage(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me/channels", r.URL.Path)
		assert.Equal(t, "e30=", r.Header.Get("X-Context-Properties"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"recipients": ["55"]}`, string(body))

		_, _ = w.Write([]byte(`{"id": "900", "type": 1, "recipients": [{"id": "55", "username": "friend"}]}`))
	})

	channel, err := c.StartPrivateMessage(t.Context(), 55)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(900), channel.ID)
	require.Len(t, channel.Recipients, 1)
	assert.Equal(t, "friend", channel.Recipients[0].Username)
}

func TestBroadcast(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		channelID := strings.Split(r.URL.Path, "/")[2]
		if channelID == "2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"id": "1", "channel_id": "` + channelID + `"}`))
	})

	results := c.Broadcast(t.Context(), []snowflake.ID{1, 2, 3}, "hi all")
	require.Len(t, results, 3)

	for i, result := range results {
		assert.Equal(t, snowflake.ID(i+1), result.ChannelID)
	}

	require.NoError(t, results[0].Err)
	assert.Equal(t, snowflake.ID(1), results[0].Message.ChannelID)
	require.ErrorIs(t, results[1].Err, ErrForbidden)
	assert.Nil(t, results[1].Message)
	require.NoError(t, results[2].Err)
	assert.Equal(t, snowflake.ID(3), results[2].Message.ChannelID)
}

func TestSendFilesResendsAttachmentOnRetry(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		uploads  []string
		payloads []string
		calls    atomic.Int32
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		_ = file.Close()

		mu.Lock()
		uploads = append(uploads, header.Filename+":"+string(data))
		payloads = append(payloads, r.FormValue("payload_json"))
		mu.Unlock()

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id": "8", "channel_id": "123", "content": "see attached"}`))
	})

	files := []File{{Name: "report.txt", Reader: strings.NewReader("full attachment body")}}
	message, err := c.SendFiles(t.Context(), 123, "see attached", files, &MessageOptions{Nonce: "7"})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(8), message.ID)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{
		"report.txt:full attachment body",
		"report.txt:full attachment body",
	}, uploads)
	require.Len(t, payloads, 2)
	assert.JSONEq(t, `{"content": "see attached", "tts": false, "nonce": "7"}`, payloads[1])
}

func TestSendFilesNamesEveryPart(t *testing.T) {
	t.Parallel()

	var fields []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		for name, headers := range r.MultipartForm.File {
			fields = append(fields, name+"="+headers[0].Filename)
		}
		_, _ = w.Write([]byte(`{"id": "9", "channel_id": "123"}`))
	})

	files := []File{
		{Name: "a.png", Reader: bytes.NewReader([]byte{0x89, 0x50})},
		{Name: "b.png", Reader: bytes.NewReader([]byte{0x89, 0x51})},
	}
	_, err := c.SendFiles(t.Context(), 123, "", files, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"file0=a.png", "file1=b.png"}, fields)
}

func TestSendFilesRejectsMissingFiles(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := c.SendFiles(t.Context(), 123, "hi", nil, nil)
	require.ErrorIs(t, err, ErrInvalidFile)

	_, err = c.SendFiles(t.Context(), 123, "hi", []File{{Name: "empty"}}, nil)
	require.ErrorIs(t, err, ErrInvalidFile)

	assert.Zero(t, calls.Load())
	assertBalanced(t, c)
}
