package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSender_Configured(t *testing.T) {
	assert.True(t, NewTelegramSender("token", "chat").Configured())
	assert.False(t, NewTelegramSender("", "chat").Configured())
	assert.False(t, NewTelegramSender("token", "").Configured())
}

func TestTelegramSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("posts HTML message to the bot endpoint", func(t *testing.T) {
		var gotPath string
		var gotPayload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		sender := NewTelegramSender("test-token", "12345")
		sender.baseURL = srv.URL
		sender.client = srv.Client()

		err := sender.Send(ctx, "<b>hello</b>")
		require.NoError(t, err)

		assert.Equal(t, "/bottest-token/sendMessage", gotPath)
		assert.Equal(t, "12345", gotPayload["chat_id"])
		assert.Equal(t, "<b>hello</b>", gotPayload["text"])
		assert.Equal(t, "HTML", gotPayload["parse_mode"])
		assert.Equal(t, true, gotPayload["disable_web_page_preview"])
	})

	t.Run("non-200 response is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"ok":false,"description":"bot was blocked"}`))
		}))
		defer srv.Close()

		sender := NewTelegramSender("test-token", "12345")
		sender.baseURL = srv.URL
		sender.client = srv.Client()

		err := sender.Send(ctx, "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
		assert.Contains(t, err.Error(), "bot was blocked")
	})
}
