package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("bot-token", WithBaseURL(srv.URL))
}

func TestSendMessage(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/sendMessage", r.URL.Path)

		var req SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "12345", req.ChatID)
		require.NotNil(t, req.ReplyMarkup)
		assert.Equal(t, "ENRIQUECER", req.ReplyMarkup.InlineKeyboard[0][0].Text)

		w.Write([]byte(`{"ok":true,"result":{"message_id":777,"chat":{"id":12345}}}`))
	})

	msg, err := c.SendMessage(context.Background(), SendMessageRequest{
		ChatID: "12345",
		Text:   "preview",
		ReplyMarkup: &InlineKeyboardMarkup{
			InlineKeyboard: [][]InlineKeyboardButton{{
				{Text: "ENRIQUECER", CallbackData: "enrich:acme.com.br"},
				{Text: "DESCARTAR", CallbackData: "discard:acme.com.br"},
			}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(777), msg.MessageID)
}

func TestSendMessageAPIFailure(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	})

	_, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: "0", Text: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Description, "chat not found")
}

func TestAnswerCallbackQuery(t *testing.T) {
	var got map[string]string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/answerCallbackQuery", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "cb-1", "Recebido"))
	assert.Equal(t, "cb-1", got["callback_query_id"])
	assert.Equal(t, "Recebido", got["text"])
}

func TestEditMessageText(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/editMessageText", r.URL.Path)
		w.Write([]byte(`{"ok":true,"result":{"message_id":777}}`))
	})

	err := c.EditMessageText(context.Background(), EditMessageTextRequest{
		ChatID: "12345", MessageID: 777, Text: "decisão registrada",
	})
	require.NoError(t, err)
}
