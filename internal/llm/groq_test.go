package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"drinkup/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroq(t *testing.T, h http.HandlerFunc) *groqClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewGroqClient(&config.Config{GroqAPIKey: "secret"}).(*groqClient)
	c.url = srv.URL
	return c
}

func TestGroqGenerateContent(t *testing.T) {
	c := newTestGroq(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, GroqModel, body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "remind me", body.Messages[0].Content)

		w.Write([]byte(`{"choices":[{"message":{"content":"  Sip some water! 💧\n"}}]}`))
	})

	text, err := c.GenerateContent(context.Background(), "remind me")
	require.NoError(t, err)
	assert.Equal(t, "Sip some water! 💧", text)
}

func TestGroqErrors(t *testing.T) {
	c := newTestGroq(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	_, err := c.GenerateContent(context.Background(), "x")
	assert.ErrorContains(t, err, "status=429")

	c = newTestGroq(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	_, err = c.GenerateContent(context.Background(), "x")
	assert.ErrorContains(t, err, "no content generated")
}
