package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"marketscout/internal/config"
)

var sample = Notification{
	AlertID:   9,
	UserID:    4,
	Username:  "alice",
	Email:     "alice@example.com",
	Message:   "🚀 Widget trend score increased by 20.0 points!",
	CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

func TestWebhookPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL).Notify(context.Background(), sample))
	assert.Equal(t, sample.Message, got["message"])
	assert.Equal(t, "alice", got["username"])
	assert.NotContains(t, got, "email")
}

func TestWebhookReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestEmailBuildsMessage(t *testing.T) {
	var sent *gomail.Message
	e := &Email{from: "alerts@marketscout.local", send: func(m *gomail.Message) error {
		sent = m
		return nil
	}}

	require.NoError(t, e.Notify(context.Background(), sample))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"alice@example.com"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"alerts@marketscout.local"}, sent.GetHeader("From"))
}

func TestEmailSkipsUsersWithoutAddress(t *testing.T) {
	e := &Email{from: "a@b.c", send: func(*gomail.Message) error {
		t.Fatal("send must not be called")
		return nil
	}}

	n := sample
	n.Email = ""
	assert.NoError(t, e.Notify(context.Background(), n))
}

type notifierFunc func(context.Context, Notification) error

func (f notifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

func TestMultiJoinsErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	m := Multi{
		notifierFunc(func(context.Context, Notification) error { calls++; return boom }),
		notifierFunc(func(context.Context, Notification) error { calls++; return nil }),
	}

	err := m.Notify(context.Background(), sample)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	assert.NoError(t, Multi{}.Notify(context.Background(), sample))
}

func TestFromConfig(t *testing.T) {
	assert.Empty(t, FromConfig(config.Notifications{}))
	assert.Len(t, FromConfig(config.Notifications{WebhookURL: "http://hooks.local", SMTPHost: "smtp.local", SMTPPort: 587}), 2)
}
