package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pachmu/skill_feed_alert_bot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:test"

type sentMessage struct {
	ChatID    string
	Text      string
	ParseMode string
}

// fakeTelegram mimics the two bot API methods the notifier uses. It rejects
// messages whose HTML is broken the way telegram does.
type fakeTelegram struct {
	mu     sync.Mutex
	sent   []sentMessage
	status int
	body   string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/bot" + testToken + "/getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"jobs","username":"jobs_bot"}}`))
	case "/bot" + testToken + "/sendMessage":
		_ = r.ParseForm()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		text := r.PostForm.Get("text")
		if strings.Contains(text, "<script>") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
			return
		}
		f.sent = append(f.sent, sentMessage{
			ChatID:    r.PostForm.Get("chat_id"),
			Text:      text,
			ParseMode: r.PostForm.Get("parse_mode"),
		})
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func newTestNotifier(t *testing.T, fake *fakeTelegram, chatID string) *Notifier {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	n, err := NewTelegramNotifier(config.Bot{
		Token:       testToken,
		ChatID:      chatID,
		APIEndpoint: srv.URL + "/bot%s/%s",
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	return n
}

func TestNotifySuccess(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake, "42")

	ok := n.Notify(context.Background(), Alert{
		Title:  "Remote Python Backend Engineer",
		Link:   "https://example.com/jobs/1",
		Skills: []string{"python", "backend"},
	})
	require.True(t, ok)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "42", fake.sent[0].ChatID)
	assert.Equal(t, "HTML", fake.sent[0].ParseMode)
	assert.Equal(t,
		"🚀 <b>New Job Match!</b>\n\n"+
			"<b>Role:</b> Remote Python Backend Engineer\n"+
			"<b>Skills:</b> python, backend\n"+
			"<b>Link:</b> https://example.com/jobs/1",
		fake.sent[0].Text)
}

func TestNotifyEscapesTitle(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake, "42")

	ok := n.Notify(context.Background(), Alert{
		Title: `<script>alert("x")</script> R&D Engineer`,
		Link:  "https://example.com/jobs?id=1&ref=rss",
	})
	require.True(t, ok)

	require.Len(t, fake.sent, 1)
	text := fake.sent[0].Text
	assert.Contains(t, text, "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt; R&amp;D Engineer")
	assert.Contains(t, text, "https://example.com/jobs?id=1&amp;ref=rss")
	assert.NotContains(t, text, "<script>")
}

func TestNotifyChannelChatID(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake, "@remote_jobs")

	require.True(t, n.Notify(context.Background(), Alert{Title: "AI Engineer", Link: "https://x/1"}))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "@remote_jobs", fake.sent[0].ChatID)
}

func TestNotifyFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error", status: http.StatusForbidden, body: `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `<html>oops</html>`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeTelegram{}
			n := newTestNotifier(t, fake, "42")
			fake.status, fake.body = tt.status, tt.body

			assert.False(t, n.Notify(context.Background(), Alert{Title: "AI Engineer", Link: "https://x/1"}))
		})
	}
}

func TestNotifyCancelledContext(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake, "42")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, n.Notify(ctx, Alert{Title: "AI Engineer", Link: "https://x/1"}))
	assert.Empty(t, fake.sent)
}

type panickingSender struct{}

func (panickingSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	panic("transport exploded")
}

func TestNotifyRecoversPanic(t *testing.T) {
	n := newNotifier(panickingSender{}, "42")
	assert.False(t, n.Notify(context.Background(), Alert{Title: "AI Engineer", Link: "https://x/1"}))
}

func TestNewTelegramNotifierBadToken(t *testing.T) {
	srv := httptest.NewServer(&fakeTelegram{})
	defer srv.Close()

	_, err := NewTelegramNotifier(config.Bot{
		Token:       "wrong",
		ChatID:      "42",
		APIEndpoint: srv.URL + "/bot%s/%s",
		Timeout:     time.Second,
	})
	assert.Error(t, err)
}

func TestFormatAlertWithoutSkills(t *testing.T) {
	assert.Equal(t,
		"🚀 <b>New Job Match!</b>\n\n<b>Role:</b> a &lt; b\n<b>Link:</b> L",
		FormatAlert(Alert{Title: "a < b", Link: "L"}))
}
