package bot

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/pachmu/skill_feed_alert_bot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Alert is a single job posting to announce.
type Alert struct {
	Title  string
	Link   string
	Skills []string
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier pushes job alerts to one telegram chat.
type Notifier struct {
	api    sender
	chatID string
	log    logrus.FieldLogger
}

// NewTelegramNotifier returns a notifier for conf.ChatID. It checks the token
// against the bot API once.
func NewTelegramNotifier(conf config.Bot) (*Notifier, error) {
	endpoint := conf.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := &http.Client{Timeout: conf.Timeout}
	b, err := tgbotapi.NewBotAPIWithClient(conf.Token, endpoint, client)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	logrus.Infof("Authorized on account %s", b.Self.UserName)

	return newNotifier(b, conf.ChatID), nil
}

func newNotifier(api sender, chatID string) *Notifier {
	return &Notifier{
		api:    api,
		chatID: strings.TrimSpace(chatID),
		log:    logrus.StandardLogger(),
	}
}

// Notify sends the alert and reports whether telegram accepted it. Every
// failure, including a panic in the transport, is logged and returned as false.
func (n *Notifier) Notify(ctx context.Context, a Alert) (ok bool) {
	log := n.log.WithField("link", a.Link)
	defer func() {
		if r := recover(); r != nil {
			log.Error(r, string(debug.Stack()))
			ok = false
		}
	}()

	if err := ctx.Err(); err != nil {
		log.Errorf("failed to send alert: %v", err)
		return false
	}

	msg := n.newMessage(FormatAlert(a))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		log.Errorf("failed to send alert: %v", err)
		return false
	}
	return true
}

func (n *Notifier) newMessage(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(n.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(n.chatID, text)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
)

// EscapeHTML makes text safe to embed in a telegram HTML message.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// FormatAlert renders the alert body in telegram HTML.
func FormatAlert(a Alert) string {
	var sb strings.Builder
	sb.WriteString("🚀 <b>New Job Match!</b>\n\n")
	fmt.Fprintf(&sb, "<b>Role:</b> %s\n", EscapeHTML(a.Title))
	if len(a.Skills) > 0 {
		fmt.Fprintf(&sb, "<b>Skills:</b> %s\n", EscapeHTML(strings.Join(a.Skills, ", ")))
	}
	fmt.Fprintf(&sb, "<b>Link:</b> %s", EscapeHTML(a.Link))
	return sb.String()
}
