package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"flulance/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func strPtr(s string) *string { return &s }

func TestNewMessage(t *testing.T) {
	n := &models.Notification{Title: "Application accepted", Body: "You got the job", Link: strPtr("/matches/42")}

	msg := NewMessage(n, "https://app.example.com/")
	assert.Equal(t, "Application accepted", msg.Subject)
	assert.Equal(t, "https://app.example.com/matches/42", msg.Link)

	assert.Equal(t, "/matches/42", NewMessage(n, "").Link)

	n.Link = nil
	assert.Empty(t, NewMessage(n, "https://app.example.com").Link)
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestEmailSender(t *testing.T) {
	_, err := NewEmailSender(SMTPConfig{FromEmail: "x@example.com"})
	require.Error(t, err)

	sender, err := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 587, FromEmail: "noreply@example.com", FromName: "Flulance"})
	require.NoError(t, err)
	dialer := &fakeDialer{}
	sender.dialer = dialer

	msg := Message{Subject: "New review", Body: "You received a 5-star review.", Link: "https://app/matches/1"}

	err = sender.Send(context.Background(), models.DeliveryContact{UserID: "u1"}, msg)
	assert.ErrorIs(t, err, ErrNoAddress)

	require.NoError(t, sender.Send(context.Background(), models.DeliveryContact{UserID: "u1", Email: strPtr("creator@example.com")}, msg))
	require.Len(t, dialer.sent, 1)
	assert.Equal(t, []string{"creator@example.com"}, dialer.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"New review"}, dialer.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"Flulance <noreply@example.com>"}, dialer.sent[0].GetHeader("From"))

	dialer.err = errors.New("connection refused")
	err = sender.Send(context.Background(), models.DeliveryContact{Email: strPtr("creator@example.com")}, msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTelegramSender(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
		chats []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Flulance","username":"flulance_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			mu.Lock()
			texts = append(texts, r.Form.Get("text"))
			chats = append(chats, r.Form.Get("chat_id"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":4242,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sender, err := NewTelegramSender("123:abc", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	assert.Equal(t, "telegram", sender.Name())

	msg := Message{Subject: "Match <completed>", Body: "Leave a review", Link: "https://app/matches/1"}
	err = sender.Send(context.Background(), models.DeliveryContact{UserID: "u1"}, msg)
	assert.ErrorIs(t, err, ErrNoAddress)

	chatID := int64(4242)
	require.NoError(t, sender.Send(context.Background(), models.DeliveryContact{UserID: "u1", TelegramChatID: &chatID}, msg))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, texts, 1)
	assert.Equal(t, "4242", chats[0])
	assert.Contains(t, texts[0], "<b>Match &lt;completed&gt;</b>")
	assert.Contains(t, texts[0], `href="https://app/matches/1"`)
}

func TestLogSender(t *testing.T) {
	var s Sender = LogSender{}
	assert.Equal(t, "log", s.Name())
	assert.NoError(t, s.Send(context.Background(), models.DeliveryContact{UserID: "u1"}, Message{Subject: "x"}))
}
