package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/taskhub/internal/config"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

func testMailer() *SMTPMailer {
	return NewSMTPMailer(config.MailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 2525,
		Username: "u",
		Password: "p",
		From:     "no-reply@taskhub.local",
	})
}

func TestNewPicksImplementation(t *testing.T) {
	assert.IsType(t, &LogMailer{}, New(config.MailConfig{From: "a@b.c"}, nil))
	assert.IsType(t, &SMTPMailer{}, New(config.MailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, From: "a@b.c"}, nil))
}

func TestSMTPMailerSend(t *testing.T) {
	m := testMailer()

	var sent *gomail.Msg
	m.deliver = func(_ context.Context, msg *gomail.Msg) error {
		sent = msg
		return nil
	}

	err := m.Send(context.Background(), Message{To: "alice@example.com", Subject: "Welcome", Body: "line1\nline2"})
	require.NoError(t, err)
	require.NotNil(t, sent)

	rcpts, err := sent.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, rcpts)
	assert.Equal(t, []string{"Welcome"}, sent.GetGenHeader(gomail.HeaderSubject))

	var raw bytes.Buffer
	_, err = sent.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "no-reply@taskhub.local")
	assert.Contains(t, raw.String(), "line1")
}

func TestSMTPMailerEncodesNonASCIISubject(t *testing.T) {
	m := testMailer()

	var sent *gomail.Msg
	m.deliver = func(_ context.Context, msg *gomail.Msg) error {
		sent = msg
		return nil
	}
	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.c", Subject: "Willkommen, Jürgen", Body: "hi"}))

	var raw bytes.Buffer
	_, err := sent.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "Subject: =?UTF-8?")
	assert.NotContains(t, raw.String(), "Subject: Willkommen, Jürgen")
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	m := testMailer()
	m.deliver = func(context.Context, *gomail.Msg) error {
		t.Fatal("must not send")
		return nil
	}
	err := m.Send(context.Background(), Message{To: "a@b.c\r\nBcc: evil@x.y", Subject: "hi"})
	assert.Error(t, err)
}

func TestSMTPMailerWrapsFailure(t *testing.T) {
	m := testMailer()
	boom := errors.New("connection refused")
	m.deliver = func(context.Context, *gomail.Msg) error { return boom }

	err := m.Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailerHonorsCancelledContext(t *testing.T) {
	m := testMailer()
	m.deliver = func(context.Context, *gomail.Msg) error {
		t.Fatal("must not dial")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@b.c"}), context.Canceled)
}

func TestSMTPMailerPassesContextToDelivery(t *testing.T) {
	m := testMailer()
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "request")

	m.deliver = func(got context.Context, _ *gomail.Msg) error {
		assert.Equal(t, "request", got.Value(key{}))
		return nil
	}
	require.NoError(t, m.Send(ctx, Message{To: "a@b.c"}))
}

func TestLogMailer(t *testing.T) {
	log, buf := logger.NewTestLogger(t)
	require.NoError(t, NewLogMailer(log).Send(context.Background(), Message{To: "alice@example.com", Subject: "Welcome"}))

	out := buf.String()
	assert.Contains(t, out, "Welcome")
	assert.NotContains(t, out, "alice@example.com")
}
