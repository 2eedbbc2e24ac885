package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestNewSenderWithoutHostIsNop(t *testing.T) {
	s := NewSender(Config{})
	_, ok := s.(NopSender)
	assert.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), "a@example.com", "hi", "body"))
}

func TestSMTPSenderComposesMessage(t *testing.T) {
	d := &captureDialer{}
	s := &smtpSender{dialer: d, from: "no-reply@fieldservice.local"}

	require.NoError(t, s.Send(context.Background(), "tech@example.com", "New service assigned", "Fix sink"))
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"no-reply@fieldservice.local"}, m.GetHeader("From"))
	assert.Equal(t, []string{"tech@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"New service assigned"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Fix sink")
}

func TestSMTPSenderReportsFailures(t *testing.T) {
	s := &smtpSender{dialer: &captureDialer{err: errors.New("connection refused")}, from: "x@example.com"}
	err := s.Send(context.Background(), "tech@example.com", "s", "b")
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "tech@example.com", "s", "b"), context.Canceled)
}
