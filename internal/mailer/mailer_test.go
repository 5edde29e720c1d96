package mailer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

type captureMailer struct {
	mu    sync.Mutex
	sent  []Message
	block chan struct{}
}

func (c *captureMailer) Send(_ context.Context, msg Message) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureMailer) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

func TestSMTPNotConfigured(t *testing.T) {
	m := NewSMTP(SMTPConfig{})
	err := m.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPFromFallsBackToUsername(t *testing.T) {
	m := NewSMTP(SMTPConfig{Host: "smtp.example.com", Username: "shop@example.com"})
	assert.Equal(t, "shop@example.com", m.from)
	assert.Equal(t, 587, m.dialer.Port)
}

func TestNotifierDeliversReviewNotice(t *testing.T) {
	cm := &captureMailer{}
	n := NewNotifier(cm, NotifierConfig{AdminEmail: "admin@example.com", BaseURL: "https://shop.example.com"})

	n.ReviewSubmitted(
		&models.Review{ProductID: "prod_9", Rating: 4, Comment: "Nice"},
		&models.User{Email: "buyer@example.com"},
	)
	require.NoError(t, n.Close(context.Background()))

	sent := cm.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "admin@example.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, "4/5")
	assert.Contains(t, sent[0].Text, "buyer@example.com")
	assert.Contains(t, sent[0].Text, "https://shop.example.com/admin/reviews")
}

func TestNotifierWithoutAdminEmailIsSilent(t *testing.T) {
	cm := &captureMailer{}
	n := NewNotifier(cm, NotifierConfig{})
	n.ReviewSubmitted(&models.Review{}, &models.User{})
	require.NoError(t, n.Close(context.Background()))
	assert.Empty(t, cm.messages())
}

func TestEnqueueNeverBlocks(t *testing.T) {
	cm := &captureMailer{block: make(chan struct{})}
	n := NewNotifier(cm, NotifierConfig{QueueSize: 1})

	accepted := 0
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			if n.Enqueue(Message{To: "x@example.com"}) {
				accepted++
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked")
	}
	assert.Less(t, accepted, 10)

	close(cm.block)
	require.NoError(t, n.Close(context.Background()))
	assert.Len(t, cm.messages(), accepted)
}

func TestEnqueueAfterClose(t *testing.T) {
	n := NewNotifier(&captureMailer{}, NotifierConfig{})
	require.NoError(t, n.Close(context.Background()))
	assert.False(t, n.Enqueue(Message{}))
	require.NoError(t, n.Close(context.Background()))
}
