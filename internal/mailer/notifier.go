package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/observability"
)

const (
	defaultQueueSize = 64
	sendTimeout      = 30 * time.Second
)

// Notifier delivers admin notifications from a single background
// goroutine. Enqueueing never blocks: when the queue is full the message
// is dropped and logged.
type Notifier struct {
	mailer     Mailer
	adminEmail string
	baseURL    string
	logger     *slog.Logger
	obs        *observability.Config

	mu     sync.Mutex
	closed bool
	queue  chan Message
	done   chan struct{}
}

type NotifierConfig struct {
	AdminEmail string
	BaseURL    string
	QueueSize  int
	Logger     *slog.Logger
	Obs        *observability.Config
}

func NewNotifier(m Mailer, cfg NotifierConfig) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	n := &Notifier{
		mailer:     m,
		adminEmail: cfg.AdminEmail,
		baseURL:    cfg.BaseURL,
		logger:     cfg.Logger,
		obs:        cfg.Obs,
		queue:      make(chan Message, cfg.QueueSize),
		done:       make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := n.mailer.Send(ctx, msg)
		cancel()

		n.obs.Metrics().RecordMail(context.Background(), "notification", err == nil)
		if err != nil {
			n.logger.Error("notification not delivered", "to", msg.To, "subject", msg.Subject, "error", err)
		}
	}
}

// Enqueue reports whether the message was accepted.
func (n *Notifier) Enqueue(msg Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		n.logger.Warn("notification dropped after shutdown", "subject", msg.Subject)
		return false
	}
	select {
	case n.queue <- msg:
		return true
	default:
		n.logger.Warn("notification queue full, dropping message", "subject", msg.Subject)
		return false
	}
}

// ReviewSubmitted tells the admin a review awaits moderation.
func (n *Notifier) ReviewSubmitted(r *models.Review, author *models.User) {
	if n.adminEmail == "" {
		return
	}
	comment := r.Comment
	if comment == "" {
		comment = "(no comment)"
	}
	n.Enqueue(Message{
		To:      n.adminEmail,
		Subject: fmt.Sprintf("New review awaiting moderation (%d/5)", r.Rating),
		Text: fmt.Sprintf("%s rated product %s %d/5.\n\n%s\n\nModerate it at %s/admin/reviews\n",
			author.DisplayName(), r.ProductID, r.Rating, comment, n.baseURL),
	})
}

// Close stops accepting messages and waits for the queue to drain or ctx
// to end.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
