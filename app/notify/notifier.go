package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/lysyi3m/event-comb/app/event"
)

type Sender interface {
	Send(ctx context.Context, text string) error
}

var _ Sender = (*TelegramSender)(nil)

// Notifier announces newly added records. A nil sender disables it.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Run sends one message for added and reports whether anything was sent.
func (n *Notifier) Run(ctx context.Context, added []event.Record) (bool, error) {
	if n == nil || n.sender == nil {
		slog.Debug("Notification skipped, no sender configured")
		return false, nil
	}

	message := BuildMessage(added)
	if message == "" {
		slog.Debug("Notification skipped, nothing added")
		return false, nil
	}

	if err := n.sender.Send(ctx, message); err != nil {
		return false, err
	}

	slog.Info("Notification sent", "added", len(added))
	return true, nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
