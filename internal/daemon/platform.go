package daemon

import (
	"context"
	"os"

	"github.com/SrClauss/agapp-messaging/internal/push"
	"go.uber.org/zap"
)

// logBadge reports the badge count through the daemon log. A mobile
// shell replaces this with the OS badge API.
type logBadge struct {
	logger *zap.Logger
}

func (b *logBadge) SetBadgeCount(n int) {
	b.logger.Info("badge count updated", zap.Int("count", n))
}

// logNotifier surfaces notifications in the daemon log. A mobile shell
// replaces this with the platform notification service.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) EnsureChannels() error { return nil }

func (n *logNotifier) Display(notif push.Notification) error {
	n.logger.Info("notification",
		zap.String("channel", notif.ChannelID),
		zap.String("title", notif.Title),
		zap.String("body", notif.Body),
		zap.String("contact_id", notif.Data["contact_id"]),
	)
	return nil
}

// envTokenSource reads the push token from AGAPP_PUSH_TOKEN. Unset
// means the device cannot receive pushes, which is not an error.
type envTokenSource struct{}

func (envTokenSource) Token(context.Context) (string, error) {
	return os.Getenv("AGAPP_PUSH_TOKEN"), nil
}
