// Package notify delivers audit messages (uploads, deletions, logouts) to
// an external channel. Delivery is fire-and-forget: failures are logged and
// never reach the caller.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/doctree/internal/logging"
)

type Notifier interface {
	Notify(ctx context.Context, message string)
}

// LogNotifier writes messages to the log.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, message string) {
	n.logger.Info(ctx, "notification", "message", message)
}

const timeLayout = "2006-01-02 15:04:05"

func UploadMessage(at time.Time, user, filename, directoryPath string) string {
	return fmt.Sprintf("%s [File upload] username: %s, file: %s, directory: %s", at.Format(timeLayout), user, filename, directoryPath)
}

func DeleteMessage(at time.Time, user, filename, directoryID string) string {
	return fmt.Sprintf("%s [File delete] username: %s, file: %s, directory: %s", at.Format(timeLayout), user, filename, directoryID)
}

func LogoutMessage(at time.Time, user string) string {
	return fmt.Sprintf("%s [User logout] username: %s", at.Format(timeLayout), user)
}
