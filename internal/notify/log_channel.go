// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/eventhub/eventauth/internal/auth"
)

// LogChannel logs every message instead of delivering it. The message body
// can carry a recovery code, so it is only logged at debug level.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel. A nil logger uses slog.Default().
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger.With("channel", "log")}
}

// Send implements auth.NotificationChannel.
func (c *LogChannel) Send(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "notification",
		"kind", string(msg.Kind),
		"to", msg.To,
		"subject", msg.Subject)
	c.logger.DebugContext(ctx, "notification body",
		"kind", string(msg.Kind),
		"to", msg.To,
		"body", msg.Body)
	return nil
}
