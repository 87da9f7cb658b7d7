// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventhub/eventauth/pkg/errutil"
)

// MessageKind identifies a notification template.
type MessageKind string

// Notification kinds sent by the services.
const (
	MessageWelcome         MessageKind = "welcome"
	MessageRecoveryCode    MessageKind = "recovery_code"
	MessagePasswordChanged MessageKind = "password_changed"
)

// Message is a plain-text notification addressed to one user.
type Message struct {
	Kind    MessageKind       `json:"kind"`
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

// NotificationChannel delivers messages to a user's address.
type NotificationChannel interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultNotifyTimeout bounds a single delivery attempt.
const DefaultNotifyTimeout = 5 * time.Second

// Notifier delivers messages in the background. Delivery failures are
// logged and never reported to the caller.
type Notifier struct {
	channel NotificationChannel
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewNotifier creates a Notifier. A nil channel drops every message.
func NewNotifier(channel NotificationChannel, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{channel: channel, timeout: timeout, logger: logger}
}

// Dispatch starts delivery of msg and returns immediately. The delivery keeps
// the values of ctx but not its cancellation.
func (n *Notifier) Dispatch(ctx context.Context, msg Message) {
	if n == nil || n.channel == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		if err := n.channel.Send(sendCtx, msg); err != nil {
			errutil.LogWarn(sendCtx, n.logger, "notification delivery failed (best-effort)", err,
				"kind", string(msg.Kind))
		}
	}()
}

// Wait blocks until every dispatched delivery has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func welcomeMessage(a *Account) Message {
	return Message{
		Kind:    MessageWelcome,
		To:      a.Email,
		Subject: "Welcome",
		Body:    fmt.Sprintf("Hello %s, your %s account has been created.", a.FirstName, a.Role),
	}
}

func recoveryCodeMessage(a *Account, code string, expiresAt time.Time) Message {
	return Message{
		Kind:    MessageRecoveryCode,
		To:      a.Email,
		Subject: "Your password reset code",
		Body: fmt.Sprintf("Hello %s, your password reset code is %s. It expires at %s.",
			a.FirstName, code, expiresAt.UTC().Format(time.RFC3339)),
		Data: map[string]string{"code": code},
	}
}

func passwordChangedMessage(a *Account) Message {
	return Message{
		Kind:    MessagePasswordChanged,
		To:      a.Email,
		Subject: "Your password was changed",
		Body:    fmt.Sprintf("Hello %s, the password of your account was just changed.", a.FirstName),
	}
}
