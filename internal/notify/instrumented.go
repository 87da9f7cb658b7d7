// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventhub/eventauth/internal/auth"
)

// Outcome label values.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Instrumented counts deliveries of the wrapped channel by kind and outcome.
type Instrumented struct {
	next  auth.NotificationChannel
	total *prometheus.CounterVec
}

// NewInstrumented wraps next and registers its counter with reg.
func NewInstrumented(next auth.NotificationChannel, reg prometheus.Registerer) *Instrumented {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventauth_notifications_total",
			Help: "Total number of notification deliveries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	if reg != nil {
		reg.MustRegister(total)
	}
	return &Instrumented{next: next, total: total}
}

// Send implements auth.NotificationChannel.
func (i *Instrumented) Send(ctx context.Context, msg auth.Message) error {
	err := i.next.Send(ctx, msg)
	outcome := OutcomeSent
	if err != nil {
		outcome = OutcomeFailed
	}
	i.total.WithLabelValues(string(msg.Kind), outcome).Inc()
	return err
}

// Counter exposes the underlying counter for tests and dashboards.
func (i *Instrumented) Counter() *prometheus.CounterVec {
	return i.total
}
