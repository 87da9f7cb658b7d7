// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

// Package notify provides the notification channels used by the auth services.
//
// LogChannel writes messages to the structured log and is meant for local
// development. RedisOutbox pushes JSON messages onto a Redis list that a
// separate mailer drains. Instrumented wraps any channel with Prometheus
// counters.
package notify
