// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

// Package store owns the PostgreSQL schema and connection setup: embedded
// golang-migrate migrations and a retrying pgx pool constructor.
package store
