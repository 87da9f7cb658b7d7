// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

// Package memory provides in-process implementations of the auth
// repositories. They back the memory storage driver and the service tests.
package memory
