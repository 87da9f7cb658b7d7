// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

// Package auth implements registration, password login and password recovery.
//
// The package holds the domain types (Account, RecoveryCode), the collaborator
// interfaces they are stored and delivered through (AccountRepository,
// RecoveryCodeRepository, PasswordHasher, TokenIssuer, NotificationChannel)
// and three services built on them:
//
//   - RegistrationService creates accounts under a single Policy.
//   - AuthService checks passwords and issues stateless bearer tokens.
//   - RecoveryService runs the reset flow. A recovery code is verifiable
//     once; its ID becomes the reset identifier, which is redeemable once.
//     Issuing a new code invalidates every earlier code of the user.
//
// Every failure is a samber/oops error with a stable code. KindOf maps codes
// to the categories the HTTP layer turns into status codes.
package auth
