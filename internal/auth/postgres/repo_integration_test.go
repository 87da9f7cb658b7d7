// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/internal/auth/postgres"
)

func createAccount(ctx context.Context, repo *postgres.AccountRepository) *auth.Account {
	a, err := auth.NewAccount("Ada", "Lovelace", fmt.Sprintf("%s@example.com", ulid.Make()), "hash",
		auth.RoleParticipant, time.Now().Truncate(time.Microsecond))
	Expect(err).NotTo(HaveOccurred())
	Expect(repo.Create(ctx, a)).To(Succeed())
	return a
}

func liveCodes(ctx context.Context, userID ulid.ULID) int {
	var n int
	err := testPool.QueryRow(ctx,
		`SELECT count(*) FROM recovery_codes WHERE user_id = $1 AND used = FALSE AND expires_at > now()`,
		userID.String()).Scan(&n)
	Expect(err).NotTo(HaveOccurred())
	return n
}

var _ = Describe("AccountRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.AccountRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewAccountRepository(testPool)
	})

	It("round-trips an account", func() {
		a := createAccount(ctx, repo)

		got, err := repo.GetByEmail(ctx, a.Email)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(a.ID))
		Expect(got.CreatedAt).To(BeTemporally("==", a.CreatedAt))

		Expect(repo.UpdatePassword(ctx, a.ID, auth.CredentialPatch{PasswordHash: "new"})).To(Succeed())
		got, err = repo.GetByID(ctx, a.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("new"))
	})

	It("rejects a duplicate email", func() {
		a := createAccount(ctx, repo)
		dup, err := auth.NewAccount("B", "C", a.Email, "hash", auth.RoleAdmin, time.Now())
		Expect(err).NotTo(HaveOccurred())

		Expect(repo.Create(ctx, dup)).To(MatchError(auth.ErrEmailTaken))
	})

	It("reports missing accounts", func() {
		_, err := repo.GetByID(ctx, ulid.Make())
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("RecoveryCodeRepository", func() {
	var (
		ctx      context.Context
		accounts *postgres.AccountRepository
		repo     *postgres.RecoveryCodeRepository
		account  *auth.Account
	)

	newCode := func(code string) *auth.RecoveryCode {
		c, err := auth.NewRecoveryCode(account.ID, auth.HashRecoveryCode([]byte("integration-code-key"), code), time.Now(), 15*time.Minute)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		accounts = postgres.NewAccountRepository(testPool)
		repo = postgres.NewRecoveryCodeRepository(testPool)
		account = createAccount(ctx, accounts)
	})

	It("keeps one live code per user across replacements", func() {
		first := newCode("111111")
		_, err := repo.ReplaceForUser(ctx, first)
		Expect(err).NotTo(HaveOccurred())

		n, err := repo.ReplaceForUser(ctx, newCode("222222"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
		Expect(liveCodes(ctx, account.ID)).To(Equal(1))

		_, err = repo.MarkUsed(ctx, account.ID, first.CodeHash, time.Now())
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("serializes concurrent replacements", func() {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := repo.ReplaceForUser(ctx, newCode(fmt.Sprintf("%06d", i)))
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()
		Expect(liveCodes(ctx, account.ID)).To(Equal(1))
	})

	It("lets exactly one concurrent verification win", func() {
		c := newCode("123456")
		_, err := repo.ReplaceForUser(ctx, c)
		Expect(err).NotTo(HaveOccurred())

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.MarkUsed(ctx, account.ID, c.CodeHash, time.Now()); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		Expect(wins.Load()).To(Equal(int32(1)))
	})

	It("redeems a verified code once", func() {
		c := newCode("123456")
		_, err := repo.ReplaceForUser(ctx, c)
		Expect(err).NotTo(HaveOccurred())

		_, err = repo.Redeem(ctx, c.ID, time.Now())
		Expect(err).To(MatchError(auth.ErrNotFound), "unverified codes cannot be redeemed")

		_, err = repo.MarkUsed(ctx, account.ID, c.CodeHash, time.Now())
		Expect(err).NotTo(HaveOccurred())

		got, err := repo.Redeem(ctx, c.ID, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ConsumedAt).NotTo(BeNil())

		_, err = repo.Redeem(ctx, c.ID, time.Now())
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("refuses expired codes", func() {
		c := newCode("123456")
		_, err := repo.ReplaceForUser(ctx, c)
		Expect(err).NotTo(HaveOccurred())

		_, err = repo.MarkUsed(ctx, account.ID, c.CodeHash, c.ExpiresAt.Add(time.Second))
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("purges consumed and expired codes", func() {
		_, err := repo.ReplaceForUser(ctx, newCode("111111"))
		Expect(err).NotTo(HaveOccurred())
		live := newCode("222222")
		_, err = repo.ReplaceForUser(ctx, live)
		Expect(err).NotTo(HaveOccurred())

		n, err := repo.PurgeExpired(ctx, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeEquivalentTo(1))

		n, err = repo.PurgeExpired(ctx, live.ExpiresAt)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeEquivalentTo(1))
		_, err = repo.MarkUsed(ctx, account.ID, live.CodeHash, time.Now())
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
