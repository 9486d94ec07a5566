// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

//go:build integration

package auth_test

import (
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/pkg/errutil"
)

var _ = Describe("Accounts on PostgreSQL", func() {
	Describe("Register", func() {
		It("treats emails case-insensitively", func() {
			email := uniqueEmail("amy")
			_, _, err := env.Accounts.Register(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.Accounts.Register(env.ctx, strings.ToUpper(email), "pa55word")
			Expect(errutil.KindOf(err)).To(Equal(errutil.KindConflict))
		})

		It("lets exactly one of many concurrent registrations win", func() {
			email := uniqueEmail("race")
			const n = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins, conflicts := 0, 0
			for range n {
				wg.Go(func() {
					_, _, err := env.Accounts.Register(env.ctx, email, "pa55word")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errutil.KindOf(err) == errutil.KindConflict:
						conflicts++
					}
				})
			}
			wg.Wait()
			Expect(wins).To(Equal(1))
			Expect(conflicts).To(Equal(n - 1))
		})
	})

	Describe("Sessions", func() {
		It("keeps only the newest tokens", func() {
			email := uniqueEmail("ben")
			u, first, err := env.Accounts.Register(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())

			var latest []string
			for range 3 {
				env.clock.Advance(time.Second)
				_, token, err := env.Accounts.Login(env.ctx, email, "pa55word")
				Expect(err).NotTo(HaveOccurred())
				latest = append(latest, token)
			}

			_, err = env.Sessions.VerifyToken(env.ctx, first)
			Expect(errutil.Code(err)).To(Equal(auth.CodeInvalidToken))
			for _, token := range latest {
				got, err := env.Sessions.VerifyToken(env.ctx, token)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(u.ID))
			}
		})

		It("revokes a single token on logout", func() {
			email := uniqueEmail("cleo")
			u, first, err := env.Accounts.Register(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())
			_, second, err := env.Accounts.Login(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Accounts.Logout(env.ctx, u.ID, first)).To(Succeed())
			_, err = env.Sessions.VerifyToken(env.ctx, first)
			Expect(errutil.KindOf(err)).To(Equal(errutil.KindAuthentication))
			_, err = env.Sessions.VerifyToken(env.ctx, second)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Lockout", func() {
		It("locks after repeated failures and releases after the window", func() {
			email := uniqueEmail("dina")
			_, _, err := env.Accounts.Register(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())

			for range auth.LockoutThreshold {
				_, _, _ = env.Accounts.Login(env.ctx, email, "wrong")
			}
			_, _, err = env.Accounts.Login(env.ctx, email, "pa55word")
			Expect(errutil.Code(err)).To(Equal(auth.CodeAccountLocked))

			env.clock.Advance(auth.LockoutDuration + time.Second)
			_, _, err = env.Accounts.Login(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())
		})

		It("counts every concurrent failure", func() {
			email := uniqueEmail("dora")
			u, _, err := env.Accounts.Register(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			var mu sync.Mutex
			codes := map[string]int{}
			for range 2 * auth.LockoutThreshold {
				wg.Go(func() {
					defer GinkgoRecover()
					_, _, err := env.Accounts.Login(env.ctx, email, "wrong")
					mu.Lock()
					codes[errutil.Code(err)]++
					mu.Unlock()
				})
			}
			wg.Wait()

			Expect(codes[auth.CodeInvalidCredentials]).To(Equal(auth.LockoutThreshold - 1))
			Expect(codes[auth.CodeAccountLocked]).To(Equal(auth.LockoutThreshold + 1))

			stored, err := env.Users.GetByID(env.ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.FailedAttempts).To(Equal(auth.LockoutThreshold))
		})
	})

	Describe("Credential changes", func() {
		It("rotates sessions when the email changes", func() {
			email := uniqueEmail("eli")
			u, old, err := env.Accounts.Register(env.ctx, email, "pa55word")
			Expect(err).NotTo(HaveOccurred())

			newEmail := uniqueEmail("eli-new")
			updated, fresh, err := env.Accounts.ChangeEmail(env.ctx, u.ID, newEmail, "pa55word")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Email).To(Equal(strings.ToLower(newEmail)))

			_, err = env.Sessions.VerifyToken(env.ctx, old)
			Expect(err).To(HaveOccurred())
			_, err = env.Sessions.VerifyToken(env.ctx, fresh)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
