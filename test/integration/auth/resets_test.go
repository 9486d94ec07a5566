// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

//go:build integration

package auth_test

import (
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/pkg/errutil"
)

var _ = Describe("Password resets on PostgreSQL", func() {
	It("redeems a code once and revokes every session", func() {
		email := uniqueEmail("fay")
		_, token, err := env.Accounts.Register(env.ctx, email, "old-password")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Resets.RequestReset(env.ctx, email)).To(Succeed())
		code := env.outbox.code(email)
		Expect(code).NotTo(BeEmpty())

		Expect(env.Resets.RedeemReset(env.ctx, code, "new-password")).To(Succeed())
		_, err = env.Sessions.VerifyToken(env.ctx, token)
		Expect(errutil.Code(err)).To(Equal(auth.CodeInvalidToken))

		_, _, err = env.Accounts.Login(env.ctx, email, "new-password")
		Expect(err).NotTo(HaveOccurred())

		err = env.Resets.RedeemReset(env.ctx, code, "third-password")
		Expect(errutil.Code(err)).To(Equal(auth.CodeResetNotFound))
	})

	It("replaces an outstanding code", func() {
		email := uniqueEmail("gus")
		_, _, err := env.Accounts.Register(env.ctx, email, "old-password")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Resets.RequestReset(env.ctx, email)).To(Succeed())
		first := env.outbox.code(email)
		Expect(env.Resets.RequestReset(env.ctx, email)).To(Succeed())
		second := env.outbox.code(email)
		Expect(second).NotTo(Equal(first))

		Expect(errutil.Code(env.Resets.RedeemReset(env.ctx, first, "new-password"))).To(Equal(auth.CodeResetNotFound))
		Expect(env.Resets.RedeemReset(env.ctx, second, "new-password")).To(Succeed())
	})

	It("rejects expired codes and purges them", func() {
		email := uniqueEmail("hal")
		_, _, err := env.Accounts.Register(env.ctx, email, "old-password")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Resets.RequestReset(env.ctx, email)).To(Succeed())
		code := env.outbox.code(email)

		env.clock.Advance(auth.DefaultResetCodeTTL)
		err = env.Resets.RedeemReset(env.ctx, code, "new-password")
		Expect(errutil.KindOf(err)).To(Equal(errutil.KindExpired))

		purged, err := env.Resets.PurgeExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(BeNumerically(">=", 1))

		err = env.Resets.RedeemReset(env.ctx, code, "new-password")
		Expect(errutil.KindOf(err)).To(Equal(errutil.KindNotFound))
	})

	It("answers unknown emails without delivering anything", func() {
		email := uniqueEmail("ghost")
		Expect(env.Resets.RequestReset(env.ctx, email)).To(Succeed())
		Expect(env.outbox.code(email)).To(BeEmpty())
	})
})
