// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

//go:build integration

package tasks_test

import (
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/internal/task"
	"github.com/dayplan/dayplan/pkg/errutil"
)

var _ = Describe("Task service on PostgreSQL", func() {
	var userID ulid.ULID

	create := func(content string, b task.Bucket) *task.Task {
		t, err := env.Service.Create(env.ctx, userID, task.Draft{Content: content, Bucket: b})
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	BeforeEach(func() {
		userID = createTestUser()
	})

	Describe("Create", func() {
		It("appends to the end of the bucket", func() {
			create("A", day(1))
			create("B", day(1))
			c := create("C", day(1))
			Expect(c.Position).To(Equal(2))
			Expect(contents(userID, day(1))).To(Equal([]string{"A", "B", "C"}))
		})

		It("keeps positions dense under concurrent creates", func() {
			const n = 12
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := range n {
				wg.Go(func() {
					_, err := env.Service.Create(env.ctx, userID, task.Draft{
						Content: fmt.Sprintf("task %d", i),
						Bucket:  day(2),
					})
					errs <- err
				})
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(contents(userID, day(2))).To(HaveLen(n))
		})
	})

	Describe("Delete", func() {
		It("closes the gap it leaves", func() {
			create("A", day(3))
			b := create("B", day(3))
			create("C", day(3))

			deleted, err := env.Service.Delete(env.ctx, userID, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted.Content).To(Equal("B"))
			Expect(contents(userID, day(3))).To(Equal([]string{"A", "C"}))

			_, err = env.Service.Delete(env.ctx, userID, b.ID)
			Expect(errutil.KindOf(err)).To(Equal(errutil.KindNotFound))
		})
	})

	Describe("Move", func() {
		It("moves between buckets and keeps both dense", func() {
			a := create("A", day(4))
			create("B", day(4))
			create("X", day(5))
			create("Y", day(5))

			moved, err := env.Service.Move(env.ctx, userID, a.ID, day(5), 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved.Bucket).To(Equal(day(5)))
			Expect(contents(userID, day(4))).To(Equal([]string{"B"}))
			Expect(contents(userID, day(5))).To(Equal([]string{"X", "A", "Y"}))
		})

		It("reorders inside one bucket", func() {
			a := create("A", day(6))
			create("B", day(6))
			create("C", day(6))

			_, err := env.Service.Move(env.ctx, userID, a.ID, day(6), 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents(userID, day(6))).To(Equal([]string{"B", "C", "A"}))

			_, err = env.Service.Move(env.ctx, userID, a.ID, day(6), 3)
			Expect(errutil.KindOf(err)).To(Equal(errutil.KindValidation))
		})

		It("survives concurrent moves into one bucket", func() {
			var ids []ulid.ULID
			for i := range 6 {
				ids = append(ids, create(fmt.Sprintf("src %d", i), day(0)).ID)
			}
			create("dst", day(1))

			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Go(func() {
					defer GinkgoRecover()
					_, err := env.Service.Move(env.ctx, userID, id, day(1), 0)
					Expect(err).NotTo(HaveOccurred())
				})
			}
			wg.Wait()

			Expect(contents(userID, day(0))).To(BeEmpty())
			Expect(contents(userID, day(1))).To(HaveLen(7))
		})
	})

	Describe("UpdateFields", func() {
		It("stamps and clears completion", func() {
			a := create("A", day(2))
			done := true
			updated, err := env.Service.UpdateFields(env.ctx, userID, a.ID, task.Patch{Done: &done})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Done).To(BeTrue())
			Expect(updated.DoneAt).NotTo(BeNil())

			stored, err := env.Service.Get(env.ctx, userID, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.DoneAt).NotTo(BeNil())

			undone := false
			updated, err = env.Service.UpdateFields(env.ctx, userID, a.ID, task.Patch{Done: &undone})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.DoneAt).To(BeNil())
		})
	})

	Describe("BulkReposition", func() {
		It("reports each item separately", func() {
			a := create("A", day(3))
			b := create("B", day(3))
			missing := core.NewULID()

			results := env.Service.BulkReposition(env.ctx, userID, []task.Reposition{
				{ID: a.ID, Position: 1},
				{ID: missing, Position: 0},
				{ID: b.ID, Position: 0},
			})
			Expect(results).To(HaveLen(3))
			Expect(results[0].Err).NotTo(HaveOccurred())
			Expect(errutil.KindOf(results[1].Err)).To(Equal(errutil.KindNotFound))
			Expect(results[2].Err).NotTo(HaveOccurred())
			Expect(contents(userID, day(3))).To(Equal([]string{"B", "A"}))
		})
	})

	Describe("Ownership", func() {
		It("hides tasks from other users", func() {
			a := create("private", day(4))
			other := createTestUser()

			_, err := env.Service.Get(env.ctx, other, a.ID)
			Expect(errutil.KindOf(err)).To(Equal(errutil.KindNotFound))
			_, err = env.Service.Move(env.ctx, other, a.ID, day(5), 0)
			Expect(errutil.KindOf(err)).To(Equal(errutil.KindNotFound))
			Expect(contents(userID, day(4))).To(Equal([]string{"private"}))
		})
	})
})
