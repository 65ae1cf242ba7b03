package store_test

//
// Copyright (c) 2019 ARM Limited.
//
// SPDX-License-Identifier: MIT
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//

import (
	"context"
	"errors"
	"time"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/storage"
	. "github.com/PelionIoT/topologyd/store"
	. "github.com/PelionIoT/topologyd/topology"
	. "github.com/PelionIoT/topologyd/util"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func addMember(memberID MemberID) TopologyUpdate {
	return func(current *ClusterTopology) (*ClusterTopology, error) {
		return current.AddMember(memberID, NewMemberState(MemberActive, nil)), nil
	}
}

func describeTopologyStore(name string, newStore func() (TopologyStore, func())) {
	Describe(name, func() {
		var (
			topologyStore TopologyStore
			cleanup       func()
			ctx           context.Context
			cancel        context.CancelFunc
		)

		BeforeEach(func() {
			topologyStore, cleanup = newStore()
			ctx, cancel = context.WithCancel(context.Background())
		})

		AfterEach(func() {
			cancel()
			cleanup()
		})

		It("should start out uninitialized", func() {
			clusterTopology, err := topologyStore.GetTopology(ctx)

			Expect(err).Should(BeNil())
			Expect(clusterTopology.IsUninitialized()).Should(BeTrue())
			Expect(clusterTopology.Members).Should(BeEmpty())
		})

		It("should bump the version on every successful update", func() {
			first, err := topologyStore.UpdateTopology(ctx, 0, addMember("1"))

			Expect(err).Should(BeNil())
			Expect(first.Version).Should(Equal(uint64(1)))

			second, err := topologyStore.UpdateTopology(ctx, 1, addMember("2"))

			Expect(err).Should(BeNil())
			Expect(second.Version).Should(Equal(uint64(2)))

			current, err := topologyStore.GetTopology(ctx)

			Expect(err).Should(BeNil())
			Expect(current.Version).Should(Equal(uint64(2)))
			Expect(current.MemberIDs()).Should(Equal([]MemberID{"1", "2"}))
		})

		It("should reject an update against a stale version and leave the topology unchanged", func() {
			_, err := topologyStore.UpdateTopology(ctx, 0, addMember("1"))

			Expect(err).Should(BeNil())

			_, err = topologyStore.UpdateTopology(ctx, 0, addMember("2"))

			Expect(errors.Is(err, ETopologyModified)).Should(BeTrue())
			Expect(IsRetryable(err)).Should(BeTrue())

			current, _ := topologyStore.GetTopology(ctx)

			Expect(current.Version).Should(Equal(uint64(1)))
			Expect(current.MemberIDs()).Should(Equal([]MemberID{"1"}))
		})

		It("should not store anything if the update fails", func() {
			updateError := errors.New("some error")
			_, err := topologyStore.UpdateTopology(ctx, 0, func(*ClusterTopology) (*ClusterTopology, error) {
				return nil, updateError
			})

			Expect(err).Should(Equal(updateError))

			current, _ := topologyStore.GetTopology(ctx)

			Expect(current.IsUninitialized()).Should(BeTrue())
		})

		It("should hand out copies that do not alias the stored topology", func() {
			first, _ := topologyStore.UpdateTopology(ctx, 0, addMember("1"))
			first.Members["1"] = NewMemberState(MemberLeft, nil)

			current, _ := topologyStore.GetTopology(ctx)

			Expect(current.Members["1"].State).Should(Equal(MemberActive))
		})

		It("should deliver the latest topology to watchers", func() {
			watcher := topologyStore.Watch(ctx)

			Expect((<-watcher).Version).Should(Equal(uint64(0)))

			topologyStore.UpdateTopology(ctx, 0, addMember("1"))
			topologyStore.UpdateTopology(ctx, 1, addMember("2"))

			Expect((<-watcher).Version).Should(Equal(uint64(2)))
		})

		It("should close the watch channel when the context is cancelled", func() {
			watchCtx, watchCancel := context.WithCancel(ctx)
			watcher := topologyStore.Watch(watchCtx)

			<-watcher
			watchCancel()

			Eventually(watcher).Should(BeClosed())
		})

		Describe("InitializeTopology", func() {
			It("should seed an uninitialized store", func() {
				initialized, err := InitializeTopology(ctx, topologyStore, InitialTopology(map[MemberID]map[uint64]int{
					"1": {1: 1},
					"2": {1: 0},
				}))

				Expect(err).Should(BeNil())
				Expect(initialized.Version).Should(Equal(uint64(1)))
				Expect(initialized.Members["1"]).Should(Equal(NewMemberState(MemberActive, map[uint64]PartitionState{1: ActivePartition(1)})))
				Expect(initialized.Members["2"]).Should(Equal(NewMemberState(MemberActive, map[uint64]PartitionState{1: ActivePartition(0)})))
			})

			It("should leave an initialized store alone", func() {
				topologyStore.UpdateTopology(ctx, 0, addMember("9"))

				initialized, err := InitializeTopology(ctx, topologyStore, InitialTopology(map[MemberID]map[uint64]int{"1": {}}))

				Expect(err).Should(BeNil())
				Expect(initialized.MemberIDs()).Should(Equal([]MemberID{"9"}))
			})

			It("should refuse an empty initial topology", func() {
				_, err := InitializeTopology(ctx, topologyStore, NewClusterTopology())

				Expect(errors.Is(err, EInvalidRequest)).Should(BeTrue())
			})
		})
	})
}

var _ = Describe("TopologyStore", func() {
	describeTopologyStore("MemoryTopologyStore", func() (TopologyStore, func()) {
		return NewMemoryTopologyStore(), func() {}
	})

	describeTopologyStore("PersistentTopologyStore", func() (TopologyStore, func()) {
		storageDriver := MakeNewStorageDriver()
		storageDriver.Open()

		return NewPersistentTopologyStore(NewPrefixedStorageDriver([]byte("topologyd."), storageDriver)), func() {
			storageDriver.Close()
		}
	})

	Describe("PersistentTopologyStore", func() {
		It("should recover the topology and its pending change after the storage is reopened", func() {
			ctx := context.Background()
			storageDriver := MakeNewStorageDriver()

			Expect(storageDriver.Open()).Should(BeNil())

			topologyStore := NewPersistentTopologyStore(storageDriver)
			topologyStore.UpdateTopology(ctx, 0, addMember("1"))
			_, err := topologyStore.UpdateTopology(ctx, 1, func(current *ClusterTopology) (*ClusterTopology, error) {
				return current.StartChange(2, time.Unix(1000, 0), []Operation{MemberJoinOperation{Member: "2"}})
			})

			Expect(err).Should(BeNil())
			Expect(storageDriver.Close()).Should(BeNil())
			Expect(storageDriver.Open()).Should(BeNil())

			defer storageDriver.Close()

			recovered, err := NewPersistentTopologyStore(storageDriver).GetTopology(ctx)

			Expect(err).Should(BeNil())
			Expect(recovered.Version).Should(Equal(uint64(2)))
			Expect(recovered.HasPendingChanges()).Should(BeTrue())
			Expect(recovered.PendingChanges.PendingOperations).Should(Equal(OperationList{MemberJoinOperation{Member: "2"}}))
		})
	})
})
