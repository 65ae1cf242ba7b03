package changes_test

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

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/store"
	. "github.com/PelionIoT/topologyd/storage"
	. "github.com/PelionIoT/topologyd/topology"
	. "github.com/PelionIoT/topologyd/util"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ChangeDriver", func() {
	var (
		ctx           context.Context
		executor      *MockExecutor
		topologyStore TopologyStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		executor = NewMockExecutor()
		topologyStore = NewMemoryTopologyStore()

		InitializeTopology(ctx, topologyStore, InitialTopology(map[MemberID]map[uint64]int{
			"1": {1: 2},
			"2": {1: 1},
			"3": {},
		}))
	})

	It("should do nothing if there is no pending change", func() {
		driver := NewChangeDriver(ChangeDriverConfig{Store: topologyStore, Factory: NewApplierFactory(executor, executor)})
		progressed, err := driver.Step(ctx)

		Expect(progressed).Should(BeFalse())
		Expect(err).Should(BeNil())
	})

	It("should publish changes to the local member on LocalUpdates", func() {
		localUpdates := make(chan TopologyDelta, 16)
		driver := NewChangeDriver(ChangeDriverConfig{
			Store:         topologyStore,
			Factory:       NewApplierFactory(executor, executor),
			LocalMemberID: "3",
			LocalUpdates:  localUpdates,
		})
		coordinator := NewTopologyChangeCoordinator(topologyStore, driver, nil)

		driver.Step(ctx)
		Eventually(localUpdates).Should(Receive(Equal(TopologyDelta{Type: DeltaMemberAdd, Member: "3", MemberState: MemberActive})))

		_, err := coordinator.ApplyOperations(ctx, Operations(PartitionJoinOperation{Member: "3", Partition: 1, Priority: 0}))

		Expect(err).Should(BeNil())

		driver.Step(ctx)

		Eventually(localUpdates).Should(Receive(Equal(TopologyDelta{Type: DeltaMemberGainPartition, Member: "3", MemberState: MemberActive, Partition: 1, PartitionState: JoiningPartition(0)})))
		Eventually(localUpdates).Should(Receive(Equal(TopologyDelta{Type: DeltaPartitionStateChange, Member: "3", MemberState: MemberActive, Partition: 1, PartitionState: ActivePartition(0)})))
		Consistently(localUpdates).ShouldNot(Receive())
	})

	It("should stop a change whose operation became invalid after it was committed", func() {
		driver := NewChangeDriver(ChangeDriverConfig{Store: topologyStore, Factory: NewApplierFactory(executor, executor)})
		coordinator := NewTopologyChangeCoordinator(topologyStore, driver, nil)
		result, err := coordinator.ApplyOperations(ctx, Operations(PartitionLeaveOperation{Member: "2", Partition: 1}))

		Expect(err).Should(BeNil())

		current, _ := topologyStore.GetTopology(ctx)
		topologyStore.UpdateTopology(ctx, current.Version, func(latest *ClusterTopology) (*ClusterTopology, error) {
			return latest.UpdateMember("1", func(memberState MemberState) MemberState { return memberState.RemovePartition(1) }), nil
		})

		_, err = driver.Step(ctx)

		Expect(err).Should(HaveOccurred())
		Expect(driver.Failure(result.ChangeID)).ShouldNot(BeNil())
		Expect(executor.Calls()).Should(BeEmpty())
	})

	It("should run changes in the background until stopped", func() {
		driver := NewChangeDriver(ChangeDriverConfig{
			Store:        topologyStore,
			Factory:      NewApplierFactory(executor, executor),
			PollInterval: time.Millisecond * 50,
		})
		coordinator := NewTopologyChangeCoordinator(topologyStore, driver, nil)

		driver.Start()
		defer driver.Stop()

		result, err := coordinator.ApplyOperations(ctx, Operations(
			MemberJoinOperation{Member: "4"},
			PartitionJoinOperation{Member: "4", Partition: 1, Priority: 0},
		))

		Expect(err).Should(BeNil())

		Eventually(func() bool {
			hasCompleted, _ := coordinator.HasCompletedChanges(ctx, result.ChangeID)

			return hasCompleted
		}).Should(BeTrue())

		Expect(executor.Calls()).Should(HaveLen(2))
	})

	It("should resume an interrupted change after a restart from persisted state", func() {
		storageDriver := MakeNewStorageDriver()

		Expect(storageDriver.Open()).Should(BeNil())

		defer storageDriver.Close()

		persistentStore := NewPersistentTopologyStore(NewPrefixedStorageDriver([]byte("topologyd."), storageDriver))

		InitializeTopology(ctx, persistentStore, InitialTopology(map[MemberID]map[uint64]int{"1": {1: 0}}))

		unblock := executor.blockOn("AddBroker")
		driver := NewChangeDriver(ChangeDriverConfig{Store: persistentStore, Factory: NewApplierFactory(executor, executor)})
		coordinator := NewTopologyChangeCoordinator(persistentStore, driver, nil)
		result, err := coordinator.ApplyOperations(ctx, Operations(MemberJoinOperation{Member: "2"}))

		Expect(err).Should(BeNil())

		stepCtx, cancel := context.WithCancel(ctx)
		stepped := make(chan error)

		go func() {
			_, err := driver.Step(stepCtx)
			stepped <- err
		}()

		Eventually(func() int { return executor.CallCount("AddBroker") }).Should(Equal(1))

		cancel()

		var stepError error

		Eventually(stepped).Should(Receive(&stepError))
		Expect(errors.Is(stepError, context.Canceled)).Should(BeTrue())

		close(unblock)

		interrupted, _ := persistentStore.GetTopology(ctx)

		Expect(interrupted.Members["2"].State).Should(Equal(MemberJoining))

		restarted := NewChangeDriver(ChangeDriverConfig{Store: NewPersistentTopologyStore(NewPrefixedStorageDriver([]byte("topologyd."), storageDriver)), Factory: NewApplierFactory(executor, executor)})

		progressed, err := restarted.Step(ctx)

		Expect(progressed).Should(BeTrue())
		Expect(err).Should(BeNil())

		completed, _ := persistentStore.GetTopology(ctx)

		Expect(completed.Members["2"].State).Should(Equal(MemberActive))
		Expect(completed.HasCompletedChange(result.ChangeID)).Should(BeTrue())
		Expect(executor.CallCount("AddBroker")).Should(Equal(2))
	})
})
