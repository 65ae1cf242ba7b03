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
	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/topology"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ApplierFactory", func() {
	var factory *ApplierFactory

	BeforeEach(func() {
		executor := NewMockExecutor()
		factory = NewApplierFactory(executor, executor)
	})

	It("should have a dedicated applier for every operation type", func() {
		for _, operationType := range OperationTypes {
			operation := TransportOperation{Type: operationType, Member: "1", Partition: 1}.ToOperation()

			Expect(operation).ShouldNot(BeAssignableToTypeOf(UnknownOperation{}))
			Expect(factory.Applier(operation)).ShouldNot(BeAssignableToTypeOf(&FailingApplier{}))
		}
	})

	It("should map each operation to the matching applier", func() {
		Expect(factory.Applier(MemberJoinOperation{Member: "1"})).Should(BeAssignableToTypeOf(&MemberJoinApplier{}))
		Expect(factory.Applier(MemberLeaveOperation{Member: "1"})).Should(BeAssignableToTypeOf(&MemberLeaveApplier{}))
		Expect(factory.Applier(PartitionJoinOperation{Member: "1", Partition: 1})).Should(BeAssignableToTypeOf(&PartitionJoinApplier{}))
		Expect(factory.Applier(PartitionLeaveOperation{Member: "1", Partition: 1})).Should(BeAssignableToTypeOf(&PartitionLeaveApplier{}))
		Expect(factory.Applier(PartitionReconfigurePriorityOperation{Member: "1", Partition: 1})).Should(BeAssignableToTypeOf(&PartitionReconfigurePriorityApplier{}))
	})

	It("should have a cluster applier for every operation type", func() {
		for _, operationType := range append(OperationTypes, ClusterOperationTypes...) {
			operation := TransportOperation{Type: operationType, Member: "1", Partition: 1}.ToOperation()

			Expect(operation).ShouldNot(BeAssignableToTypeOf(UnknownOperation{}))
			Expect(factory.ClusterApplier(operation)).ShouldNot(BeNil())
		}

		Expect(factory.ClusterApplier(MemberRemoveOperation{Member: "1", MemberToRemove: "3"})).Should(BeAssignableToTypeOf(&MemberRemoveApplier{}))
		Expect(factory.ClusterApplier(PartitionForceReconfigureOperation{Member: "1", Partition: 1, Members: []MemberID{"1"}})).Should(BeAssignableToTypeOf(&PartitionForceReconfigureApplier{}))
	})

	It("should scope member operations to their member", func() {
		intent, err := factory.ClusterApplier(MemberJoinOperation{Member: "4"}).Init(threeMemberTopology())

		Expect(err).Should(BeNil())
		Expect(intent(threeMemberTopology(), time.Unix(0, 0)).Members["4"].State).Should(Equal(MemberJoining))
	})

	It("should fail loudly on an unknown operation", func() {
		applier := factory.Applier(UnknownOperation{Member: "1", Kind: "partitionSplit"})

		_, err := applier.Init(threeMemberTopology())

		Expect(errors.Is(err, EUnknownOperation)).Should(BeTrue())

		_, err = applier.Apply(context.Background())

		Expect(errors.Is(err, EUnknownOperation)).Should(BeTrue())
	})

	It("should fail loudly on a nil operation", func() {
		_, err := factory.Applier(nil).Init(threeMemberTopology())

		Expect(errors.Is(err, EUnknownOperation)).Should(BeTrue())

		_, err = factory.ClusterApplier(nil).Init(threeMemberTopology())

		Expect(errors.Is(err, EUnknownOperation)).Should(BeTrue())
	})
})
