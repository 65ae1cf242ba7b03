package changes

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
	"fmt"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/topology"
)

// ApplierFactory builds the applier for an operation, wiring in the
// executor its kind needs
type ApplierFactory struct {
	membershipExecutor MembershipExecutor
	partitionExecutor  PartitionExecutor
}

func NewApplierFactory(membershipExecutor MembershipExecutor, partitionExecutor PartitionExecutor) *ApplierFactory {
	return &ApplierFactory{
		membershipExecutor: membershipExecutor,
		partitionExecutor:  partitionExecutor,
	}
}

// NewSimulationApplierFactory returns a factory whose appliers use the Noop
// executors. It shares all validation logic with the real factory.
func NewSimulationApplierFactory() *ApplierFactory {
	return NewApplierFactory(NoopMembershipExecutor{}, NoopPartitionExecutor{})
}

// Applier returns the applier of a member operation. Operations that change
// several members only have a ClusterApplier and get a FailingApplier here.
func (factory *ApplierFactory) Applier(operation Operation) OperationApplier {
	switch op := operation.(type) {
	case MemberJoinOperation:
		return NewMemberJoinApplier(op.Member, factory.membershipExecutor)
	case MemberLeaveOperation:
		return NewMemberLeaveApplier(op.Member, factory.membershipExecutor)
	case PartitionJoinOperation:
		return NewPartitionJoinApplier(op.Member, op.Partition, op.Priority, factory.partitionExecutor)
	case PartitionLeaveOperation:
		return NewPartitionLeaveApplier(op.Member, op.Partition, factory.partitionExecutor)
	case PartitionReconfigurePriorityOperation:
		return NewPartitionReconfigurePriorityApplier(op.Member, op.Partition, op.Priority, factory.partitionExecutor)
	case UnknownOperation:
		return NewFailingApplier(op)
	}

	return NewFailingApplier(operation)
}

// ClusterApplier returns the applier the driver runs for operation
func (factory *ApplierFactory) ClusterApplier(operation Operation) ClusterOperationApplier {
	switch op := operation.(type) {
	case MemberRemoveOperation:
		return NewMemberRemoveApplier(op.Member, op.MemberToRemove, factory.membershipExecutor)
	case PartitionForceReconfigureOperation:
		return NewPartitionForceReconfigureApplier(op.Member, op.Partition, op.Members, factory.partitionExecutor)
	case nil:
		return &memberOperationApplier{applier: NewFailingApplier(nil)}
	}

	return &memberOperationApplier{memberID: operation.MemberID(), applier: factory.Applier(operation)}
}

// FailingApplier rejects an operation this version does not know how to
// apply, so that it can never be skipped silently
type FailingApplier struct {
	operation Operation
}

func NewFailingApplier(operation Operation) *FailingApplier {
	return &FailingApplier{operation: operation}
}

func (applier *FailingApplier) err() error {
	if applier.operation == nil {
		return fmt.Errorf("nil operation: %w", EUnknownOperation)
	}

	return fmt.Errorf("%s: %w", applier.operation.String(), EUnknownOperation)
}

func (applier *FailingApplier) Init(clusterTopology *ClusterTopology) (MemberStateTransition, error) {
	return nil, applier.err()
}

func (applier *FailingApplier) Apply(ctx context.Context) (MemberStateTransition, error) {
	return nil, applier.err()
}
