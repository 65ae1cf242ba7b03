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

type PartitionJoinApplier struct {
	memberID          MemberID
	partitionID       uint64
	priority          int
	executor          PartitionExecutor
	replicaPriorities map[MemberID]int
	alreadyActive     bool
}

func NewPartitionJoinApplier(memberID MemberID, partitionID uint64, priority int, executor PartitionExecutor) *PartitionJoinApplier {
	return &PartitionJoinApplier{
		memberID:    memberID,
		partitionID: partitionID,
		priority:    priority,
		executor:    executor,
	}
}

func (applier *PartitionJoinApplier) Init(clusterTopology *ClusterTopology) (MemberStateTransition, error) {
	memberState, ok := clusterTopology.Member(applier.memberID)

	if !ok {
		return nil, fmt.Errorf("partition %d cannot join member %s: %w", applier.partitionID, applier.memberID, ENoSuchMember)
	}

	if memberState.State != MemberActive {
		return nil, fmt.Errorf("partition %d cannot join member %s which is %s: %w", applier.partitionID, applier.memberID, memberState.State, EMemberNotActive)
	}

	if applier.priority < 0 {
		return nil, fmt.Errorf("partition %d cannot join member %s with priority %d: %w", applier.partitionID, applier.memberID, applier.priority, EInvalidPriority)
	}

	applier.replicaPriorities = make(map[MemberID]int)

	for memberID, partitionState := range clusterTopology.PartitionReplicas(applier.partitionID) {
		if memberID != applier.memberID {
			applier.replicaPriorities[memberID] = partitionState.Priority
		}
	}

	applier.replicaPriorities[applier.memberID] = applier.priority
	applier.alreadyActive = false

	partitionState, ok := memberState.Partition(applier.partitionID)

	if !ok {
		return func(memberState MemberState) MemberState {
			return memberState.AddPartition(applier.partitionID, JoiningPartition(applier.priority))
		}, nil
	}

	switch partitionState.State {
	case PartitionJoining:
		return Identity, nil
	case PartitionActive:
		// nothing to do. Apply() will not call the executor
		applier.alreadyActive = true

		return Identity, nil
	}

	return nil, fmt.Errorf("partition %d on member %s is %s: %w", applier.partitionID, applier.memberID, partitionState.State, EInvalidPartitionState)
}

func (applier *PartitionJoinApplier) Apply(ctx context.Context) (MemberStateTransition, error) {
	if applier.alreadyActive {
		return Identity, nil
	}

	replicaPriorities := applier.replicaPriorities

	if replicaPriorities == nil {
		replicaPriorities = map[MemberID]int{applier.memberID: applier.priority}
	}

	if err := applier.executor.Join(ctx, applier.memberID, applier.partitionID, replicaPriorities); err != nil {
		return nil, fmt.Errorf("unable to join partition %d on member %s: %w", applier.partitionID, applier.memberID, err)
	}

	return func(memberState MemberState) MemberState {
		return memberState.UpdatePartition(applier.partitionID, func(partitionState PartitionState) PartitionState {
			return partitionState.ToActive()
		})
	}, nil
}

// ReplicaPriorities is the priority of every replica of the partition as
// seen by the last successful Init
func (applier *PartitionJoinApplier) ReplicaPriorities() map[MemberID]int {
	return applier.replicaPriorities
}

type PartitionLeaveApplier struct {
	memberID    MemberID
	partitionID uint64
	executor    PartitionExecutor
}

func NewPartitionLeaveApplier(memberID MemberID, partitionID uint64, executor PartitionExecutor) *PartitionLeaveApplier {
	return &PartitionLeaveApplier{
		memberID:    memberID,
		partitionID: partitionID,
		executor:    executor,
	}
}

func (applier *PartitionLeaveApplier) Init(clusterTopology *ClusterTopology) (MemberStateTransition, error) {
	memberState, ok := clusterTopology.Member(applier.memberID)

	if !ok {
		return nil, fmt.Errorf("partition %d cannot leave member %s: %w", applier.partitionID, applier.memberID, ENoSuchMember)
	}

	partitionState, ok := memberState.Partition(applier.partitionID)

	if !ok {
		return nil, fmt.Errorf("partition %d cannot leave member %s: %w", applier.partitionID, applier.memberID, EPartitionNotAssigned)
	}

	if partitionState.State == PartitionLeaving {
		return Identity, nil
	}

	if replicas := clusterTopology.ReplicaCount(applier.partitionID); replicas < 2 {
		return nil, fmt.Errorf("partition %d cannot leave member %s, it has %d replica(s): %w", applier.partitionID, applier.memberID, replicas, ELastReplica)
	}

	return func(memberState MemberState) MemberState {
		return memberState.UpdatePartition(applier.partitionID, func(partitionState PartitionState) PartitionState {
			return partitionState.ToLeaving()
		})
	}, nil
}

func (applier *PartitionLeaveApplier) Apply(ctx context.Context) (MemberStateTransition, error) {
	if err := applier.executor.Leave(ctx, applier.memberID, applier.partitionID); err != nil {
		return nil, fmt.Errorf("unable to leave partition %d on member %s: %w", applier.partitionID, applier.memberID, err)
	}

	return func(memberState MemberState) MemberState {
		return memberState.RemovePartition(applier.partitionID)
	}, nil
}

type PartitionReconfigurePriorityApplier struct {
	memberID    MemberID
	partitionID uint64
	priority    int
	executor    PartitionExecutor
}

func NewPartitionReconfigurePriorityApplier(memberID MemberID, partitionID uint64, priority int, executor PartitionExecutor) *PartitionReconfigurePriorityApplier {
	return &PartitionReconfigurePriorityApplier{
		memberID:    memberID,
		partitionID: partitionID,
		priority:    priority,
		executor:    executor,
	}
}

func (applier *PartitionReconfigurePriorityApplier) Init(clusterTopology *ClusterTopology) (MemberStateTransition, error) {
	memberState, ok := clusterTopology.Member(applier.memberID)

	if !ok {
		return nil, fmt.Errorf("cannot reconfigure partition %d on member %s: %w", applier.partitionID, applier.memberID, ENoSuchMember)
	}

	if memberState.State != MemberActive {
		return nil, fmt.Errorf("cannot reconfigure partition %d on member %s which is %s: %w", applier.partitionID, applier.memberID, memberState.State, EMemberNotActive)
	}

	if applier.priority < 0 {
		return nil, fmt.Errorf("cannot reconfigure partition %d on member %s to priority %d: %w", applier.partitionID, applier.memberID, applier.priority, EInvalidPriority)
	}

	partitionState, ok := memberState.Partition(applier.partitionID)

	if !ok {
		return nil, fmt.Errorf("cannot reconfigure partition %d on member %s: %w", applier.partitionID, applier.memberID, EPartitionNotAssigned)
	}

	if partitionState.State != PartitionActive {
		return nil, fmt.Errorf("cannot reconfigure partition %d on member %s which is %s: %w", applier.partitionID, applier.memberID, partitionState.State, EInvalidPartitionState)
	}

	return Identity, nil
}

func (applier *PartitionReconfigurePriorityApplier) Apply(ctx context.Context) (MemberStateTransition, error) {
	if err := applier.executor.ReconfigurePriority(ctx, applier.memberID, applier.partitionID, applier.priority); err != nil {
		return nil, fmt.Errorf("unable to reconfigure priority of partition %d on member %s: %w", applier.partitionID, applier.memberID, err)
	}

	return func(memberState MemberState) MemberState {
		return memberState.UpdatePartition(applier.partitionID, func(partitionState PartitionState) PartitionState {
			return partitionState.WithPriority(applier.priority)
		})
	}, nil
}
