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
	"time"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/topology"
)

type MemberRemoveApplier struct {
	memberID       MemberID
	memberToRemove MemberID
	executor       MembershipExecutor
}

func NewMemberRemoveApplier(memberID MemberID, memberToRemove MemberID, executor MembershipExecutor) *MemberRemoveApplier {
	return &MemberRemoveApplier{
		memberID:       memberID,
		memberToRemove: memberToRemove,
		executor:       executor,
	}
}

func (applier *MemberRemoveApplier) Init(clusterTopology *ClusterTopology) (TopologyTransition, error) {
	if applier.memberID == applier.memberToRemove {
		return nil, fmt.Errorf("member %s: %w", applier.memberID, ESelfRemoval)
	}

	memberState, ok := clusterTopology.Member(applier.memberID)

	if !ok {
		return nil, fmt.Errorf("member %s cannot remove member %s: %w", applier.memberID, applier.memberToRemove, ENoSuchMember)
	}

	if memberState.State != MemberActive {
		return nil, fmt.Errorf("member %s cannot remove member %s, it is %s: %w", applier.memberID, applier.memberToRemove, memberState.State, EMemberNotActive)
	}

	removedState, ok := clusterTopology.Member(applier.memberToRemove)

	if !ok || removedState.State == MemberLeft {
		return nil, fmt.Errorf("member %s cannot be removed: %w", applier.memberToRemove, ENoSuchMember)
	}

	if len(removedState.Partitions) != 0 {
		return nil, fmt.Errorf("member %s still replicates partitions %v: %w", applier.memberToRemove, removedState.PartitionIDs(), EMemberHasPartitions)
	}

	if removedState.State == MemberLeaving {
		return TopologyIdentity, nil
	}

	return ForMember(applier.memberToRemove, func(memberState MemberState) MemberState {
		return memberState.ToLeaving()
	}), nil
}

func (applier *MemberRemoveApplier) Apply(ctx context.Context) (TopologyTransition, error) {
	if err := applier.executor.RemoveBroker(ctx, applier.memberToRemove); err != nil {
		return nil, fmt.Errorf("unable to remove broker %s: %w", applier.memberToRemove, err)
	}

	return ForMember(applier.memberToRemove, func(MemberState) MemberState {
		return UninitializedMember()
	}), nil
}

type PartitionForceReconfigureApplier struct {
	memberID    MemberID
	partitionID uint64
	members     []MemberID
	executor    PartitionExecutor
}

func NewPartitionForceReconfigureApplier(memberID MemberID, partitionID uint64, members []MemberID, executor PartitionExecutor) *PartitionForceReconfigureApplier {
	return &PartitionForceReconfigureApplier{
		memberID:    memberID,
		partitionID: partitionID,
		members:     members,
		executor:    executor,
	}
}

func (applier *PartitionForceReconfigureApplier) Init(clusterTopology *ClusterTopology) (TopologyTransition, error) {
	memberState, ok := clusterTopology.Member(applier.memberID)

	if !ok {
		return nil, fmt.Errorf("member %s cannot reconfigure partition %d: %w", applier.memberID, applier.partitionID, ENoSuchMember)
	}

	if memberState.State != MemberActive {
		return nil, fmt.Errorf("member %s cannot reconfigure partition %d, it is %s: %w", applier.memberID, applier.partitionID, memberState.State, EMemberNotActive)
	}

	replicas := clusterTopology.PartitionReplicas(applier.partitionID)
	members := make(map[MemberID]bool, len(applier.members))

	for _, memberID := range applier.members {
		if members[memberID] {
			return nil, fmt.Errorf("member %s is listed twice for partition %d: %w", memberID, applier.partitionID, EInvalidReplicaSet)
		}

		if partitionState, ok := replicas[memberID]; !ok || partitionState.State != PartitionActive {
			return nil, fmt.Errorf("member %s is not an active replica of partition %d: %w", memberID, applier.partitionID, EInvalidReplicaSet)
		}

		members[memberID] = true
	}

	if !members[applier.memberID] {
		return nil, fmt.Errorf("member %s is not in the new replica set %v of partition %d: %w", applier.memberID, applier.members, applier.partitionID, EInvalidReplicaSet)
	}

	return TopologyIdentity, nil
}

func (applier *PartitionForceReconfigureApplier) Apply(ctx context.Context) (TopologyTransition, error) {
	if err := applier.executor.ForceReconfigure(ctx, applier.memberID, applier.partitionID, applier.members); err != nil {
		return nil, fmt.Errorf("unable to force reconfigure partition %d on member %s: %w", applier.partitionID, applier.memberID, err)
	}

	return func(clusterTopology *ClusterTopology, updatedAt time.Time) *ClusterTopology {
		members := make(map[MemberID]bool, len(applier.members))

		for _, memberID := range applier.members {
			members[memberID] = true
		}

		next := clusterTopology

		for _, memberID := range clusterTopology.MemberIDs() {
			memberState, _ := clusterTopology.Member(memberID)

			if members[memberID] || !memberState.HasPartition(applier.partitionID) {
				continue
			}

			next = next.UpdateMemberAt(memberID, func(memberState MemberState) MemberState {
				return memberState.RemovePartition(applier.partitionID)
			}, updatedAt)
		}

		return next
	}, nil
}
