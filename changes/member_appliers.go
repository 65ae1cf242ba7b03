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

type MemberJoinApplier struct {
	memberID MemberID
	executor MembershipExecutor
}

func NewMemberJoinApplier(memberID MemberID, executor MembershipExecutor) *MemberJoinApplier {
	return &MemberJoinApplier{memberID: memberID, executor: executor}
}

func (applier *MemberJoinApplier) Init(clusterTopology *ClusterTopology) (MemberStateTransition, error) {
	memberState, ok := clusterTopology.Member(applier.memberID)

	if !ok || memberState.State == MemberLeft {
		return func(memberState MemberState) MemberState {
			return UninitializedMember().ToJoining()
		}, nil
	}

	if memberState.State == MemberJoining {
		return Identity, nil
	}

	return nil, fmt.Errorf("member %s is %s: %w", applier.memberID, memberState.State, EMemberAlreadyExists)
}

func (applier *MemberJoinApplier) Apply(ctx context.Context) (MemberStateTransition, error) {
	if err := applier.executor.AddBroker(ctx, applier.memberID); err != nil {
		return nil, fmt.Errorf("unable to add broker %s: %w", applier.memberID, err)
	}

	return func(memberState MemberState) MemberState {
		return memberState.ToActive()
	}, nil
}

type MemberLeaveApplier struct {
	memberID MemberID
	executor MembershipExecutor
}

func NewMemberLeaveApplier(memberID MemberID, executor MembershipExecutor) *MemberLeaveApplier {
	return &MemberLeaveApplier{memberID: memberID, executor: executor}
}

func (applier *MemberLeaveApplier) Init(clusterTopology *ClusterTopology) (MemberStateTransition, error) {
	memberState, ok := clusterTopology.Member(applier.memberID)

	if !ok || memberState.State == MemberLeft {
		return nil, fmt.Errorf("member %s cannot leave: %w", applier.memberID, ENoSuchMember)
	}

	if len(memberState.Partitions) != 0 {
		return nil, fmt.Errorf("member %s still replicates partitions %v: %w", applier.memberID, memberState.PartitionIDs(), EMemberHasPartitions)
	}

	if memberState.State == MemberLeaving {
		return Identity, nil
	}

	if memberState.State != MemberActive {
		return nil, fmt.Errorf("member %s is %s: %w", applier.memberID, memberState.State, EMemberNotActive)
	}

	return func(memberState MemberState) MemberState {
		return memberState.ToLeaving()
	}, nil
}

func (applier *MemberLeaveApplier) Apply(ctx context.Context) (MemberStateTransition, error) {
	if err := applier.executor.RemoveBroker(ctx, applier.memberID); err != nil {
		return nil, fmt.Errorf("unable to remove broker %s: %w", applier.memberID, err)
	}

	return func(memberState MemberState) MemberState {
		return memberState.ToLeft()
	}, nil
}
