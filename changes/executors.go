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

	. "github.com/PelionIoT/topologyd/topology"
)

// MembershipExecutor admits members to and evicts them from the cluster.
// Both calls must succeed when repeated after a previous success.
type MembershipExecutor interface {
	AddBroker(ctx context.Context, memberID MemberID) error
	RemoveBroker(ctx context.Context, memberID MemberID) error
}

// PartitionExecutor starts, stops and reconfigures the replica of a partition
// hosted by a member. Every call must succeed when repeated after a previous
// success.
type PartitionExecutor interface {
	// replicaPriorities contains the priority of every replica of the
	// partition, including the joining one
	Join(ctx context.Context, memberID MemberID, partitionID uint64, replicaPriorities map[MemberID]int) error
	Leave(ctx context.Context, memberID MemberID, partitionID uint64) error
	ReconfigurePriority(ctx context.Context, memberID MemberID, partitionID uint64, priority int) error
	// ForceReconfigure makes members the only replicas of the partition.
	// It is called on memberID, which is one of them.
	ForceReconfigure(ctx context.Context, memberID MemberID, partitionID uint64, members []MemberID) error
}

// NoopMembershipExecutor succeeds immediately. It is used to simulate a
// change before it is committed.
type NoopMembershipExecutor struct {
}

func (executor NoopMembershipExecutor) AddBroker(ctx context.Context, memberID MemberID) error {
	return nil
}

func (executor NoopMembershipExecutor) RemoveBroker(ctx context.Context, memberID MemberID) error {
	return nil
}

// NoopPartitionExecutor succeeds immediately. It is used to simulate a
// change before it is committed.
type NoopPartitionExecutor struct {
}

func (executor NoopPartitionExecutor) Join(ctx context.Context, memberID MemberID, partitionID uint64, replicaPriorities map[MemberID]int) error {
	return nil
}

func (executor NoopPartitionExecutor) Leave(ctx context.Context, memberID MemberID, partitionID uint64) error {
	return nil
}

func (executor NoopPartitionExecutor) ReconfigurePriority(ctx context.Context, memberID MemberID, partitionID uint64, priority int) error {
	return nil
}

func (executor NoopPartitionExecutor) ForceReconfigure(ctx context.Context, memberID MemberID, partitionID uint64, members []MemberID) error {
	return nil
}
