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
	"fmt"
	"sync"

	. "github.com/PelionIoT/topologyd/topology"
)

// threeMemberTopology has members 1, 2 and 3. Partition 1 is replicated on
// members 1 and 2 with priorities 2 and 1.
func threeMemberTopology() *ClusterTopology {
	return NewClusterTopology().
		AddMember("1", NewMemberState(MemberActive, map[uint64]PartitionState{1: ActivePartition(2)})).
		AddMember("2", NewMemberState(MemberActive, map[uint64]PartitionState{1: ActivePartition(1)})).
		AddMember("3", NewMemberState(MemberActive, nil)).
		WithVersion(1)
}

type executorCall struct {
	method            string
	memberID          MemberID
	partitionID       uint64
	priority          int
	replicaPriorities map[MemberID]int
	members           []MemberID
}

func (call executorCall) String() string {
	return fmt.Sprintf("%s(%s, %d)", call.method, call.memberID, call.partitionID)
}

type MockExecutor struct {
	mu     sync.Mutex
	calls  []executorCall
	errors map[string]error
	block  map[string]chan struct{}
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		calls:  []executorCall{},
		errors: make(map[string]error),
		block:  make(map[string]chan struct{}),
	}
}

func (executor *MockExecutor) failOn(method string, err error) {
	executor.mu.Lock()
	defer executor.mu.Unlock()

	if err == nil {
		delete(executor.errors, method)
	} else {
		executor.errors[method] = err
	}
}

// blockOn makes calls to method wait until the returned channel is closed
func (executor *MockExecutor) blockOn(method string) chan struct{} {
	executor.mu.Lock()
	defer executor.mu.Unlock()

	unblock := make(chan struct{})
	executor.block[method] = unblock

	return unblock
}

func (executor *MockExecutor) Calls() []executorCall {
	executor.mu.Lock()
	defer executor.mu.Unlock()

	calls := make([]executorCall, len(executor.calls))
	copy(calls, executor.calls)

	return calls
}

func (executor *MockExecutor) CallCount(method string) int {
	count := 0

	for _, call := range executor.Calls() {
		if call.method == method {
			count++
		}
	}

	return count
}

func (executor *MockExecutor) record(ctx context.Context, call executorCall) error {
	executor.mu.Lock()
	executor.calls = append(executor.calls, call)
	err := executor.errors[call.method]
	unblock := executor.block[call.method]
	executor.mu.Unlock()

	if unblock != nil {
		select {
		case <-unblock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}

func (executor *MockExecutor) AddBroker(ctx context.Context, memberID MemberID) error {
	return executor.record(ctx, executorCall{method: "AddBroker", memberID: memberID})
}

func (executor *MockExecutor) RemoveBroker(ctx context.Context, memberID MemberID) error {
	return executor.record(ctx, executorCall{method: "RemoveBroker", memberID: memberID})
}

func (executor *MockExecutor) Join(ctx context.Context, memberID MemberID, partitionID uint64, replicaPriorities map[MemberID]int) error {
	return executor.record(ctx, executorCall{method: "Join", memberID: memberID, partitionID: partitionID, replicaPriorities: replicaPriorities})
}

func (executor *MockExecutor) Leave(ctx context.Context, memberID MemberID, partitionID uint64) error {
	return executor.record(ctx, executorCall{method: "Leave", memberID: memberID, partitionID: partitionID})
}

func (executor *MockExecutor) ReconfigurePriority(ctx context.Context, memberID MemberID, partitionID uint64, priority int) error {
	return executor.record(ctx, executorCall{method: "ReconfigurePriority", memberID: memberID, partitionID: partitionID, priority: priority})
}

func (executor *MockExecutor) ForceReconfigure(ctx context.Context, memberID MemberID, partitionID uint64, members []MemberID) error {
	return executor.record(ctx, executorCall{method: "ForceReconfigure", memberID: memberID, partitionID: partitionID, members: members})
}
