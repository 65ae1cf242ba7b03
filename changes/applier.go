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

// OperationApplier validates and executes a single topology change operation.
//
// Init checks the operation's preconditions against the current topology
// and returns the transition that records the operation's intent on the
// member. It has no side effects and returns Identity if the member already
// reflects the intent, so a step replayed after a restart does not fail.
//
// Apply performs the operation through an executor and returns the
// transition that records its completion. On failure no transition is
// returned. Apply must only be called after a successful Init.
type OperationApplier interface {
	Init(clusterTopology *ClusterTopology) (MemberStateTransition, error)
	Apply(ctx context.Context) (MemberStateTransition, error)
}

// ClusterOperationApplier is the applier of an operation that may change
// several members. Init and Apply follow the OperationApplier contract.
type ClusterOperationApplier interface {
	Init(clusterTopology *ClusterTopology) (TopologyTransition, error)
	Apply(ctx context.Context) (TopologyTransition, error)
}

// memberOperationApplier scopes the transitions of a member operation
// applier to the operation's member
type memberOperationApplier struct {
	memberID MemberID
	applier  OperationApplier
}

func (memberApplier *memberOperationApplier) Init(clusterTopology *ClusterTopology) (TopologyTransition, error) {
	transition, err := memberApplier.applier.Init(clusterTopology)

	if err != nil {
		return nil, err
	}

	return ForMember(memberApplier.memberID, transition), nil
}

func (memberApplier *memberOperationApplier) Apply(ctx context.Context) (TopologyTransition, error) {
	transition, err := memberApplier.applier.Apply(ctx)

	if err != nil {
		return nil, err
	}

	return ForMember(memberApplier.memberID, transition), nil
}
