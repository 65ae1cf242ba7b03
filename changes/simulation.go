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

	. "github.com/PelionIoT/topologyd/topology"
)

// initStep checks the head pending operation against clusterTopology and
// returns the topology with the operation's intent recorded
func initStep(clusterTopology *ClusterTopology, applier ClusterOperationApplier, updatedAt time.Time) (*ClusterTopology, error) {
	intent, err := applier.Init(clusterTopology)

	if err != nil {
		return nil, err
	}

	return intent(clusterTopology, updatedAt), nil
}

// SimulateChange runs every pending operation of clusterTopology to
// completion with appliers built by factory and returns the resulting
// topology. Nothing is written anywhere. With the simulation factory the
// result is the topology the driver reaches once it has applied the same
// operations with executors that do not fail.
func SimulateChange(ctx context.Context, factory *ApplierFactory, clusterTopology *ClusterTopology, completedAt time.Time) (*ClusterTopology, error) {
	simulated := clusterTopology

	for step := 0; ; step++ {
		operation, ok := simulated.NextPendingOperation()

		if !ok {
			return simulated, nil
		}

		applier := factory.ClusterApplier(operation)
		next, err := initStep(simulated, applier, completedAt)

		if err != nil {
			return nil, fmt.Errorf("operation %d (%s) is invalid: %w", step, operation.String(), err)
		}

		completion, err := applier.Apply(ctx)

		if err != nil {
			return nil, fmt.Errorf("operation %d (%s) failed: %w", step, operation.String(), err)
		}

		simulated = next.AdvanceChangeWith(completion, completedAt)
	}
}
