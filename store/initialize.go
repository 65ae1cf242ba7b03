package store

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
	"fmt"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/topology"
)

// InitialTopology builds a topology in which every listed member is ACTIVE
// and replicates its partitions with the given priorities
func InitialTopology(members map[MemberID]map[uint64]int) *ClusterTopology {
	clusterTopology := NewClusterTopology()

	for memberID, partitions := range members {
		partitionStates := make(map[uint64]PartitionState, len(partitions))

		for partitionID, priority := range partitions {
			partitionStates[partitionID] = ActivePartition(priority)
		}

		clusterTopology = clusterTopology.AddMember(memberID, NewMemberState(MemberActive, partitionStates))
	}

	return clusterTopology
}

// InitializeTopology seeds an uninitialized store with initial. A store that
// already holds a topology is left alone and its topology is returned.
func InitializeTopology(ctx context.Context, topologyStore TopologyStore, initial *ClusterTopology) (*ClusterTopology, error) {
	current, err := topologyStore.GetTopology(ctx)

	if err != nil {
		return nil, err
	}

	if !current.IsUninitialized() {
		Log.Debugf("Topology already initialized at version %d", current.Version)

		return current, nil
	}

	if len(initial.Members) == 0 {
		return nil, fmt.Errorf("initial topology has no members: %w", EInvalidRequest)
	}

	initialized, err := topologyStore.UpdateTopology(ctx, current.Version, func(*ClusterTopology) (*ClusterTopology, error) {
		next := initial.Copy()
		next.LastChange = nil
		next.PendingChanges = nil

		return next, nil
	})

	if errors.Is(err, ETopologyModified) {
		return topologyStore.GetTopology(ctx)
	}

	if err != nil {
		return nil, err
	}

	Log.Infof("Initialized topology with members %v", initialized.MemberIDs())

	return initialized, nil
}
