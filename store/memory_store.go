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
	"fmt"
	"sync"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/topology"
)

type MemoryTopologyStore struct {
	mu              sync.Mutex
	clusterTopology *ClusterTopology
	watchers        *topologyWatchers
}

func NewMemoryTopologyStore() *MemoryTopologyStore {
	return &MemoryTopologyStore{
		clusterTopology: NewClusterTopology(),
		watchers:        newTopologyWatchers(),
	}
}

func (memoryStore *MemoryTopologyStore) GetTopology(ctx context.Context) (*ClusterTopology, error) {
	memoryStore.mu.Lock()
	defer memoryStore.mu.Unlock()

	return memoryStore.clusterTopology.Copy(), nil
}

func (memoryStore *MemoryTopologyStore) UpdateTopology(ctx context.Context, expectedVersion uint64, update TopologyUpdate) (*ClusterTopology, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	memoryStore.mu.Lock()
	defer memoryStore.mu.Unlock()

	if memoryStore.clusterTopology.Version != expectedVersion {
		prometheusRecordConflict()

		return nil, fmt.Errorf("expected version %d but the topology is at version %d: %w", expectedVersion, memoryStore.clusterTopology.Version, ETopologyModified)
	}

	next, err := update(memoryStore.clusterTopology.Copy())

	if err != nil {
		return nil, err
	}

	memoryStore.clusterTopology = next.WithVersion(expectedVersion + 1)
	memoryStore.watchers.publish(memoryStore.clusterTopology)
	prometheusRecordCommit(memoryStore.clusterTopology.Version)

	return memoryStore.clusterTopology.Copy(), nil
}

func (memoryStore *MemoryTopologyStore) Watch(ctx context.Context) <-chan *ClusterTopology {
	memoryStore.mu.Lock()
	defer memoryStore.mu.Unlock()

	return memoryStore.watchers.add(ctx, memoryStore.clusterTopology.Copy())
}
