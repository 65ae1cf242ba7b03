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
	"encoding/json"
	"fmt"
	"sync"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/storage"
	. "github.com/PelionIoT/topologyd/topology"
)

var topologyKey = []byte("topology")

// PersistentTopologyStore keeps the topology snapshot as a JSON document in
// a storage driver so that a restarted process resumes an in-flight change
// from exactly where it stopped.
type PersistentTopologyStore struct {
	mu            sync.Mutex
	storageDriver StorageDriver
	watchers      *topologyWatchers
}

func NewPersistentTopologyStore(storageDriver StorageDriver) *PersistentTopologyStore {
	return &PersistentTopologyStore{
		storageDriver: storageDriver,
		watchers:      newTopologyWatchers(),
	}
}

func (persistentStore *PersistentTopologyStore) load() (*ClusterTopology, error) {
	values, err := persistentStore.storageDriver.Get([][]byte{topologyKey})

	if err != nil {
		Log.Errorf("Unable to read topology from storage: %v", err.Error())

		return nil, fmt.Errorf("%v: %w", err, EStorage)
	}

	if values[0] == nil {
		return NewClusterTopology(), nil
	}

	var clusterTopology ClusterTopology

	if err := clusterTopology.Recover(values[0]); err != nil {
		Log.Criticalf("Stored topology could not be decoded: %v", err.Error())

		return nil, fmt.Errorf("%v: %w", err, ECorrupted)
	}

	return &clusterTopology, nil
}

func (persistentStore *PersistentTopologyStore) GetTopology(ctx context.Context) (*ClusterTopology, error) {
	persistentStore.mu.Lock()
	defer persistentStore.mu.Unlock()

	return persistentStore.load()
}

func (persistentStore *PersistentTopologyStore) UpdateTopology(ctx context.Context, expectedVersion uint64, update TopologyUpdate) (*ClusterTopology, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	persistentStore.mu.Lock()
	defer persistentStore.mu.Unlock()

	current, err := persistentStore.load()

	if err != nil {
		return nil, err
	}

	if current.Version != expectedVersion {
		prometheusRecordConflict()

		return nil, fmt.Errorf("expected version %d but the topology is at version %d: %w", expectedVersion, current.Version, ETopologyModified)
	}

	next, err := update(current)

	if err != nil {
		return nil, err
	}

	next = next.WithVersion(expectedVersion + 1)
	encoded, err := json.Marshal(next)

	if err != nil {
		return nil, err
	}

	if err := persistentStore.storageDriver.Batch(NewBatch().Put(topologyKey, encoded)); err != nil {
		Log.Errorf("Unable to write topology version %d to storage: %v", next.Version, err.Error())

		return nil, fmt.Errorf("%v: %w", err, EStorage)
	}

	persistentStore.watchers.publish(next)
	prometheusRecordCommit(next.Version)

	return next, nil
}

func (persistentStore *PersistentTopologyStore) Watch(ctx context.Context) <-chan *ClusterTopology {
	persistentStore.mu.Lock()
	defer persistentStore.mu.Unlock()

	current, err := persistentStore.load()

	if err != nil {
		Log.Warningf("Unable to read topology for new watcher: %v", err.Error())

		current = nil
	}

	return persistentStore.watchers.add(ctx, current)
}
