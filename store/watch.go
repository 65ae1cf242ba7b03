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
	"sync"

	. "github.com/PelionIoT/topologyd/topology"
)

type topologyWatchers struct {
	mu       sync.Mutex
	nextID   uint64
	watchers map[uint64]chan *ClusterTopology
}

func newTopologyWatchers() *topologyWatchers {
	return &topologyWatchers{
		watchers: make(map[uint64]chan *ClusterTopology),
	}
}

func (topologyWatchers *topologyWatchers) add(ctx context.Context, current *ClusterTopology) <-chan *ClusterTopology {
	topologyWatchers.mu.Lock()
	defer topologyWatchers.mu.Unlock()

	watcher := make(chan *ClusterTopology, 1)
	id := topologyWatchers.nextID
	topologyWatchers.nextID++
	topologyWatchers.watchers[id] = watcher

	if current != nil {
		watcher <- current
	}

	go func() {
		<-ctx.Done()

		topologyWatchers.mu.Lock()
		defer topologyWatchers.mu.Unlock()

		delete(topologyWatchers.watchers, id)
		close(watcher)
	}()

	return watcher
}

// publish replaces whatever snapshot a watcher has not consumed yet with the
// new one
func (topologyWatchers *topologyWatchers) publish(clusterTopology *ClusterTopology) {
	topologyWatchers.mu.Lock()
	defer topologyWatchers.mu.Unlock()

	for _, watcher := range topologyWatchers.watchers {
		select {
		case <-watcher:
		default:
		}

		watcher <- clusterTopology.Copy()
	}
}
