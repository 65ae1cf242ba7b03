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

	. "github.com/PelionIoT/topologyd/topology"
)

// TopologyUpdate computes the next snapshot from the current one. It receives
// a private copy and may return it modified.
type TopologyUpdate func(current *ClusterTopology) (*ClusterTopology, error)

// TopologyStore holds the authoritative cluster topology. UpdateTopology is
// a compare-and-swap: it fails with ETopologyModified unless the stored
// version equals expectedVersion, otherwise it stores the result of update
// with version expectedVersion+1 and returns it.
type TopologyStore interface {
	GetTopology(ctx context.Context) (*ClusterTopology, error)
	UpdateTopology(ctx context.Context, expectedVersion uint64, update TopologyUpdate) (*ClusterTopology, error)
	// Watch returns a channel that always holds the latest committed
	// snapshot. Intermediate snapshots may be skipped. The channel is
	// closed when ctx is done.
	Watch(ctx context.Context) <-chan *ClusterTopology
}
