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
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/store"
	. "github.com/PelionIoT/topologyd/topology"
)

const DefaultPollInterval = time.Second * 5

// ExecutionFailure records the operation a pending change is stuck on
type ExecutionFailure struct {
	ChangeID  uint64    `json:"changeId"`
	Operation Operation `json:"-"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failedAt"`
}

type ChangeDriverConfig struct {
	Store   TopologyStore
	Factory *ApplierFactory
	// LocalMemberID selects the member whose deltas are published on
	// LocalUpdates
	LocalMemberID MemberID
	PollInterval  time.Duration
	Clock         func() time.Time
	LocalUpdates  chan TopologyDelta
}

// ChangeDriver executes the pending change of the topology one operation at
// a time. Only one driver may run per cluster. The intent of an operation is
// persisted before its executor is called and its completion is persisted
// before the next operation starts, so a restarted driver resumes exactly
// where the previous one stopped. The states an intent replaced are kept
// with the change until the operation completes, so that cancelling the
// change does not leave the intent behind.
//
// A failed operation is never retried automatically. The change stays
// pending until an operator retries or cancels it.
type ChangeDriver struct {
	LocalUpdates  chan TopologyDelta
	store         TopologyStore
	factory       *ApplierFactory
	localMemberID MemberID
	pollInterval  time.Duration
	clock         func() time.Time
	stepLock      chan struct{}
	trigger       chan struct{}
	stop          chan struct{}
	done          chan struct{}
	mu            sync.Mutex
	failure       *ExecutionFailure
	lastSeen      *ClusterTopology
}

func NewChangeDriver(config ChangeDriverConfig) *ChangeDriver {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &ChangeDriver{
		LocalUpdates:  config.LocalUpdates,
		store:         config.Store,
		factory:       config.Factory,
		localMemberID: config.LocalMemberID,
		pollInterval:  config.PollInterval,
		clock:         config.Clock,
		stepLock:      make(chan struct{}, 1),
		trigger:       make(chan struct{}, 1),
		lastSeen:      NewClusterTopology(),
	}
}

// Start runs the driver in the background. It wakes up whenever the
// topology changes, when triggered and every poll interval.
func (driver *ChangeDriver) Start() {
	driver.stop = make(chan struct{})
	driver.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	stop := driver.stop
	done := driver.done

	go func() {
		<-stop
		cancel()
	}()

	go func() {
		defer close(done)

		watcher := driver.store.Watch(ctx)

		for {
			driver.run(ctx)

			select {
			case <-ctx.Done():
				return
			case <-driver.trigger:
			case _, ok := <-watcher:
				if !ok {
					watcher = nil
				}
			case <-time.After(driver.pollInterval):
			}
		}
	}()
}

// Stop cancels any executor call in flight and waits for the driver to exit.
// The interrupted operation is picked up again by the next driver.
func (driver *ChangeDriver) Stop() {
	if driver.stop == nil {
		return
	}

	close(driver.stop)
	<-driver.done

	driver.stop = nil
}

// Trigger wakes the driver up without waiting for the next poll
func (driver *ChangeDriver) Trigger() {
	select {
	case driver.trigger <- struct{}{}:
	default:
	}
}

func (driver *ChangeDriver) run(ctx context.Context) {
	for ctx.Err() == nil {
		progressed, err := driver.Step(ctx)

		if err != nil || !progressed {
			return
		}
	}
}

// Exclusive runs fn while no step is in flight. A step that has already
// called its executor finishes and persists its completion first.
func (driver *ChangeDriver) Exclusive(ctx context.Context, fn func() error) error {
	select {
	case driver.stepLock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	defer func() { <-driver.stepLock }()

	return fn()
}

// Step executes the head operation of the pending change. It reports
// whether the topology advanced.
func (driver *ChangeDriver) Step(ctx context.Context) (bool, error) {
	var progressed bool

	err := driver.Exclusive(ctx, func() error {
		var err error

		progressed, err = driver.step(ctx)

		return err
	})

	return progressed, err
}

func (driver *ChangeDriver) step(ctx context.Context) (bool, error) {
	current, err := driver.store.GetTopology(ctx)

	if err != nil {
		Log.Warningf("Change driver unable to read topology: %v", err.Error())

		return false, err
	}

	driver.notifyLocalChanges(ctx, current)

	operation, ok := current.NextPendingOperation()

	if !ok {
		driver.clearFailure()

		return false, nil
	}

	changeID := current.PendingChanges.ID

	if driver.Failure(changeID) != nil {
		return false, nil
	}

	driver.clearFailure()

	applier := driver.factory.ClusterApplier(operation)
	intended, err := initStep(current, applier, driver.clock())

	if err != nil {
		Log.Errorf("Change %d cannot proceed, %s is no longer valid: %v", changeID, operation.String(), err.Error())

		driver.recordFailure(changeID, operation, err)
		prometheusRecordOperation(operation.Type(), err)

		return false, err
	}

	if !intended.HasSameMembers(current) {
		Log.Debugf("Change %d: recording intent of %s", changeID, operation.String())

		committed, err := driver.store.UpdateTopology(ctx, current.Version, func(latest *ClusterTopology) (*ClusterTopology, error) {
			return latest.RecordIntent(intended), nil
		})

		if errors.Is(err, ETopologyModified) {
			return true, nil
		}

		if err != nil {
			return false, err
		}

		driver.notifyLocalChanges(ctx, committed)
		current = committed
	}

	Log.Infof("Change %d: applying %s", changeID, operation.String())

	completion, err := applier.Apply(ctx)

	if err != nil {
		if ctx.Err() != nil {
			Log.Infof("Change %d: interrupted while applying %s", changeID, operation.String())

			return false, ctx.Err()
		}

		Log.Errorf("Change %d is stuck, %s failed: %v", changeID, operation.String(), err.Error())

		driver.recordFailure(changeID, operation, err)
		prometheusRecordOperation(operation.Type(), err)

		return false, fmt.Errorf("%v: %w", err, EExecution)
	}

	prometheusRecordOperation(operation.Type(), nil)

	completed, err := driver.store.UpdateTopology(ctx, current.Version, func(latest *ClusterTopology) (*ClusterTopology, error) {
		return latest.AdvanceChangeWith(completion, driver.clock()), nil
	})

	if errors.Is(err, ETopologyModified) {
		// the completion is recorded once the step is replayed
		Log.Warningf("Change %d: topology was modified while applying %s", changeID, operation.String())

		return true, nil
	}

	if err != nil {
		Log.Errorf("Change %d: unable to record completion of %s: %v", changeID, operation.String(), err.Error())

		return false, err
	}

	driver.notifyLocalChanges(ctx, completed)

	if !completed.HasPendingChanges() {
		Log.Infof("Change %d completed", changeID)

		prometheusRecordChange("completed")
	}

	return true, nil
}

// Failure returns the failure changeID is stuck on or nil if it is not stuck
func (driver *ChangeDriver) Failure(changeID uint64) *ExecutionFailure {
	driver.mu.Lock()
	defer driver.mu.Unlock()

	if driver.failure == nil || driver.failure.ChangeID != changeID {
		return nil
	}

	failure := *driver.failure

	return &failure
}

// Retry lets a stuck change run its failed operation again
func (driver *ChangeDriver) Retry(changeID uint64) error {
	driver.mu.Lock()

	if driver.failure == nil || driver.failure.ChangeID != changeID {
		driver.mu.Unlock()

		return fmt.Errorf("change %d: %w", changeID, EChangeNotStuck)
	}

	Log.Infof("Retrying %s of change %d", driver.failure.Operation.String(), changeID)

	driver.failure = nil
	prometheusRecordStuck(false)
	driver.mu.Unlock()

	driver.Trigger()

	return nil
}

func (driver *ChangeDriver) recordFailure(changeID uint64, operation Operation, err error) {
	driver.mu.Lock()
	defer driver.mu.Unlock()

	driver.failure = &ExecutionFailure{
		ChangeID:  changeID,
		Operation: operation,
		Error:     err.Error(),
		FailedAt:  driver.clock(),
	}

	prometheusRecordStuck(true)
}

func (driver *ChangeDriver) clearFailure() {
	driver.mu.Lock()
	defer driver.mu.Unlock()

	if driver.failure != nil {
		driver.failure = nil
		prometheusRecordStuck(false)
	}
}

func (driver *ChangeDriver) notifyLocalChanges(ctx context.Context, clusterTopology *ClusterTopology) {
	driver.mu.Lock()
	lastSeen := driver.lastSeen
	driver.lastSeen = clusterTopology
	driver.mu.Unlock()

	if driver.LocalUpdates == nil {
		return
	}

	for _, delta := range DiffMember(driver.localMemberID, lastSeen, clusterTopology) {
		select {
		case driver.LocalUpdates <- delta:
		case <-ctx.Done():
			return
		}
	}
}
