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

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/store"
	. "github.com/PelionIoT/topologyd/topology"
)

// OperationsRequest computes the operations of a change from the current
// topology
type OperationsRequest func(current *ClusterTopology) ([]Operation, error)

// Operations is a request for a fixed list of operations
func Operations(operations ...Operation) OperationsRequest {
	return func(*ClusterTopology) ([]Operation, error) {
		return operations, nil
	}
}

type ChangeResult struct {
	// ChangeID is zero if the request produced no operations
	ChangeID          uint64
	CurrentTopology   *ClusterTopology
	ExpectedTopology  *ClusterTopology
	PlannedOperations []Operation
}

type OperationStatus struct {
	Operation   Operation
	Completed   bool
	CompletedAt time.Time
}

type ChangeStatusReport struct {
	ChangeID    uint64
	Status      ChangeStatus
	StartedAt   time.Time
	CompletedAt time.Time
	// Operations is only known while the change is pending
	Operations []OperationStatus
	Failure    *ExecutionFailure
}

type TopologyChangeCoordinator struct {
	store             TopologyStore
	driver            *ChangeDriver
	simulationFactory *ApplierFactory
	clock             func() time.Time
}

// NewTopologyChangeCoordinator returns a coordinator for the topology held
// by topologyStore. driver may be nil, in which case changes are committed
// but nothing executes them in this process.
func NewTopologyChangeCoordinator(topologyStore TopologyStore, driver *ChangeDriver, clock func() time.Time) *TopologyChangeCoordinator {
	if clock == nil {
		clock = time.Now
	}

	return &TopologyChangeCoordinator{
		store:             topologyStore,
		driver:            driver,
		simulationFactory: NewSimulationApplierFactory(),
		clock:             clock,
	}
}

func (coordinator *TopologyChangeCoordinator) Topology(ctx context.Context) (*ClusterTopology, error) {
	return coordinator.store.GetTopology(ctx)
}

// plan reads the current topology, computes the requested operations and
// simulates them. pending is nil if there is nothing to do.
func (coordinator *TopologyChangeCoordinator) plan(ctx context.Context, request OperationsRequest) (current *ClusterTopology, pending *ClusterTopology, result ChangeResult, err error) {
	current, err = coordinator.store.GetTopology(ctx)

	if err != nil {
		return nil, nil, ChangeResult{}, err
	}

	operations, err := request(current)

	if err != nil {
		return nil, nil, ChangeResult{}, err
	}

	if len(operations) == 0 {
		return current, nil, ChangeResult{
			CurrentTopology:   current,
			ExpectedTopology:  current,
			PlannedOperations: []Operation{},
		}, nil
	}

	if current.IsUninitialized() {
		return nil, nil, ChangeResult{}, ETopologyUninitialized
	}

	changeID := current.Version + 1
	now := coordinator.clock()
	pending, err = current.StartChange(changeID, now, operations)

	if err != nil {
		prometheusRecordChange("rejected")

		return nil, nil, ChangeResult{}, err
	}

	expected, err := SimulateChange(ctx, coordinator.simulationFactory, pending, now)

	if err != nil {
		Log.Infof("Rejected topology change: %v", err.Error())

		prometheusRecordChange("rejected")

		return nil, nil, ChangeResult{}, err
	}

	return current, pending, ChangeResult{
		ChangeID:          changeID,
		CurrentTopology:   current,
		ExpectedTopology:  expected,
		PlannedOperations: operations,
	}, nil
}

// ApplyOperations validates the requested operations by simulating them and
// commits them as the pending change. It returns once the change is durably
// recorded. Execution happens asynchronously in the driver and its failures
// are only visible through ChangeStatus.
func (coordinator *TopologyChangeCoordinator) ApplyOperations(ctx context.Context, request OperationsRequest) (ChangeResult, error) {
	current, pending, result, err := coordinator.plan(ctx, request)

	if err != nil || pending == nil {
		return result, err
	}

	_, err = coordinator.store.UpdateTopology(ctx, current.Version, func(*ClusterTopology) (*ClusterTopology, error) {
		return pending, nil
	})

	if err != nil {
		return ChangeResult{}, err
	}

	Log.Infof("Committed topology change %d with %d operation(s)", result.ChangeID, len(result.PlannedOperations))

	prometheusRecordChange("committed")

	if coordinator.driver != nil {
		coordinator.driver.Trigger()
	}

	return result, nil
}

// SimulateOperations is ApplyOperations without the commit
func (coordinator *TopologyChangeCoordinator) SimulateOperations(ctx context.Context, request OperationsRequest) (ChangeResult, error) {
	_, _, result, err := coordinator.plan(ctx, request)

	return result, err
}

// HasCompletedChanges reports whether the change started at changeID is no
// longer pending. A cancelled change counts as finished.
func (coordinator *TopologyChangeCoordinator) HasCompletedChanges(ctx context.Context, changeID uint64) (bool, error) {
	current, err := coordinator.store.GetTopology(ctx)

	if err != nil {
		return false, err
	}

	return current.HasCompletedChange(changeID), nil
}

// CancelChange drops the remaining operations of the pending change. An
// operation already being applied finishes and keeps its effect.
func (coordinator *TopologyChangeCoordinator) CancelChange(ctx context.Context, changeID uint64) (*ClusterTopology, error) {
	var cancelled *ClusterTopology

	cancel := func() error {
		current, err := coordinator.store.GetTopology(ctx)

		if err != nil {
			return err
		}

		next, err := current.CancelChange(changeID, coordinator.clock())

		if err != nil {
			return err
		}

		cancelled, err = coordinator.store.UpdateTopology(ctx, current.Version, func(*ClusterTopology) (*ClusterTopology, error) {
			return next, nil
		})

		return err
	}

	var err error

	if coordinator.driver != nil {
		err = coordinator.driver.Exclusive(ctx, func() error {
			if err := cancel(); err != nil {
				return err
			}

			coordinator.driver.clearFailure()

			return nil
		})
	} else {
		err = cancel()
	}

	if err != nil {
		return nil, err
	}

	Log.Infof("Cancelled topology change %d", changeID)

	prometheusRecordChange("cancelled")

	return cancelled, nil
}

func (coordinator *TopologyChangeCoordinator) ChangeStatus(ctx context.Context, changeID uint64) (ChangeStatusReport, error) {
	current, err := coordinator.store.GetTopology(ctx)

	if err != nil {
		return ChangeStatusReport{}, err
	}

	if current.PendingChanges != nil && current.PendingChanges.ID == changeID {
		plan := current.PendingChanges
		operations := make([]OperationStatus, 0, len(plan.CompletedOperations)+len(plan.PendingOperations))

		for _, completedOperation := range plan.CompletedOperations {
			operations = append(operations, OperationStatus{Operation: completedOperation.Operation, Completed: true, CompletedAt: completedOperation.CompletedAt})
		}

		for _, operation := range plan.PendingOperations {
			operations = append(operations, OperationStatus{Operation: operation})
		}

		report := ChangeStatusReport{
			ChangeID:   changeID,
			Status:     plan.Status,
			StartedAt:  plan.StartedAt,
			Operations: operations,
		}

		if coordinator.driver != nil {
			report.Failure = coordinator.driver.Failure(changeID)
		}

		if report.Failure != nil {
			report.Status = ChangeFailed
		}

		return report, nil
	}

	if current.LastChange != nil && current.LastChange.ID == changeID {
		return ChangeStatusReport{
			ChangeID:    changeID,
			Status:      current.LastChange.Status,
			StartedAt:   current.LastChange.StartedAt,
			CompletedAt: current.LastChange.CompletedAt,
		}, nil
	}

	return ChangeStatusReport{}, fmt.Errorf("change %d: %w", changeID, ENoSuchChange)
}

// RetryChange runs the failed operation of a stuck change again
func (coordinator *TopologyChangeCoordinator) RetryChange(ctx context.Context, changeID uint64) error {
	current, err := coordinator.store.GetTopology(ctx)

	if err != nil {
		return err
	}

	if !current.HasPendingChanges() || current.PendingChanges.ID != changeID {
		return fmt.Errorf("change %d is not pending: %w", changeID, ENoSuchChange)
	}

	if coordinator.driver == nil {
		return fmt.Errorf("change %d: %w", changeID, EChangeNotStuck)
	}

	return coordinator.driver.Retry(changeID)
}

// Watch streams committed topology snapshots until ctx is done
func (coordinator *TopologyChangeCoordinator) Watch(ctx context.Context) <-chan *ClusterTopology {
	return coordinator.store.Watch(ctx)
}
