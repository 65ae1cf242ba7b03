package routes_test

import (
	"context"

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/topology"
)

type MockTopologyFacade struct {
	defaultTopologyResponse      *ClusterTopology
	defaultTopologyResponseError error
	defaultApplyResponse         ChangeResult
	defaultApplyResponseError    error
	defaultSimulateResponse      ChangeResult
	defaultChangeStatusResponse  ChangeStatusReport
	defaultChangeStatusError     error
	defaultCancelResponse        *ClusterTopology
	defaultCancelResponseError   error
	defaultRetryResponse         error
	watchUpdates                 chan *ClusterTopology
	applyCB                      func(ctx context.Context, request OperationsRequest)
	simulateCB                   func(ctx context.Context, request OperationsRequest)
	cancelCB                     func(ctx context.Context, changeID uint64)
	retryCB                      func(ctx context.Context, changeID uint64)
}

func (topologyFacade *MockTopologyFacade) Topology(ctx context.Context) (*ClusterTopology, error) {
	return topologyFacade.defaultTopologyResponse, topologyFacade.defaultTopologyResponseError
}

func (topologyFacade *MockTopologyFacade) ApplyOperations(ctx context.Context, request OperationsRequest) (ChangeResult, error) {
	if topologyFacade.applyCB != nil {
		topologyFacade.applyCB(ctx, request)
	}

	return topologyFacade.defaultApplyResponse, topologyFacade.defaultApplyResponseError
}

func (topologyFacade *MockTopologyFacade) SimulateOperations(ctx context.Context, request OperationsRequest) (ChangeResult, error) {
	if topologyFacade.simulateCB != nil {
		topologyFacade.simulateCB(ctx, request)
	}

	return topologyFacade.defaultSimulateResponse, nil
}

func (topologyFacade *MockTopologyFacade) ChangeStatus(ctx context.Context, changeID uint64) (ChangeStatusReport, error) {
	return topologyFacade.defaultChangeStatusResponse, topologyFacade.defaultChangeStatusError
}

func (topologyFacade *MockTopologyFacade) CancelChange(ctx context.Context, changeID uint64) (*ClusterTopology, error) {
	if topologyFacade.cancelCB != nil {
		topologyFacade.cancelCB(ctx, changeID)
	}

	return topologyFacade.defaultCancelResponse, topologyFacade.defaultCancelResponseError
}

func (topologyFacade *MockTopologyFacade) RetryChange(ctx context.Context, changeID uint64) error {
	if topologyFacade.retryCB != nil {
		topologyFacade.retryCB(ctx, changeID)
	}

	return topologyFacade.defaultRetryResponse
}

// Watch relays watchUpdates until ctx is done
func (topologyFacade *MockTopologyFacade) Watch(ctx context.Context) <-chan *ClusterTopology {
	updates := make(chan *ClusterTopology)

	go func() {
		defer close(updates)

		for {
			select {
			case clusterTopology := <-topologyFacade.watchUpdates:
				select {
				case updates <- clusterTopology:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates
}

func twoMemberTopology() *ClusterTopology {
	return NewClusterTopology().
		AddMember("1", NewMemberState(MemberActive, map[uint64]PartitionState{1: ActivePartition(1)})).
		AddMember("2", NewMemberState(MemberActive, nil)).
		WithVersion(3)
}
