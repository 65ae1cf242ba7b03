package routes

import (
	"context"

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/topology"
)

type TopologyFacade interface {
	Topology(ctx context.Context) (*ClusterTopology, error)
	ApplyOperations(ctx context.Context, request OperationsRequest) (ChangeResult, error)
	SimulateOperations(ctx context.Context, request OperationsRequest) (ChangeResult, error)
	ChangeStatus(ctx context.Context, changeID uint64) (ChangeStatusReport, error)
	CancelChange(ctx context.Context, changeID uint64) (*ClusterTopology, error)
	RetryChange(ctx context.Context, changeID uint64) error
	Watch(ctx context.Context) <-chan *ClusterTopology
}
