package partition

import (
	"context"

	. "github.com/PelionIoT/topologyd/topology"
)

// Partition is the replica of a partition hosted by one member
type Partition interface {
	Partition() uint64
	Member() MemberID
	Priority() int
	SetPriority(priority int)
	ReplicaPriorities() map[MemberID]int
	SetReplicaPriorities(replicaPriorities map[MemberID]int)
	Running() bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
