package partition

import (
	"context"
	"fmt"

	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/topology"
)

// PoolPartitionExecutor starts and stops partition replicas in a partition
// pool. Every call succeeds when repeated.
type PoolPartitionExecutor struct {
	pool    PartitionPool
	factory PartitionFactory
}

func NewPoolPartitionExecutor(pool PartitionPool, factory PartitionFactory) *PoolPartitionExecutor {
	return &PoolPartitionExecutor{
		pool:    pool,
		factory: factory,
	}
}

func (executor *PoolPartitionExecutor) Join(ctx context.Context, memberID MemberID, partitionID uint64, replicaPriorities map[MemberID]int) error {
	partition := executor.pool.Get(memberID, partitionID)

	if partition != nil {
		partition.SetReplicaPriorities(replicaPriorities)
	} else {
		partition = executor.factory.CreatePartition(memberID, partitionID, replicaPriorities)
	}

	if err := partition.Start(ctx); err != nil {
		return err
	}

	executor.pool.Add(partition)

	return nil
}

func (executor *PoolPartitionExecutor) Leave(ctx context.Context, memberID MemberID, partitionID uint64) error {
	partition := executor.pool.Get(memberID, partitionID)

	if partition == nil {
		Log.Debugf("Partition %d already left member %s", partitionID, memberID)

		return nil
	}

	if err := partition.Stop(ctx); err != nil {
		return err
	}

	executor.pool.Remove(memberID, partitionID)

	return nil
}

func (executor *PoolPartitionExecutor) ReconfigurePriority(ctx context.Context, memberID MemberID, partitionID uint64, priority int) error {
	partition := executor.pool.Get(memberID, partitionID)

	if partition == nil {
		return fmt.Errorf("member %s does not host partition %d", memberID, partitionID)
	}

	partition.SetPriority(priority)

	return nil
}

// ForceReconfigure stops the replicas of partitionID hosted by members that
// are not listed and narrows the replica set of the rest to members
func (executor *PoolPartitionExecutor) ForceReconfigure(ctx context.Context, memberID MemberID, partitionID uint64, members []MemberID) error {
	if executor.pool.Get(memberID, partitionID) == nil {
		return fmt.Errorf("member %s does not host partition %d", memberID, partitionID)
	}

	keep := make(map[MemberID]bool, len(members))

	for _, member := range members {
		keep[member] = true
	}

	for _, replica := range executor.pool.Replicas(partitionID) {
		if keep[replica.Member()] {
			continue
		}

		Log.Warningf("Forcing replica of partition %d on member %s out of the replica set", partitionID, replica.Member())

		if err := replica.Stop(ctx); err != nil {
			return err
		}

		executor.pool.Remove(replica.Member(), partitionID)
	}

	for _, replica := range executor.pool.Replicas(partitionID) {
		replicaPriorities := make(map[MemberID]int)

		for member, priority := range replica.ReplicaPriorities() {
			if keep[member] {
				replicaPriorities[member] = priority
			}
		}

		replica.SetReplicaPriorities(replicaPriorities)
	}

	return nil
}

// Recover starts a replica for every partition the topology assigns to a
// member, e.g. after a restart or when seeding from the initial topology.
// Leaving replicas are not started again. A joining replica is started since
// the pending join would start it anyway.
func (executor *PoolPartitionExecutor) Recover(ctx context.Context, clusterTopology *ClusterTopology) error {
	for _, partitionID := range clusterTopology.PartitionIDs() {
		replicaPriorities := make(map[MemberID]int)

		for memberID, partitionState := range clusterTopology.PartitionReplicas(partitionID) {
			if partitionState.State == PartitionLeaving {
				Log.Infof("Not recovering partition %d on member %s since it is leaving", partitionID, memberID)

				continue
			}

			replicaPriorities[memberID] = partitionState.Priority
		}

		for memberID := range replicaPriorities {
			if err := executor.Join(ctx, memberID, partitionID, replicaPriorities); err != nil {
				return err
			}
		}
	}

	return nil
}
