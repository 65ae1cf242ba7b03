package membership

import (
	"context"
	"fmt"

	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/partition"
	. "github.com/PelionIoT/topologyd/topology"
)

// RegistryMembershipExecutor admits and evicts brokers by updating a member
// registry. A broker that still hosts partition replicas is not evicted.
type RegistryMembershipExecutor struct {
	registry   MemberRegistry
	partitions PartitionPool
}

func NewRegistryMembershipExecutor(registry MemberRegistry, partitions PartitionPool) *RegistryMembershipExecutor {
	return &RegistryMembershipExecutor{
		registry:   registry,
		partitions: partitions,
	}
}

func (executor *RegistryMembershipExecutor) AddBroker(ctx context.Context, memberID MemberID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if executor.registry.Has(memberID) {
		Log.Debugf("Broker %s was already admitted", memberID)

		return nil
	}

	executor.registry.Add(memberID)

	Log.Infof("Admitted broker %s", memberID)

	return nil
}

func (executor *RegistryMembershipExecutor) RemoveBroker(ctx context.Context, memberID MemberID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if hosted := executor.partitions.Hosted(memberID); len(hosted) != 0 {
		return fmt.Errorf("broker %s still hosts %d partition replica(s)", memberID, len(hosted))
	}

	if !executor.registry.Has(memberID) {
		Log.Debugf("Broker %s was already evicted", memberID)

		return nil
	}

	executor.registry.Remove(memberID)

	Log.Infof("Evicted broker %s", memberID)

	return nil
}

// Recover admits every member of the topology that has not left
func (executor *RegistryMembershipExecutor) Recover(ctx context.Context, clusterTopology *ClusterTopology) error {
	for _, memberID := range clusterTopology.MemberIDs() {
		if memberState, _ := clusterTopology.Member(memberID); memberState.State == MemberActive || memberState.State == MemberLeaving {
			if err := executor.AddBroker(ctx, memberID); err != nil {
				return err
			}
		}
	}

	return nil
}
