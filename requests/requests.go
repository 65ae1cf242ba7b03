package requests

import (
	"fmt"

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/topology"
)

// AddBrokers admits every listed member that is not already part of the
// cluster. Members that are joining or active are left alone so the request
// can be reissued.
func AddBrokers(memberIDs ...MemberID) OperationsRequest {
	return func(current *ClusterTopology) ([]Operation, error) {
		operations := make([]Operation, 0, len(memberIDs))

		for _, memberID := range memberIDs {
			memberState, ok := current.Member(memberID)

			if ok && memberState.State != MemberLeft {
				continue
			}

			operations = append(operations, MemberJoinOperation{Member: memberID})
		}

		return operations, nil
	}
}

// RemoveBrokers evicts every listed member that has not left yet. A member
// must have no partitions left to be removed.
func RemoveBrokers(memberIDs ...MemberID) OperationsRequest {
	return func(current *ClusterTopology) ([]Operation, error) {
		operations := make([]Operation, 0, len(memberIDs))

		for _, memberID := range memberIDs {
			memberState, ok := current.Member(memberID)

			if ok && memberState.State == MemberLeft {
				continue
			}

			operations = append(operations, MemberLeaveOperation{Member: memberID})
		}

		return operations, nil
	}
}

// ForceRemoveBrokers drops brokers that are gone for good without their
// cooperation. Every partition they replicate is first forced down to its
// remaining active replicas. The brokers are then removed by the first active
// broker that stays.
func ForceRemoveBrokers(memberIDs ...MemberID) OperationsRequest {
	return func(current *ClusterTopology) ([]Operation, error) {
		removed := make(map[MemberID]bool, len(memberIDs))

		for _, memberID := range uniqueSorted(memberIDs) {
			memberState, ok := current.Member(memberID)

			if !ok {
				return nil, fmt.Errorf("broker %s cannot be removed: %w", memberID, ENoSuchMember)
			}

			if memberState.State == MemberLeft {
				continue
			}

			removed[memberID] = true
		}

		if len(removed) == 0 {
			return []Operation{}, nil
		}

		var initiator MemberID

		for _, memberID := range current.MemberIDs() {
			if memberState, _ := current.Member(memberID); !removed[memberID] && memberState.State == MemberActive {
				initiator = memberID

				break
			}
		}

		if initiator == "" {
			return nil, fmt.Errorf("no active broker is left to remove %v: %w", uniqueSorted(memberIDs), EInvalidRequest)
		}

		operations := make([]Operation, 0)

		for _, partitionID := range current.PartitionIDs() {
			replicas := current.PartitionReplicas(partitionID)
			affected := false
			survivors := make([]MemberID, 0, len(replicas))

			for memberID, partitionState := range replicas {
				if removed[memberID] {
					affected = true

					continue
				}

				if memberState, _ := current.Member(memberID); memberState.State == MemberActive && partitionState.State == PartitionActive {
					survivors = append(survivors, memberID)
				}
			}

			if !affected {
				continue
			}

			if len(survivors) == 0 {
				return nil, fmt.Errorf("partition %d has no active replica outside %v: %w", partitionID, uniqueSorted(memberIDs), ELastReplica)
			}

			survivors = uniqueSorted(survivors)
			operations = append(operations, PartitionForceReconfigureOperation{Member: survivors[0], Partition: partitionID, Members: survivors})
		}

		for _, memberID := range uniqueSorted(memberIDs) {
			if removed[memberID] {
				operations = append(operations, MemberRemoveOperation{Member: initiator, MemberToRemove: memberID})
			}
		}

		return operations, nil
	}
}

func JoinPartition(memberID MemberID, partitionID uint64, priority int) OperationsRequest {
	return Operations(PartitionJoinOperation{Member: memberID, Partition: partitionID, Priority: priority})
}

func LeavePartition(memberID MemberID, partitionID uint64) OperationsRequest {
	return Operations(PartitionLeaveOperation{Member: memberID, Partition: partitionID})
}

func ReconfigurePriority(memberID MemberID, partitionID uint64, priority int) OperationsRequest {
	return Operations(PartitionReconfigurePriorityOperation{Member: memberID, Partition: partitionID, Priority: priority})
}
