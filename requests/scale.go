package requests

import (
	"fmt"
	"sort"

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/topology"
)

// Owners assigns replicationFactor replicas of the partition at index
// partitionIndex by walking the broker ring starting at that index. The
// first owner gets the highest priority.
func Owners(brokers []MemberID, partitionIndex int, replicationFactor int) map[MemberID]int {
	owners := make(map[MemberID]int, replicationFactor)

	if len(brokers) == 0 {
		return owners
	}

	for i := 0; i < len(brokers) && len(owners) < replicationFactor; i++ {
		owners[brokers[(i+partitionIndex)%len(brokers)]] = replicationFactor - i
	}

	return owners
}

// Distribution computes the replica placement of every partition across
// brokers. partitionCount zero keeps the partitions of the current topology,
// otherwise partitions 1 to partitionCount are placed.
func Distribution(current *ClusterTopology, brokers []MemberID, partitionCount uint64, replicationFactor int) (map[uint64]map[MemberID]int, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required: %w", EInvalidRequest)
	}

	sortedBrokers := uniqueSorted(brokers)

	if replicationFactor < 1 || replicationFactor > len(sortedBrokers) {
		return nil, fmt.Errorf("replication factor %d must be between 1 and the number of brokers (%d): %w", replicationFactor, len(sortedBrokers), EInvalidRequest)
	}

	partitionIDs := current.PartitionIDs()

	if partitionCount != 0 {
		for _, partitionID := range partitionIDs {
			if partitionID == 0 || partitionID > partitionCount {
				return nil, fmt.Errorf("partition %d would be dropped, the partition count cannot be reduced: %w", partitionID, EInvalidRequest)
			}
		}

		partitionIDs = make([]uint64, 0, partitionCount)

		for partitionID := uint64(1); partitionID <= partitionCount; partitionID++ {
			partitionIDs = append(partitionIDs, partitionID)
		}
	}

	distribution := make(map[uint64]map[MemberID]int, len(partitionIDs))

	for i, partitionID := range partitionIDs {
		distribution[partitionID] = Owners(sortedBrokers, i, replicationFactor)
	}

	return distribution, nil
}

// Scale moves the cluster to the round robin distribution of partitions
// over brokers. New brokers join first, then replicas are added, priorities
// adjusted and surplus replicas removed, and finally brokers that are no
// longer listed leave. Adding replicas before removing any keeps every
// partition above the replica floor while it moves.
func Scale(brokers []MemberID, partitionCount uint64, replicationFactor int) OperationsRequest {
	return func(current *ClusterTopology) ([]Operation, error) {
		distribution, err := Distribution(current, brokers, partitionCount, replicationFactor)

		if err != nil {
			return nil, err
		}

		memberJoins, err := AddBrokers(uniqueSorted(brokers)...)(current)

		if err != nil {
			return nil, err
		}

		var partitionJoins, reconfigurations, partitionLeaves, memberLeaves []Operation

		partitionIDs := make([]uint64, 0, len(distribution))

		for partitionID, _ := range distribution {
			partitionIDs = append(partitionIDs, partitionID)
		}

		sort.Slice(partitionIDs, func(i, j int) bool { return partitionIDs[i] < partitionIDs[j] })

		for _, partitionID := range partitionIDs {
			owners := distribution[partitionID]
			replicas := current.PartitionReplicas(partitionID)

			for _, memberID := range sortedOwners(owners) {
				priority := owners[memberID]
				partitionState, ok := replicas[memberID]

				if !ok {
					partitionJoins = append(partitionJoins, PartitionJoinOperation{Member: memberID, Partition: partitionID, Priority: priority})
				} else if partitionState.Priority != priority {
					reconfigurations = append(reconfigurations, PartitionReconfigurePriorityOperation{Member: memberID, Partition: partitionID, Priority: priority})
				}
			}

			for _, memberID := range sortedReplicas(replicas) {
				if _, ok := owners[memberID]; !ok {
					partitionLeaves = append(partitionLeaves, PartitionLeaveOperation{Member: memberID, Partition: partitionID})
				}
			}
		}

		listed := make(map[MemberID]bool, len(brokers))

		for _, memberID := range brokers {
			listed[memberID] = true
		}

		for _, memberID := range current.MemberIDs() {
			if memberState, _ := current.Member(memberID); !listed[memberID] && memberState.State != MemberLeft {
				memberLeaves = append(memberLeaves, MemberLeaveOperation{Member: memberID})
			}
		}

		operations := make([]Operation, 0, len(memberJoins)+len(partitionJoins)+len(reconfigurations)+len(partitionLeaves)+len(memberLeaves))
		operations = append(operations, memberJoins...)
		operations = append(operations, partitionJoins...)
		operations = append(operations, reconfigurations...)
		operations = append(operations, partitionLeaves...)
		operations = append(operations, memberLeaves...)

		return operations, nil
	}
}

func uniqueSorted(memberIDs []MemberID) []MemberID {
	unique := make([]MemberID, 0, len(memberIDs))
	seen := make(map[MemberID]bool, len(memberIDs))

	for _, memberID := range memberIDs {
		if !seen[memberID] {
			seen[memberID] = true
			unique = append(unique, memberID)
		}
	}

	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	return unique
}

func sortedOwners(owners map[MemberID]int) []MemberID {
	memberIDs := make([]MemberID, 0, len(owners))

	for memberID, _ := range owners {
		memberIDs = append(memberIDs, memberID)
	}

	return uniqueSorted(memberIDs)
}

func sortedReplicas(replicas map[MemberID]PartitionState) []MemberID {
	memberIDs := make([]MemberID, 0, len(replicas))

	for memberID, _ := range replicas {
		memberIDs = append(memberIDs, memberID)
	}

	return uniqueSorted(memberIDs)
}
