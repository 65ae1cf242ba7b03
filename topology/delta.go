package topology

import (
	"sort"
)

type TopologyDeltaType int

const (
	DeltaMemberAdd            TopologyDeltaType = iota
	DeltaMemberRemove         TopologyDeltaType = iota
	DeltaMemberStateChange    TopologyDeltaType = iota
	DeltaMemberGainPartition  TopologyDeltaType = iota
	DeltaMemberLosePartition  TopologyDeltaType = iota
	DeltaPartitionStateChange TopologyDeltaType = iota
)

func (deltaType TopologyDeltaType) String() string {
	switch deltaType {
	case DeltaMemberAdd:
		return "memberAdd"
	case DeltaMemberRemove:
		return "memberRemove"
	case DeltaMemberStateChange:
		return "memberStateChange"
	case DeltaMemberGainPartition:
		return "memberGainPartition"
	case DeltaMemberLosePartition:
		return "memberLosePartition"
	case DeltaPartitionStateChange:
		return "partitionStateChange"
	}

	return "unknown"
}

// TopologyDelta describes one difference between two snapshots. Partition
// and PartitionState are only set for partition deltas.
type TopologyDelta struct {
	Type           TopologyDeltaType
	Member         MemberID
	MemberState    MemberStateName
	Partition      uint64
	PartitionState PartitionState
}

// Diff lists what changed from before to after, ordered by member ID and
// then partition ID
func Diff(before, after *ClusterTopology) []TopologyDelta {
	deltas := make([]TopologyDelta, 0)
	memberIDs := make(map[MemberID]bool)

	for memberID, _ := range before.Members {
		memberIDs[memberID] = true
	}

	for memberID, _ := range after.Members {
		memberIDs[memberID] = true
	}

	sortedMemberIDs := make([]MemberID, 0, len(memberIDs))

	for memberID, _ := range memberIDs {
		sortedMemberIDs = append(sortedMemberIDs, memberID)
	}

	sort.Slice(sortedMemberIDs, func(i, j int) bool { return sortedMemberIDs[i] < sortedMemberIDs[j] })

	for _, memberID := range sortedMemberIDs {
		deltas = append(deltas, DiffMember(memberID, before, after)...)
	}

	return deltas
}

// DiffMember lists what changed for a single member
func DiffMember(memberID MemberID, before, after *ClusterTopology) []TopologyDelta {
	deltas := make([]TopologyDelta, 0)
	beforeState, wasPresent := before.Member(memberID)
	afterState, isPresent := after.Member(memberID)

	if !wasPresent {
		beforeState = UninitializedMember()
	}

	if !isPresent {
		afterState = UninitializedMember()
	}

	if !wasPresent && isPresent {
		deltas = append(deltas, TopologyDelta{Type: DeltaMemberAdd, Member: memberID, MemberState: afterState.State})
	} else if wasPresent && isPresent && beforeState.State != afterState.State {
		deltas = append(deltas, TopologyDelta{Type: DeltaMemberStateChange, Member: memberID, MemberState: afterState.State})
	}

	// find out which partitions have been lost or changed
	for _, partitionID := range beforeState.PartitionIDs() {
		beforePartition := beforeState.Partitions[partitionID]
		afterPartition, ok := afterState.Partitions[partitionID]

		if !ok {
			deltas = append(deltas, TopologyDelta{Type: DeltaMemberLosePartition, Member: memberID, MemberState: afterState.State, Partition: partitionID, PartitionState: beforePartition})

			continue
		}

		if afterPartition != beforePartition {
			deltas = append(deltas, TopologyDelta{Type: DeltaPartitionStateChange, Member: memberID, MemberState: afterState.State, Partition: partitionID, PartitionState: afterPartition})
		}
	}

	// find out which partitions have been gained
	for _, partitionID := range afterState.PartitionIDs() {
		if _, ok := beforeState.Partitions[partitionID]; !ok {
			deltas = append(deltas, TopologyDelta{Type: DeltaMemberGainPartition, Member: memberID, MemberState: afterState.State, Partition: partitionID, PartitionState: afterState.Partitions[partitionID]})
		}
	}

	if wasPresent && !isPresent {
		deltas = append(deltas, TopologyDelta{Type: DeltaMemberRemove, Member: memberID})
	}

	return deltas
}
