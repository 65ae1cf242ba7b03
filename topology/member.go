package topology

import (
	"sort"
	"time"
)

type MemberID string

type MemberStateName string

const (
	MemberUninitialized MemberStateName = "UNINITIALIZED"
	MemberJoining       MemberStateName = "JOINING"
	MemberActive        MemberStateName = "ACTIVE"
	MemberLeaving       MemberStateName = "LEAVING"
	MemberLeft          MemberStateName = "LEFT"
)

type PartitionStateName string

const (
	PartitionJoining PartitionStateName = "JOINING"
	PartitionActive  PartitionStateName = "ACTIVE"
	PartitionLeaving PartitionStateName = "LEAVING"
)

type PartitionState struct {
	State PartitionStateName `json:"state"`
	// Used to rank replicas when electing a leader. Higher is preferred
	Priority int `json:"priority"`
}

func JoiningPartition(priority int) PartitionState {
	return PartitionState{State: PartitionJoining, Priority: priority}
}

func ActivePartition(priority int) PartitionState {
	return PartitionState{State: PartitionActive, Priority: priority}
}

func (partitionState PartitionState) ToActive() PartitionState {
	return PartitionState{State: PartitionActive, Priority: partitionState.Priority}
}

func (partitionState PartitionState) ToLeaving() PartitionState {
	return PartitionState{State: PartitionLeaving, Priority: partitionState.Priority}
}

func (partitionState PartitionState) WithPriority(priority int) PartitionState {
	return PartitionState{State: partitionState.State, Priority: priority}
}

// MemberState is a value type. Every transition returns a new MemberState
// with its own copy of the partition map.
type MemberState struct {
	State      MemberStateName           `json:"state"`
	Partitions map[uint64]PartitionState `json:"partitions"`
	// Version counts the committed changes to this member. Together with
	// LastUpdated it is only maintained by ClusterTopology.UpdateMemberAt.
	Version     uint64    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// UninitializedMember is what a member transition receives when the member
// is not yet part of the topology.
func UninitializedMember() MemberState {
	return MemberState{State: MemberUninitialized, Partitions: map[uint64]PartitionState{}}
}

func NewMemberState(state MemberStateName, partitions map[uint64]PartitionState) MemberState {
	memberState := MemberState{State: state, Partitions: make(map[uint64]PartitionState, len(partitions))}

	for partitionID, partitionState := range partitions {
		memberState.Partitions[partitionID] = partitionState
	}

	return memberState
}

func (memberState MemberState) Copy() MemberState {
	return memberState.withState(memberState.State)
}

func (memberState MemberState) withState(state MemberStateName) MemberState {
	next := NewMemberState(state, memberState.Partitions)
	next.Version = memberState.Version
	next.LastUpdated = memberState.LastUpdated

	return next
}

func (memberState MemberState) ToJoining() MemberState {
	return memberState.withState(MemberJoining)
}

func (memberState MemberState) ToActive() MemberState {
	return memberState.withState(MemberActive)
}

func (memberState MemberState) ToLeaving() MemberState {
	return memberState.withState(MemberLeaving)
}

func (memberState MemberState) ToLeft() MemberState {
	return memberState.withState(MemberLeft)
}

func (memberState MemberState) HasPartition(partitionID uint64) bool {
	_, ok := memberState.Partitions[partitionID]

	return ok
}

func (memberState MemberState) Partition(partitionID uint64) (PartitionState, bool) {
	partitionState, ok := memberState.Partitions[partitionID]

	return partitionState, ok
}

func (memberState MemberState) AddPartition(partitionID uint64, partitionState PartitionState) MemberState {
	next := memberState.Copy()
	next.Partitions[partitionID] = partitionState

	return next
}

// UpdatePartition applies update to the partition if the member has it.
// Otherwise the member state is returned unchanged.
func (memberState MemberState) UpdatePartition(partitionID uint64, update func(PartitionState) PartitionState) MemberState {
	partitionState, ok := memberState.Partitions[partitionID]

	if !ok {
		return memberState
	}

	next := memberState.Copy()
	next.Partitions[partitionID] = update(partitionState)

	return next
}

func (memberState MemberState) RemovePartition(partitionID uint64) MemberState {
	next := memberState.Copy()
	delete(next.Partitions, partitionID)

	return next
}

func (memberState MemberState) PartitionIDs() []uint64 {
	partitionIDs := make([]uint64, 0, len(memberState.Partitions))

	for partitionID, _ := range memberState.Partitions {
		partitionIDs = append(partitionIDs, partitionID)
	}

	sort.Slice(partitionIDs, func(i, j int) bool { return partitionIDs[i] < partitionIDs[j] })

	return partitionIDs
}

// Equals compares state and partitions. Version and LastUpdated are ignored.
func (memberState MemberState) Equals(other MemberState) bool {
	if memberState.State != other.State || len(memberState.Partitions) != len(other.Partitions) {
		return false
	}

	for partitionID, partitionState := range memberState.Partitions {
		otherPartitionState, ok := other.Partitions[partitionID]

		if !ok || otherPartitionState != partitionState {
			return false
		}
	}

	return true
}

// MemberStateTransition marks the intent or the completion of an operation
// on a single member.
type MemberStateTransition func(MemberState) MemberState

// Identity is the transition returned when the member already reflects an
// operation's intent.
func Identity(memberState MemberState) MemberState {
	return memberState
}
