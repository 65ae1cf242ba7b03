package topology

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	. "github.com/PelionIoT/topologyd/error"
)

// ClusterTopology is an immutable, versioned snapshot of the cluster. All
// mutators return a modified copy and leave the receiver untouched. The
// version is assigned by the topology store when a snapshot is committed.
type ClusterTopology struct {
	Version        uint64
	Members        map[MemberID]MemberState
	LastChange     *CompletedChange
	PendingChanges *ClusterChangePlan
}

func NewClusterTopology() *ClusterTopology {
	return &ClusterTopology{
		Version: 0,
		Members: map[MemberID]MemberState{},
	}
}

// An uninitialized topology has never been committed to a store
func (clusterTopology *ClusterTopology) IsUninitialized() bool {
	return clusterTopology.Version == 0
}

func (clusterTopology *ClusterTopology) Copy() *ClusterTopology {
	members := make(map[MemberID]MemberState, len(clusterTopology.Members))

	for memberID, memberState := range clusterTopology.Members {
		members[memberID] = memberState.Copy()
	}

	var lastChange *CompletedChange

	if clusterTopology.LastChange != nil {
		lastChangeCopy := *clusterTopology.LastChange
		lastChange = &lastChangeCopy
	}

	return &ClusterTopology{
		Version:        clusterTopology.Version,
		Members:        members,
		LastChange:     lastChange,
		PendingChanges: clusterTopology.PendingChanges.Copy(),
	}
}

func (clusterTopology *ClusterTopology) WithVersion(version uint64) *ClusterTopology {
	next := clusterTopology.Copy()
	next.Version = version

	return next
}

func (clusterTopology *ClusterTopology) HasPendingChanges() bool {
	return clusterTopology.PendingChanges != nil && clusterTopology.PendingChanges.HasPendingOperations()
}

func (clusterTopology *ClusterTopology) Member(memberID MemberID) (MemberState, bool) {
	memberState, ok := clusterTopology.Members[memberID]

	return memberState, ok
}

func (clusterTopology *ClusterTopology) HasMember(memberID MemberID) bool {
	_, ok := clusterTopology.Members[memberID]

	return ok
}

func (clusterTopology *ClusterTopology) AddMember(memberID MemberID, memberState MemberState) *ClusterTopology {
	next := clusterTopology.Copy()
	next.Members[memberID] = memberState.Copy()

	return next
}

// UpdateMember applies transition to the member's state. A member that is not
// part of the topology is passed to the transition as UNINITIALIZED and is
// only added if the transition moves it out of that state.
func (clusterTopology *ClusterTopology) UpdateMember(memberID MemberID, transition MemberStateTransition) *ClusterTopology {
	memberState, ok := clusterTopology.Members[memberID]

	if !ok {
		memberState = UninitializedMember()
	}

	nextMemberState := transition(memberState.Copy())
	next := clusterTopology.Copy()

	if nextMemberState.State == MemberUninitialized {
		delete(next.Members, memberID)
	} else {
		next.Members[memberID] = nextMemberState
	}

	return next
}

// UpdateMemberAt is UpdateMember for a change that is being committed. A
// member the transition changes gets its version bumped and is stamped with
// updatedAt.
func (clusterTopology *ClusterTopology) UpdateMemberAt(memberID MemberID, transition MemberStateTransition, updatedAt time.Time) *ClusterTopology {
	return clusterTopology.UpdateMember(memberID, func(memberState MemberState) MemberState {
		nextMemberState := transition(memberState.Copy())

		if nextMemberState.State != MemberUninitialized && !nextMemberState.Equals(memberState) {
			nextMemberState.Version = memberState.Version + 1
			nextMemberState.LastUpdated = updatedAt
		}

		return nextMemberState
	})
}

// TopologyTransition marks the intent or the completion of an operation that
// may change several members
type TopologyTransition func(clusterTopology *ClusterTopology, updatedAt time.Time) *ClusterTopology

// ForMember scopes a member transition to memberID
func ForMember(memberID MemberID, transition MemberStateTransition) TopologyTransition {
	return func(clusterTopology *ClusterTopology, updatedAt time.Time) *ClusterTopology {
		return clusterTopology.UpdateMemberAt(memberID, transition, updatedAt)
	}
}

func TopologyIdentity(clusterTopology *ClusterTopology, updatedAt time.Time) *ClusterTopology {
	return clusterTopology
}

func (clusterTopology *ClusterTopology) MemberIDs() []MemberID {
	memberIDs := make([]MemberID, 0, len(clusterTopology.Members))

	for memberID, _ := range clusterTopology.Members {
		memberIDs = append(memberIDs, memberID)
	}

	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	return memberIDs
}

// PartitionIDs lists every partition replicated by at least one member
func (clusterTopology *ClusterTopology) PartitionIDs() []uint64 {
	partitionSet := make(map[uint64]bool)

	for _, memberState := range clusterTopology.Members {
		for partitionID, _ := range memberState.Partitions {
			partitionSet[partitionID] = true
		}
	}

	partitionIDs := make([]uint64, 0, len(partitionSet))

	for partitionID, _ := range partitionSet {
		partitionIDs = append(partitionIDs, partitionID)
	}

	sort.Slice(partitionIDs, func(i, j int) bool { return partitionIDs[i] < partitionIDs[j] })

	return partitionIDs
}

// PartitionReplicas maps each member replicating partitionID to its replica state
func (clusterTopology *ClusterTopology) PartitionReplicas(partitionID uint64) map[MemberID]PartitionState {
	replicas := make(map[MemberID]PartitionState)

	for memberID, memberState := range clusterTopology.Members {
		if partitionState, ok := memberState.Partitions[partitionID]; ok {
			replicas[memberID] = partitionState
		}
	}

	return replicas
}

func (clusterTopology *ClusterTopology) ReplicaCount(partitionID uint64) int {
	return len(clusterTopology.PartitionReplicas(partitionID))
}

// StartChange records operations as the pending change set with the given
// id. Only one change set may be pending at a time.
func (clusterTopology *ClusterTopology) StartChange(changeID uint64, startedAt time.Time, operations []Operation) (*ClusterTopology, error) {
	if clusterTopology.HasPendingChanges() {
		return nil, fmt.Errorf("change %d is still pending: %w", clusterTopology.PendingChanges.ID, EChangeInProgress)
	}

	next := clusterTopology.Copy()
	next.PendingChanges = NewClusterChangePlan(changeID, startedAt, operations)

	return next, nil
}

func (clusterTopology *ClusterTopology) NextPendingOperation() (Operation, bool) {
	if clusterTopology.PendingChanges == nil {
		return nil, false
	}

	return clusterTopology.PendingChanges.NextOperation()
}

// AdvanceChange applies the completion transition of the head pending
// operation to its member and pops it. When the last operation is popped the
// change set is recorded as completed.
func (clusterTopology *ClusterTopology) AdvanceChange(transition MemberStateTransition, completedAt time.Time) *ClusterTopology {
	operation, ok := clusterTopology.NextPendingOperation()

	if !ok {
		return clusterTopology.Copy()
	}

	return clusterTopology.AdvanceChangeWith(ForMember(operation.MemberID(), transition), completedAt)
}

// AdvanceChangeWith is AdvanceChange for a completion that may change
// several members
func (clusterTopology *ClusterTopology) AdvanceChangeWith(transition TopologyTransition, completedAt time.Time) *ClusterTopology {
	if _, ok := clusterTopology.NextPendingOperation(); !ok {
		return clusterTopology.Copy()
	}

	next := transition(clusterTopology, completedAt).Copy()
	next.PendingChanges = next.PendingChanges.Advance(completedAt)

	if !next.PendingChanges.HasPendingOperations() {
		next.LastChange = &CompletedChange{
			ID:          next.PendingChanges.ID,
			Status:      ChangeCompleted,
			StartedAt:   next.PendingChanges.StartedAt,
			CompletedAt: completedAt,
		}
		next.PendingChanges = nil
	}

	return next
}

// RecordIntent returns intended, the topology with the intent of the head
// pending operation applied, with the states the intent replaced saved on the
// pending change. States saved by an earlier attempt of the same operation
// are kept.
func (clusterTopology *ClusterTopology) RecordIntent(intended *ClusterTopology) *ClusterTopology {
	next := intended.Copy()

	if next.PendingChanges == nil {
		return next
	}

	rollback := make(map[MemberID]MemberState)

	for memberID, memberState := range next.PendingChanges.Rollback {
		rollback[memberID] = memberState
	}

	memberIDs := append(clusterTopology.MemberIDs(), intended.MemberIDs()...)

	for _, memberID := range memberIDs {
		if _, ok := rollback[memberID]; ok {
			continue
		}

		before, ok := clusterTopology.Member(memberID)

		if !ok {
			before = UninitializedMember()
		}

		after, ok := intended.Member(memberID)

		if !ok {
			after = UninitializedMember()
		}

		if !before.Equals(after) {
			rollback[memberID] = before.Copy()
		}
	}

	if len(rollback) != 0 {
		next.PendingChanges.Rollback = rollback
	}

	return next
}

// CancelChange drops the remaining operations of the pending change.
// Operations that already completed keep their effect. The recorded intent
// of an operation that did not complete is rolled back.
func (clusterTopology *ClusterTopology) CancelChange(changeID uint64, cancelledAt time.Time) (*ClusterTopology, error) {
	if !clusterTopology.HasPendingChanges() || clusterTopology.PendingChanges.ID != changeID {
		return nil, fmt.Errorf("change %d is not pending: %w", changeID, ENoSuchChange)
	}

	next := clusterTopology.Copy()

	for memberID, memberState := range clusterTopology.PendingChanges.Rollback {
		if memberState.State == MemberUninitialized {
			delete(next.Members, memberID)

			continue
		}

		restored := memberState.Copy()
		restored.LastUpdated = cancelledAt

		if current, ok := next.Members[memberID]; ok {
			restored.Version = current.Version + 1
		}

		next.Members[memberID] = restored
	}

	next.LastChange = &CompletedChange{
		ID:          next.PendingChanges.ID,
		Status:      ChangeCancelled,
		StartedAt:   next.PendingChanges.StartedAt,
		CompletedAt: cancelledAt,
	}
	next.PendingChanges = nil

	return next, nil
}

// HasCompletedChange reports whether the change set started at changeID has
// finished, that is no change at or before that version is still pending.
func (clusterTopology *ClusterTopology) HasCompletedChange(changeID uint64) bool {
	if clusterTopology.HasPendingChanges() && clusterTopology.PendingChanges.ID <= changeID {
		return false
	}

	return clusterTopology.Version >= changeID
}

// HasSameMembers compares only member and partition placement, ignoring
// version and change metadata
func (clusterTopology *ClusterTopology) HasSameMembers(other *ClusterTopology) bool {
	if len(clusterTopology.Members) != len(other.Members) {
		return false
	}

	for memberID, memberState := range clusterTopology.Members {
		otherMemberState, ok := other.Members[memberID]

		if !ok || !memberState.Equals(otherMemberState) {
			return false
		}
	}

	return true
}

type transportClusterTopology struct {
	Version        uint64                      `json:"version"`
	Members        map[MemberID]MemberState    `json:"members"`
	LastChange     *CompletedChange            `json:"lastChange,omitempty"`
	PendingChanges *transportClusterChangePlan `json:"pendingChanges,omitempty"`
}

func (clusterTopology *ClusterTopology) MarshalJSON() ([]byte, error) {
	members := clusterTopology.Members

	if members == nil {
		members = map[MemberID]MemberState{}
	}

	return json.Marshal(transportClusterTopology{
		Version:        clusterTopology.Version,
		Members:        members,
		LastChange:     clusterTopology.LastChange,
		PendingChanges: clusterTopology.PendingChanges.toTransport(),
	})
}

func (clusterTopology *ClusterTopology) UnmarshalJSON(data []byte) error {
	var transportTopology transportClusterTopology

	if err := json.Unmarshal(data, &transportTopology); err != nil {
		return err
	}

	members := make(map[MemberID]MemberState, len(transportTopology.Members))

	for memberID, memberState := range transportTopology.Members {
		members[memberID] = memberState.Copy()
	}

	*clusterTopology = ClusterTopology{
		Version:        transportTopology.Version,
		Members:        members,
		LastChange:     transportTopology.LastChange,
		PendingChanges: transportTopology.PendingChanges.toPlan(),
	}

	return nil
}

func (clusterTopology *ClusterTopology) Snapshot() ([]byte, error) {
	return json.Marshal(clusterTopology)
}

func (clusterTopology *ClusterTopology) Recover(snapshot []byte) error {
	var recovered ClusterTopology

	if err := json.Unmarshal(snapshot, &recovered); err != nil {
		return err
	}

	*clusterTopology = recovered

	return nil
}
