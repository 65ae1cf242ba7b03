package topology

import (
	"time"
)

type ChangeStatus string

const (
	ChangeInProgress ChangeStatus = "IN_PROGRESS"
	ChangeCompleted  ChangeStatus = "COMPLETED"
	ChangeCancelled  ChangeStatus = "CANCELLED"
	// Only reported for a pending change whose current operation failed.
	// The stored plan stays IN_PROGRESS until it is retried or cancelled.
	ChangeFailed ChangeStatus = "FAILED"
)

type CompletedOperation struct {
	Operation   Operation
	CompletedAt time.Time
}

type transportCompletedOperation struct {
	Operation   TransportOperation `json:"operation"`
	CompletedAt time.Time          `json:"completedAt"`
}

// ClusterChangePlan is the in-flight change set. Pending operations are
// applied strictly in order; the head is removed only once its completion
// has been persisted.
type ClusterChangePlan struct {
	ID uint64
	// Version counts the operations completed so far
	Version             uint64
	StartedAt           time.Time
	Status              ChangeStatus
	PendingOperations   OperationList
	CompletedOperations []CompletedOperation
	// Rollback holds the member states the intent of the head operation
	// replaced. A member that did not exist is saved as UNINITIALIZED.
	Rollback map[MemberID]MemberState
}

func NewClusterChangePlan(id uint64, startedAt time.Time, operations []Operation) *ClusterChangePlan {
	pendingOperations := make(OperationList, len(operations))
	copy(pendingOperations, operations)

	return &ClusterChangePlan{
		ID:                  id,
		StartedAt:           startedAt,
		Status:              ChangeInProgress,
		PendingOperations:   pendingOperations,
		CompletedOperations: []CompletedOperation{},
	}
}

func (plan *ClusterChangePlan) HasPendingOperations() bool {
	return len(plan.PendingOperations) > 0
}

func (plan *ClusterChangePlan) NextOperation() (Operation, bool) {
	if len(plan.PendingOperations) == 0 {
		return nil, false
	}

	return plan.PendingOperations[0], true
}

// Advance returns a copy of the plan with the head operation moved to the
// completed list
func (plan *ClusterChangePlan) Advance(completedAt time.Time) *ClusterChangePlan {
	next := plan.Copy()

	if len(next.PendingOperations) == 0 {
		return next
	}

	next.CompletedOperations = append(next.CompletedOperations, CompletedOperation{Operation: next.PendingOperations[0], CompletedAt: completedAt})
	next.PendingOperations = next.PendingOperations[1:]
	next.Version++
	next.Rollback = nil

	return next
}

func (plan *ClusterChangePlan) Copy() *ClusterChangePlan {
	if plan == nil {
		return nil
	}

	pendingOperations := make(OperationList, len(plan.PendingOperations))
	completedOperations := make([]CompletedOperation, len(plan.CompletedOperations))

	copy(pendingOperations, plan.PendingOperations)
	copy(completedOperations, plan.CompletedOperations)

	return &ClusterChangePlan{
		ID:                  plan.ID,
		Version:             plan.Version,
		StartedAt:           plan.StartedAt,
		Status:              plan.Status,
		PendingOperations:   pendingOperations,
		CompletedOperations: completedOperations,
		Rollback:            copyMemberStates(plan.Rollback),
	}
}

func copyMemberStates(memberStates map[MemberID]MemberState) map[MemberID]MemberState {
	if memberStates == nil {
		return nil
	}

	copied := make(map[MemberID]MemberState, len(memberStates))

	for memberID, memberState := range memberStates {
		copied[memberID] = memberState.Copy()
	}

	return copied
}

type transportClusterChangePlan struct {
	ID                  uint64                        `json:"id"`
	Version             uint64                        `json:"version"`
	StartedAt           time.Time                     `json:"startedAt"`
	Status              ChangeStatus                  `json:"status"`
	PendingOperations   OperationList                 `json:"pendingOperations"`
	CompletedOperations []transportCompletedOperation `json:"completedOperations"`
	Rollback            map[MemberID]MemberState      `json:"rollback,omitempty"`
}

func (plan *ClusterChangePlan) toTransport() *transportClusterChangePlan {
	if plan == nil {
		return nil
	}

	completedOperations := make([]transportCompletedOperation, len(plan.CompletedOperations))

	for i, completedOperation := range plan.CompletedOperations {
		completedOperations[i] = transportCompletedOperation{
			Operation:   ToTransportOperation(completedOperation.Operation),
			CompletedAt: completedOperation.CompletedAt,
		}
	}

	pendingOperations := plan.PendingOperations

	if pendingOperations == nil {
		pendingOperations = OperationList{}
	}

	return &transportClusterChangePlan{
		ID:                  plan.ID,
		Version:             plan.Version,
		StartedAt:           plan.StartedAt,
		Status:              plan.Status,
		PendingOperations:   pendingOperations,
		CompletedOperations: completedOperations,
		Rollback:            plan.Rollback,
	}
}

func (transportPlan *transportClusterChangePlan) toPlan() *ClusterChangePlan {
	if transportPlan == nil {
		return nil
	}

	completedOperations := make([]CompletedOperation, len(transportPlan.CompletedOperations))

	for i, completedOperation := range transportPlan.CompletedOperations {
		completedOperations[i] = CompletedOperation{
			Operation:   completedOperation.Operation.ToOperation(),
			CompletedAt: completedOperation.CompletedAt,
		}
	}

	pendingOperations := transportPlan.PendingOperations

	if pendingOperations == nil {
		pendingOperations = OperationList{}
	}

	return &ClusterChangePlan{
		ID:                  transportPlan.ID,
		Version:             transportPlan.Version,
		StartedAt:           transportPlan.StartedAt,
		Status:              transportPlan.Status,
		PendingOperations:   pendingOperations,
		CompletedOperations: completedOperations,
		Rollback:            copyMemberStates(transportPlan.Rollback),
	}
}

// CompletedChange records how the most recent change set ended
type CompletedChange struct {
	ID          uint64       `json:"id"`
	Status      ChangeStatus `json:"status"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt time.Time    `json:"completedAt"`
}
