package routes

import (
	"time"

	. "github.com/PelionIoT/topologyd/changes"
	. "github.com/PelionIoT/topologyd/topology"
)

type ChangeResponse struct {
	ChangeID         uint64               `json:"changeId"`
	CurrentTopology  *ClusterTopology     `json:"currentTopology"`
	ExpectedTopology *ClusterTopology     `json:"expectedTopology"`
	PlannedChanges   []TransportOperation `json:"plannedChanges"`
}

func NewChangeResponse(result ChangeResult) ChangeResponse {
	plannedChanges := make([]TransportOperation, len(result.PlannedOperations))

	for i, operation := range result.PlannedOperations {
		plannedChanges[i] = ToTransportOperation(operation)
	}

	return ChangeResponse{
		ChangeID:         result.ChangeID,
		CurrentTopology:  result.CurrentTopology,
		ExpectedTopology: result.ExpectedTopology,
		PlannedChanges:   plannedChanges,
	}
}

type OperationStatusResponse struct {
	Operation   TransportOperation `json:"operation"`
	Completed   bool               `json:"completed"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

type ExecutionFailureResponse struct {
	Operation TransportOperation `json:"operation"`
	Error     string             `json:"error"`
	FailedAt  time.Time          `json:"failedAt"`
}

type ChangeStatusResponse struct {
	ChangeID    uint64                    `json:"changeId"`
	Status      ChangeStatus              `json:"status"`
	StartedAt   time.Time                 `json:"startedAt"`
	CompletedAt *time.Time                `json:"completedAt,omitempty"`
	Operations  []OperationStatusResponse `json:"operations,omitempty"`
	Failure     *ExecutionFailureResponse `json:"failure,omitempty"`
}

func NewChangeStatusResponse(report ChangeStatusReport) ChangeStatusResponse {
	response := ChangeStatusResponse{
		ChangeID:  report.ChangeID,
		Status:    report.Status,
		StartedAt: report.StartedAt,
	}

	if !report.CompletedAt.IsZero() {
		completedAt := report.CompletedAt
		response.CompletedAt = &completedAt
	}

	for _, operationStatus := range report.Operations {
		operationResponse := OperationStatusResponse{
			Operation: ToTransportOperation(operationStatus.Operation),
			Completed: operationStatus.Completed,
		}

		if operationStatus.Completed {
			completedAt := operationStatus.CompletedAt
			operationResponse.CompletedAt = &completedAt
		}

		response.Operations = append(response.Operations, operationResponse)
	}

	if report.Failure != nil {
		response.Failure = &ExecutionFailureResponse{
			Error:    report.Failure.Error,
			FailedAt: report.Failure.FailedAt,
		}

		if report.Failure.Operation != nil {
			response.Failure.Operation = ToTransportOperation(report.Failure.Operation)
		}
	}

	return response
}

type PriorityRequest struct {
	Priority *int `json:"priority"`
}

type ScaleRequest struct {
	Brokers []MemberID `json:"brokers"`
	// Zero keeps the current partitions
	PartitionCount    uint64 `json:"partitionCount"`
	ReplicationFactor int    `json:"replicationFactor"`
}

type ForceRemoveRequest struct {
	Brokers []MemberID `json:"brokers"`
}

type OperationsBody struct {
	Operations []TransportOperation `json:"operations"`
}
