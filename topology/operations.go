package topology

import (
	"encoding/json"
	"fmt"
)

type OperationType string

const (
	MemberJoinType                   OperationType = "memberJoin"
	MemberLeaveType                  OperationType = "memberLeave"
	PartitionJoinType                OperationType = "partitionJoin"
	PartitionLeaveType               OperationType = "partitionLeave"
	PartitionReconfigurePriorityType OperationType = "partitionReconfigurePriority"
	MemberRemoveType                 OperationType = "memberRemove"
	PartitionForceReconfigureType    OperationType = "partitionForceReconfigure"
)

// OperationTypes lists the member operation kinds. Each has its own applier.
var OperationTypes = []OperationType{
	MemberJoinType,
	MemberLeaveType,
	PartitionJoinType,
	PartitionLeaveType,
	PartitionReconfigurePriorityType,
}

// ClusterOperationTypes lists the operation kinds that change more than one
// member. They are used to recover from members that are gone for good.
var ClusterOperationTypes = []OperationType{
	MemberRemoveType,
	PartitionForceReconfigureType,
}

// Operation is a closed set. The only implementations are the operation
// structs declared in this file.
type Operation interface {
	// The member that carries out the operation. Except for the cluster
	// operations this is also the only member whose state changes.
	MemberID() MemberID
	Type() OperationType
	String() string
	isOperation()
}

type MemberJoinOperation struct {
	Member MemberID
}

type MemberLeaveOperation struct {
	Member MemberID
}

type PartitionJoinOperation struct {
	Member    MemberID
	Partition uint64
	Priority  int
}

type PartitionLeaveOperation struct {
	Member    MemberID
	Partition uint64
}

type PartitionReconfigurePriorityOperation struct {
	Member    MemberID
	Partition uint64
	Priority  int
}

// MemberRemoveOperation evicts MemberToRemove on behalf of Member. Unlike a
// member leave it does not need the evicted member to be reachable.
type MemberRemoveOperation struct {
	Member         MemberID
	MemberToRemove MemberID
}

// PartitionForceReconfigureOperation shrinks the replica set of a partition
// to Members, dropping every other replica without its cooperation. Member
// must be one of the remaining replicas.
type PartitionForceReconfigureOperation struct {
	Member    MemberID
	Partition uint64
	Members   []MemberID
}

// UnknownOperation stands in for an operation read from a snapshot written
// with an operation type this version does not know about.
type UnknownOperation struct {
	Member MemberID
	Kind   OperationType
}

func (op MemberJoinOperation) MemberID() MemberID { return op.Member }
func (op MemberJoinOperation) Type() OperationType { return MemberJoinType }
func (op MemberJoinOperation) isOperation()        {}
func (op MemberJoinOperation) String() string {
	return fmt.Sprintf("MemberJoin(member=%s)", op.Member)
}

func (op MemberLeaveOperation) MemberID() MemberID { return op.Member }
func (op MemberLeaveOperation) Type() OperationType { return MemberLeaveType }
func (op MemberLeaveOperation) isOperation()        {}
func (op MemberLeaveOperation) String() string {
	return fmt.Sprintf("MemberLeave(member=%s)", op.Member)
}

func (op PartitionJoinOperation) MemberID() MemberID { return op.Member }
func (op PartitionJoinOperation) Type() OperationType { return PartitionJoinType }
func (op PartitionJoinOperation) isOperation()        {}
func (op PartitionJoinOperation) String() string {
	return fmt.Sprintf("PartitionJoin(member=%s, partition=%d, priority=%d)", op.Member, op.Partition, op.Priority)
}

func (op PartitionLeaveOperation) MemberID() MemberID { return op.Member }
func (op PartitionLeaveOperation) Type() OperationType { return PartitionLeaveType }
func (op PartitionLeaveOperation) isOperation()        {}
func (op PartitionLeaveOperation) String() string {
	return fmt.Sprintf("PartitionLeave(member=%s, partition=%d)", op.Member, op.Partition)
}

func (op PartitionReconfigurePriorityOperation) MemberID() MemberID { return op.Member }
func (op PartitionReconfigurePriorityOperation) Type() OperationType {
	return PartitionReconfigurePriorityType
}
func (op PartitionReconfigurePriorityOperation) isOperation() {}
func (op PartitionReconfigurePriorityOperation) String() string {
	return fmt.Sprintf("PartitionReconfigurePriority(member=%s, partition=%d, priority=%d)", op.Member, op.Partition, op.Priority)
}

func (op MemberRemoveOperation) MemberID() MemberID { return op.Member }
func (op MemberRemoveOperation) Type() OperationType { return MemberRemoveType }
func (op MemberRemoveOperation) isOperation()        {}
func (op MemberRemoveOperation) String() string {
	return fmt.Sprintf("MemberRemove(member=%s, memberToRemove=%s)", op.Member, op.MemberToRemove)
}

func (op PartitionForceReconfigureOperation) MemberID() MemberID { return op.Member }
func (op PartitionForceReconfigureOperation) Type() OperationType {
	return PartitionForceReconfigureType
}
func (op PartitionForceReconfigureOperation) isOperation() {}
func (op PartitionForceReconfigureOperation) String() string {
	return fmt.Sprintf("PartitionForceReconfigure(member=%s, partition=%d, members=%v)", op.Member, op.Partition, op.Members)
}

func (op UnknownOperation) MemberID() MemberID { return op.Member }
func (op UnknownOperation) Type() OperationType { return op.Kind }
func (op UnknownOperation) isOperation()        {}
func (op UnknownOperation) String() string {
	return fmt.Sprintf("Unknown(type=%s, member=%s)", op.Kind, op.Member)
}

// TransportOperation is the tagged wire and storage form of an Operation
type TransportOperation struct {
	Type           OperationType `json:"type"`
	Member         MemberID      `json:"memberId"`
	Partition      uint64        `json:"partitionId,omitempty"`
	Priority       int           `json:"priority,omitempty"`
	MemberToRemove MemberID      `json:"memberToRemove,omitempty"`
	Members        []MemberID    `json:"members,omitempty"`
}

func (transportOperation TransportOperation) ToOperation() Operation {
	switch transportOperation.Type {
	case MemberJoinType:
		return MemberJoinOperation{Member: transportOperation.Member}
	case MemberLeaveType:
		return MemberLeaveOperation{Member: transportOperation.Member}
	case PartitionJoinType:
		return PartitionJoinOperation{Member: transportOperation.Member, Partition: transportOperation.Partition, Priority: transportOperation.Priority}
	case PartitionLeaveType:
		return PartitionLeaveOperation{Member: transportOperation.Member, Partition: transportOperation.Partition}
	case PartitionReconfigurePriorityType:
		return PartitionReconfigurePriorityOperation{Member: transportOperation.Member, Partition: transportOperation.Partition, Priority: transportOperation.Priority}
	case MemberRemoveType:
		return MemberRemoveOperation{Member: transportOperation.Member, MemberToRemove: transportOperation.MemberToRemove}
	case PartitionForceReconfigureType:
		members := make([]MemberID, len(transportOperation.Members))
		copy(members, transportOperation.Members)

		return PartitionForceReconfigureOperation{Member: transportOperation.Member, Partition: transportOperation.Partition, Members: members}
	}

	return UnknownOperation{Member: transportOperation.Member, Kind: transportOperation.Type}
}

func ToTransportOperation(operation Operation) TransportOperation {
	transportOperation := TransportOperation{Type: operation.Type(), Member: operation.MemberID()}

	switch op := operation.(type) {
	case PartitionJoinOperation:
		transportOperation.Partition = op.Partition
		transportOperation.Priority = op.Priority
	case PartitionLeaveOperation:
		transportOperation.Partition = op.Partition
	case PartitionReconfigurePriorityOperation:
		transportOperation.Partition = op.Partition
		transportOperation.Priority = op.Priority
	case MemberRemoveOperation:
		transportOperation.MemberToRemove = op.MemberToRemove
	case PartitionForceReconfigureOperation:
		transportOperation.Partition = op.Partition
		transportOperation.Members = op.Members
	}

	return transportOperation
}

// OperationList encodes each operation as a TransportOperation
type OperationList []Operation

func (operationList OperationList) MarshalJSON() ([]byte, error) {
	transportOperations := make([]TransportOperation, len(operationList))

	for i, operation := range operationList {
		transportOperations[i] = ToTransportOperation(operation)
	}

	return json.Marshal(transportOperations)
}

func (operationList *OperationList) UnmarshalJSON(data []byte) error {
	var transportOperations []TransportOperation

	if err := json.Unmarshal(data, &transportOperations); err != nil {
		return err
	}

	operations := make(OperationList, len(transportOperations))

	for i, transportOperation := range transportOperations {
		operations[i] = transportOperation.ToOperation()
	}

	*operationList = operations

	return nil
}
