package error

import (
	"encoding/json"
	"errors"
)

type DBerror struct {
	Msg       string `json:"message"`
	ErrorCode int    `json:"code"`
}

func (dbError DBerror) Error() string {
	return dbError.Msg
}

func (dbError DBerror) Code() int {
	return dbError.ErrorCode
}

func (dbError DBerror) JSON() []byte {
	json, _ := json.Marshal(dbError)

	return json
}

const (
	eSTORAGE                 = iota
	eREAD_BODY               = iota
	eINVALID_REQUEST         = iota
	eMEMBER_ALREADY_EXISTS   = iota
	eNO_SUCH_MEMBER          = iota
	eMEMBER_NOT_ACTIVE       = iota
	eMEMBER_HAS_PARTITIONS   = iota
	eINVALID_PRIORITY        = iota
	ePARTITION_NOT_ASSIGNED  = iota
	eINVALID_PARTITION_STATE = iota
	eLAST_REPLICA            = iota
	eUNKNOWN_OPERATION       = iota
	eCHANGE_IN_PROGRESS      = iota
	eTOPOLOGY_MODIFIED       = iota
	eTOPOLOGY_UNINITIALIZED  = iota
	eNO_SUCH_CHANGE          = iota
	eEXECUTION               = iota
	eCHANGE_NOT_STUCK        = iota
	eCORRUPTED               = iota
	eINVALID_REPLICA_SET     = iota
	eSELF_REMOVAL            = iota
)

var (
	EStorage               = DBerror{"The storage driver experienced an error", eSTORAGE}
	EReadBody              = DBerror{"Unable to read the request body", eREAD_BODY}
	EInvalidRequest        = DBerror{"The request was malformed", eINVALID_REQUEST}
	EMemberAlreadyExists   = DBerror{"The member is already part of the topology", eMEMBER_ALREADY_EXISTS}
	ENoSuchMember          = DBerror{"The member is not part of the topology", eNO_SUCH_MEMBER}
	EMemberNotActive       = DBerror{"The member is not active", eMEMBER_NOT_ACTIVE}
	EMemberHasPartitions   = DBerror{"The member still has partitions assigned", eMEMBER_HAS_PARTITIONS}
	EInvalidPriority       = DBerror{"Partition priority must not be negative", eINVALID_PRIORITY}
	EPartitionNotAssigned  = DBerror{"The partition is not assigned to the member", ePARTITION_NOT_ASSIGNED}
	EInvalidPartitionState = DBerror{"The partition replica is not in a state that allows this operation", eINVALID_PARTITION_STATE}
	ELastReplica           = DBerror{"The partition has only one replica", eLAST_REPLICA}
	EUnknownOperation      = DBerror{"Unknown topology change operation", eUNKNOWN_OPERATION}
	EChangeInProgress      = DBerror{"Operation not allowed: another topology change is in progress", eCHANGE_IN_PROGRESS}
	ETopologyModified      = DBerror{"The topology was modified concurrently. Retry the request", eTOPOLOGY_MODIFIED}
	ETopologyUninitialized = DBerror{"The topology has not been initialized", eTOPOLOGY_UNINITIALIZED}
	ENoSuchChange          = DBerror{"No such topology change", eNO_SUCH_CHANGE}
	EExecution             = DBerror{"A topology change operation failed to execute", eEXECUTION}
	EChangeNotStuck        = DBerror{"The topology change is not waiting on a failed operation", eCHANGE_NOT_STUCK}
	ECorrupted             = DBerror{"The storage medium is corrupted", eCORRUPTED}
	EInvalidReplicaSet     = DBerror{"The replica set must be a non-empty subset of the current replicas that includes the reconfiguring member", eINVALID_REPLICA_SET}
	ESelfRemoval           = DBerror{"A member cannot remove itself", eSELF_REMOVAL}
)

var validationErrors = []DBerror{
	EMemberAlreadyExists,
	ENoSuchMember,
	EMemberNotActive,
	EMemberHasPartitions,
	EInvalidPriority,
	EPartitionNotAssigned,
	EInvalidPartitionState,
	ELastReplica,
	EUnknownOperation,
	EInvalidReplicaSet,
	ESelfRemoval,
}

// IsValidationError reports whether err was produced by an operation's
// precondition checks. Validation errors are never retried.
func IsValidationError(err error) bool {
	for _, validationError := range validationErrors {
		if errors.Is(err, validationError) {
			return true
		}
	}

	return false
}

// IsRetryable reports whether the caller should resubmit the request
// against the now current topology.
func IsRetryable(err error) bool {
	return errors.Is(err, ETopologyModified)
}

// AsDBerror returns the DBerror wrapped by err, if any.
func AsDBerror(err error) (DBerror, bool) {
	var dbError DBerror

	if errors.As(err, &dbError) {
		return dbError, true
	}

	return DBerror{}, false
}
