package partition

import (
	"context"
	"sync"

	. "github.com/PelionIoT/topologyd/logging"
	. "github.com/PelionIoT/topologyd/topology"
)

// LocalPartition tracks the lifecycle and election priority of a replica
// hosted in this process
type LocalPartition struct {
	lock              sync.Mutex
	memberID          MemberID
	partitionNumber   uint64
	replicaPriorities map[MemberID]int
	running           bool
}

func NewLocalPartition(memberID MemberID, partitionNumber uint64, replicaPriorities map[MemberID]int) *LocalPartition {
	localPartition := &LocalPartition{
		memberID:        memberID,
		partitionNumber: partitionNumber,
	}

	localPartition.SetReplicaPriorities(replicaPriorities)

	return localPartition
}

func (localPartition *LocalPartition) Partition() uint64 {
	return localPartition.partitionNumber
}

func (localPartition *LocalPartition) Member() MemberID {
	return localPartition.memberID
}

func (localPartition *LocalPartition) Priority() int {
	localPartition.lock.Lock()
	defer localPartition.lock.Unlock()

	return localPartition.replicaPriorities[localPartition.memberID]
}

func (localPartition *LocalPartition) SetPriority(priority int) {
	localPartition.lock.Lock()
	defer localPartition.lock.Unlock()

	localPartition.replicaPriorities[localPartition.memberID] = priority
}

func (localPartition *LocalPartition) ReplicaPriorities() map[MemberID]int {
	localPartition.lock.Lock()
	defer localPartition.lock.Unlock()

	replicaPriorities := make(map[MemberID]int, len(localPartition.replicaPriorities))

	for memberID, priority := range localPartition.replicaPriorities {
		replicaPriorities[memberID] = priority
	}

	return replicaPriorities
}

func (localPartition *LocalPartition) SetReplicaPriorities(replicaPriorities map[MemberID]int) {
	localPartition.lock.Lock()
	defer localPartition.lock.Unlock()

	localPartition.replicaPriorities = make(map[MemberID]int, len(replicaPriorities))

	for memberID, priority := range replicaPriorities {
		localPartition.replicaPriorities[memberID] = priority
	}
}

func (localPartition *LocalPartition) Running() bool {
	localPartition.lock.Lock()
	defer localPartition.lock.Unlock()

	return localPartition.running
}

func (localPartition *LocalPartition) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	localPartition.lock.Lock()
	defer localPartition.lock.Unlock()

	if !localPartition.running {
		Log.Infof("Starting replica of partition %d on member %s with priority %d", localPartition.partitionNumber, localPartition.memberID, localPartition.replicaPriorities[localPartition.memberID])
	}

	localPartition.running = true

	return nil
}

func (localPartition *LocalPartition) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	localPartition.lock.Lock()
	defer localPartition.lock.Unlock()

	if localPartition.running {
		Log.Infof("Stopping replica of partition %d on member %s", localPartition.partitionNumber, localPartition.memberID)
	}

	localPartition.running = false

	return nil
}
