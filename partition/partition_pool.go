package partition

import (
	"sort"
	"sync"

	. "github.com/PelionIoT/topologyd/topology"
)

type PartitionPool interface {
	Add(partition Partition)
	Remove(memberID MemberID, partitionNumber uint64)
	Get(memberID MemberID, partitionNumber uint64) Partition
	// Hosted lists the partitions hosted by memberID in ascending order
	Hosted(memberID MemberID) []Partition
	// Replicas lists the replicas of a partition ordered by member
	Replicas(partitionNumber uint64) []Partition
}

type partitionKey struct {
	memberID        MemberID
	partitionNumber uint64
}

type DefaultPartitionPool struct {
	lock       sync.Mutex
	partitions map[partitionKey]Partition
}

func NewDefaultPartitionPool() *DefaultPartitionPool {
	return &DefaultPartitionPool{
		partitions: make(map[partitionKey]Partition),
	}
}

func (partitionPool *DefaultPartitionPool) Add(partition Partition) {
	partitionPool.lock.Lock()
	defer partitionPool.lock.Unlock()

	partitionPool.partitions[partitionKey{partition.Member(), partition.Partition()}] = partition
}

func (partitionPool *DefaultPartitionPool) Remove(memberID MemberID, partitionNumber uint64) {
	partitionPool.lock.Lock()
	defer partitionPool.lock.Unlock()

	delete(partitionPool.partitions, partitionKey{memberID, partitionNumber})
}

func (partitionPool *DefaultPartitionPool) Get(memberID MemberID, partitionNumber uint64) Partition {
	partitionPool.lock.Lock()
	defer partitionPool.lock.Unlock()

	return partitionPool.partitions[partitionKey{memberID, partitionNumber}]
}

func (partitionPool *DefaultPartitionPool) Hosted(memberID MemberID) []Partition {
	partitionPool.lock.Lock()
	defer partitionPool.lock.Unlock()

	hosted := make([]Partition, 0)

	for key, partition := range partitionPool.partitions {
		if key.memberID == memberID {
			hosted = append(hosted, partition)
		}
	}

	sort.Slice(hosted, func(i, j int) bool { return hosted[i].Partition() < hosted[j].Partition() })

	return hosted
}

func (partitionPool *DefaultPartitionPool) Replicas(partitionNumber uint64) []Partition {
	partitionPool.lock.Lock()
	defer partitionPool.lock.Unlock()

	replicas := make([]Partition, 0)

	for key, partition := range partitionPool.partitions {
		if key.partitionNumber == partitionNumber {
			replicas = append(replicas, partition)
		}
	}

	sort.Slice(replicas, func(i, j int) bool { return replicas[i].Member() < replicas[j].Member() })

	return replicas
}
