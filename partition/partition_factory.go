package partition

import (
	. "github.com/PelionIoT/topologyd/topology"
)

type PartitionFactory interface {
	CreatePartition(memberID MemberID, partitionNumber uint64, replicaPriorities map[MemberID]int) Partition
}

type DefaultPartitionFactory struct {
}

func NewDefaultPartitionFactory() *DefaultPartitionFactory {
	return &DefaultPartitionFactory{}
}

func (partitionFactory *DefaultPartitionFactory) CreatePartition(memberID MemberID, partitionNumber uint64, replicaPriorities map[MemberID]int) Partition {
	return NewLocalPartition(memberID, partitionNumber, replicaPriorities)
}
