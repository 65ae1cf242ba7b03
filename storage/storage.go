package storage

import "sort"

const (
	PUT = iota
	DEL = iota
)

type StorageDriver interface {
	Open() error
	Close() error
	Recover() error
	Get([][]byte) ([][]byte, error)
	Batch(*Batch) error
}

type Op struct {
	OpType  int    `json:"type"`
	OpKey   []byte `json:"key"`
	OpValue []byte `json:"value"`
}

func (o *Op) IsDelete() bool {
	return o.OpType == DEL
}

func (o *Op) IsPut() bool {
	return o.OpType == PUT
}

func (o *Op) Key() []byte {
	return o.OpKey
}

func (o *Op) Value() []byte {
	return o.OpValue
}

type Batch struct {
	BatchOps map[string]Op `json:"ops"`
}

func NewBatch() *Batch {
	return &Batch{make(map[string]Op)}
}

func (batch *Batch) Size() int {
	return len(batch.BatchOps)
}

func (batch *Batch) Put(key []byte, value []byte) *Batch {
	batch.BatchOps[string(key)] = Op{PUT, key, value}

	return batch
}

func (batch *Batch) Delete(key []byte) *Batch {
	batch.BatchOps[string(key)] = Op{DEL, key, nil}

	return batch
}

func (batch *Batch) Ops() map[string]Op {
	return batch.BatchOps
}

// SortedOps lists the batch's operations ordered by key
func (batch *Batch) SortedOps() []Op {
	opList := make([]Op, 0, len(batch.BatchOps))

	for _, op := range batch.BatchOps {
		opList = append(opList, op)
	}

	sort.Slice(opList, func(i, j int) bool { return string(opList[i].OpKey) < string(opList[j].OpKey) })

	return opList
}
