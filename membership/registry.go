package membership

import (
	"sort"
	"sync"
	"time"

	. "github.com/PelionIoT/topologyd/topology"
)

type MemberRegistry interface {
	Add(memberID MemberID)
	Remove(memberID MemberID)
	Has(memberID MemberID) bool
	Members() []MemberID
}

// DefaultMemberRegistry records the brokers admitted to the cluster and
// when they were admitted
type DefaultMemberRegistry struct {
	lock    sync.Mutex
	members map[MemberID]time.Time
}

func NewDefaultMemberRegistry() *DefaultMemberRegistry {
	return &DefaultMemberRegistry{
		members: make(map[MemberID]time.Time),
	}
}

func (registry *DefaultMemberRegistry) Add(memberID MemberID) {
	registry.lock.Lock()
	defer registry.lock.Unlock()

	if _, ok := registry.members[memberID]; !ok {
		registry.members[memberID] = time.Now()
	}
}

func (registry *DefaultMemberRegistry) Remove(memberID MemberID) {
	registry.lock.Lock()
	defer registry.lock.Unlock()

	delete(registry.members, memberID)
}

func (registry *DefaultMemberRegistry) Has(memberID MemberID) bool {
	registry.lock.Lock()
	defer registry.lock.Unlock()

	_, ok := registry.members[memberID]

	return ok
}

func (registry *DefaultMemberRegistry) Members() []MemberID {
	registry.lock.Lock()
	defer registry.lock.Unlock()

	memberIDs := make([]MemberID, 0, len(registry.members))

	for memberID, _ := range registry.members {
		memberIDs = append(memberIDs, memberID)
	}

	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	return memberIDs
}
