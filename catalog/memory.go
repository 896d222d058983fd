package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// MEMORY CATALOG + ROSTER (for testing/dev)
// =============================================================================

// Memory implements Catalog and Roster in memory.
type Memory struct {
	mu     sync.RWMutex
	items  map[ledger.ItemID]Item
	owners map[ownerKey]Owner
}

type ownerKey struct {
	Tier ledger.Tier
	ID   ledger.OwnerID
}

func NewMemory() *Memory {
	return &Memory{
		items:  make(map[ledger.ItemID]Item),
		owners: make(map[ownerKey]Owner),
	}
}

func (m *Memory) Item(_ context.Context, id ledger.ItemID) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (m *Memory) ItemExists(_ context.Context, id ledger.ItemID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok, nil
}

func (m *Memory) ListItems(_ context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDefault != items[j].IsDefault {
			return items[i].IsDefault
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (m *Memory) SaveItem(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.IsDefault {
		for id, other := range m.items {
			if other.IsDefault {
				other.IsDefault = false
				m.items[id] = other
			}
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *Memory) OwnerExists(_ context.Context, tier ledger.Tier, owner ledger.OwnerID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.owners[ownerKey{tier, owner}]
	return ok, nil
}

func (m *Memory) Owner(_ context.Context, tier ledger.Tier, id ledger.OwnerID) (Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[ownerKey{tier, id}]
	if !ok {
		return Owner{}, ErrOwnerNotFound
	}
	return owner, nil
}

func (m *Memory) ListOwners(_ context.Context, tier ledger.Tier) ([]Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var owners []Owner
	for k, o := range m.owners {
		if k.Tier == tier {
			owners = append(owners, o)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].Name < owners[j].Name })
	return owners, nil
}

func (m *Memory) SaveOwner(_ context.Context, owner Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[ownerKey{owner.Tier, owner.ID}] = owner
	return nil
}
