/*
Package catalog holds the reference data the ledger engine validates
against: the medicine catalog and the owner rosters (health centers,
schools, students).

The engine only consumes existence checks; the richer read/write surface
here backs the catalog management endpoints. Items are immutable from the
ledger's point of view — balances and transactions reference them, never
own them.
*/
package catalog

import (
	"context"
	"errors"

	"github.com/warp/stock-ledger/ledger"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrOwnerNotFound = errors.New("owner not found")
)

// Item is one medicine in the catalog. IsDefault pre-selects the medicine
// in entry forms; at most one item should carry it.
type Item struct {
	ID        ledger.ItemID
	Name      string
	Category  string
	Unit      string // e.g. "tablet", "botol", "strip"
	IsDefault bool
}

// Catalog is the item reference store.
type Catalog interface {
	// Item returns one item, or ErrItemNotFound.
	Item(ctx context.Context, id ledger.ItemID) (Item, error)

	// ItemExists satisfies ledger.ItemCatalog.
	ItemExists(ctx context.Context, id ledger.ItemID) (bool, error)

	// ListItems returns all items, default item first, then by name.
	ListItems(ctx context.Context) ([]Item, error)

	// SaveItem inserts or updates an item. Setting IsDefault clears the
	// flag on every other item.
	SaveItem(ctx context.Context, item Item) error
}

// Owner is one roster entry: a health center, school, or student.
type Owner struct {
	Tier ledger.Tier
	ID   ledger.OwnerID
	Name string

	// Parent links a school to its health center and a student to their
	// school. Empty for regional owners.
	Parent ledger.OwnerID
}

// Roster is the owner reference store. The ledger engine uses OwnerExists;
// listing backs dashboard and form lookups.
type Roster interface {
	// OwnerExists satisfies ledger.Roster.
	OwnerExists(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID) (bool, error)

	// Owner returns one roster entry, or ErrOwnerNotFound.
	Owner(ctx context.Context, tier ledger.Tier, id ledger.OwnerID) (Owner, error)

	// ListOwners returns all owners of a tier, by name.
	ListOwners(ctx context.Context, tier ledger.Tier) ([]Owner, error)

	// SaveOwner inserts or updates a roster entry.
	SaveOwner(ctx context.Context, owner Owner) error
}
