package steamtrade

import (
	"context"
	"fmt"
)

// InventoryData is the body of the community inventory endpoint.
type InventoryData struct {
	Assets              []*EconItem     `json:"assets"`
	Descriptions        []*EconItemDesc `json:"descriptions"`
	TotalInventoryCount int             `json:"total_inventory_count"`
	Success             int             `json:"success"`
	MoreItems           int             `json:"more_items"`
	LastAssetID         string          `json:"last_assetid"`
}

// Inventory holds the items one account owns in one game.
//
// Items is mutable: the Take methods remove what they return.
type Inventory struct {
	Owner SteamID
	// Game is nil when the owner has no inventory for the requested game.
	Game  *Game
	Items []*Item

	total     int
	requested Game
	state     *State
}

// NewInventory reconciles data into an inventory. It does not touch the
// network; the result cannot be refreshed with Update.
func NewInventory(owner SteamID, data *InventoryData) *Inventory {
	inv := &Inventory{Owner: owner}
	inv.update(data)
	return inv
}

func (inv *Inventory) update(data *InventoryData) {
	inv.Game = nil
	inv.Items = nil
	inv.total = 0

	if data == nil {
		return
	}

	var first *EconItem
	for _, asset := range data.Assets {
		if asset != nil {
			first = asset
			break
		}
	}
	if first == nil {
		return
	}

	game := assetFromEcon(first).Game()
	inv.Game = &game
	inv.Items = reconcileItems(data.Assets, data.Descriptions)
	inv.total = data.TotalInventoryCount
}

// Len returns the item count Steam reports for the inventory, which can
// differ from len(inv.Items).
func (inv *Inventory) Len() int {
	return inv.total
}

// Update refetches the inventory in place.
func (inv *Inventory) Update(ctx context.Context) error {
	if inv.state == nil {
		return fmt.Errorf("%w: inventory is not bound to a client", ClientError)
	}

	game := inv.requested
	if inv.Game != nil {
		game = *inv.Game
	}

	data, err := inv.state.Transport.FetchUserInventory(ctx, inv.Owner, game.AppID, game.ContextID)
	if err != nil {
		return err
	}

	inv.update(data)
	return nil
}

// TakeItem removes and returns the first item named name, or nil.
func (inv *Inventory) TakeItem(name string) *Item {
	items := inv.TakeItemsFunc(HasName(name), 1)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

// TakeItems removes and returns up to limit items named name. A limit of
// zero or less takes every match.
func (inv *Inventory) TakeItems(name string, limit int) []*Item {
	return inv.TakeItemsFunc(HasName(name), limit)
}

// TakeItemsFunc removes and returns up to limit items accepted by filter, in
// inventory order. A limit of zero or less takes every match.
func (inv *Inventory) TakeItemsFunc(filter Filter, limit int) []*Item {
	var (
		taken []*Item
		kept  = inv.Items[:0]
	)
	for _, item := range inv.Items {
		if (limit <= 0 || len(taken) < limit) && filter(item) {
			taken = append(taken, item)
			continue
		}
		kept = append(kept, item)
	}

	for i := len(kept); i < len(inv.Items); i++ {
		inv.Items[i] = nil
	}
	inv.Items = kept

	return taken
}

// Find returns the items accepted by filter without removing them.
func (inv *Inventory) Find(filter Filter) []*Item {
	var found []*Item
	for _, item := range inv.Items {
		if filter(item) {
			found = append(found, item)
		}
	}
	return found
}
