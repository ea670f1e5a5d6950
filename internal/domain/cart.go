package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Cart struct {
	ID         uuid.UUID  `json:"id"`
	CustomerID int64      `json:"customer_id"`
	Lines      []CartLine `json:"lines"`
	PickupAt   *time.Time `json:"pickup_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	// Version grows by one with every committed change to the cart or its lines.
	Version    int64      `json:"version"`
}

type CartLine struct {
	ID           uuid.UUID `json:"id"`
	CartID       uuid.UUID `json:"cart_id"`
	MenuItemID   int64     `json:"menu_item_id"`
	Quantity     int       `json:"quantity"`
	Size         *string   `json:"size,omitempty"`
	Extras       []string  `json:"extras,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Location     string    `json:"location,omitempty"`
	AddedAt      time.Time `json:"added_at"`
}

// LinePatch carries the fields of a partial cart line update. Nil fields stay unchanged.
type LinePatch struct {
	Quantity     *int
	Size         *string
	Extras       *[]string
	Instructions *string
	Location     *string
}

func (p LinePatch) IsEmpty() bool {
	return p.Quantity == nil && p.Size == nil && p.Extras == nil && p.Instructions == nil && p.Location == nil
}

// NormalizeExtras trims, dedupes and sorts extras so equal selections compare equal.
func NormalizeExtras(extras []string) []string {
	if len(extras) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(extras))
	out := make([]string, 0, len(extras))
	for _, e := range extras {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// MergeKey identifies lines that must be merged: same menu item, size and extras.
func (l *CartLine) MergeKey() string {
	size := ""
	if l.Size != nil {
		size = *l.Size
	}
	return strconv.FormatInt(l.MenuItemID, 10) + "|" + size + "|" + strings.Join(NormalizeExtras(l.Extras), ",")
}

func (c *Cart) Line(id uuid.UUID) (int, bool) {
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// AddLine merges line into the cart. It returns the resulting line and whether it was appended
// (false means an existing line absorbed the quantity).
func (c *Cart) AddLine(line CartLine) (CartLine, bool, error) {
	if line.Quantity < 1 {
		return CartLine{}, false, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}
	line.Extras = NormalizeExtras(line.Extras)
	key := line.MergeKey()
	for i := range c.Lines {
		if c.Lines[i].MergeKey() == key {
			c.Lines[i].Quantity += line.Quantity
			return c.Lines[i], false, nil
		}
	}
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	line.CartID = c.ID
	c.Lines = append(c.Lines, line)
	return line, true, nil
}

// ApplyPatch updates the line with id. When the new merge key collides with another line the
// patched line is folded into it; absorbed holds the id of the removed line in that case. The
// survivor keeps its own instructions and location unless the patch sets them.
func (c *Cart) ApplyPatch(id uuid.UUID, p LinePatch) (updated CartLine, absorbed uuid.UUID, err error) {
	idx, ok := c.Line(id)
	if !ok {
		return CartLine{}, uuid.Nil, fmt.Errorf("cart line %s: %w", id, ErrNotFound)
	}
	line := c.Lines[idx]
	if p.Quantity != nil {
		if *p.Quantity < 1 {
			return CartLine{}, uuid.Nil, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
		}
		line.Quantity = *p.Quantity
	}
	if p.Size != nil {
		if *p.Size == "" {
			line.Size = nil
		} else {
			s := *p.Size
			line.Size = &s
		}
	}
	if p.Extras != nil {
		line.Extras = NormalizeExtras(*p.Extras)
	}
	if p.Instructions != nil {
		line.Instructions = *p.Instructions
	}
	if p.Location != nil {
		line.Location = *p.Location
	}

	key := line.MergeKey()
	for i := range c.Lines {
		if i == idx || c.Lines[i].MergeKey() != key {
			continue
		}
		c.Lines[i].Quantity += line.Quantity
		// fields the patch set explicitly carry over to the surviving line
		if p.Instructions != nil {
			c.Lines[i].Instructions = line.Instructions
		}
		if p.Location != nil {
			c.Lines[i].Location = line.Location
		}
		merged := c.Lines[i]
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		return merged, line.ID, nil
	}
	c.Lines[idx] = line
	return line, uuid.Nil, nil
}

func (c *Cart) RemoveLine(id uuid.UUID) error {
	idx, ok := c.Line(id)
	if !ok {
		return fmt.Errorf("cart line %s: %w", id, ErrNotFound)
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return nil
}

func (c *Cart) MenuItemIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Lines))
	ids := make([]int64, 0, len(c.Lines))
	for _, l := range c.Lines {
		if _, ok := seen[l.MenuItemID]; ok {
			continue
		}
		seen[l.MenuItemID] = struct{}{}
		ids = append(ids, l.MenuItemID)
	}
	return ids
}

// PricedLine is a cart line with its price resolved at read time.
type PricedLine struct {
	CartLine
	Name        string `json:"name"`
	UnitPrice   Money  `json:"unit_price_cents"`
	LineTotal   Money  `json:"line_total_cents"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

type CartSnapshot struct {
	ID         uuid.UUID    `json:"id"`
	CustomerID int64        `json:"customer_id"`
	Lines      []PricedLine `json:"lines"`
	Total      Money        `json:"total_cents"`
	PickupAt   *time.Time   `json:"pickup_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Price builds a snapshot from the cart using freshly resolved menu items. Lines whose item is
// gone or unavailable are flagged and contribute nothing to the total.
func Price(c *Cart, items map[int64]*MenuItem) *CartSnapshot {
	snap := &CartSnapshot{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Lines:      make([]PricedLine, 0, len(c.Lines)),
		PickupAt:   c.PickupAt,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, l := range c.Lines {
		pl := PricedLine{CartLine: l}
		item, ok := items[l.MenuItemID]
		if !ok || !item.Available {
			pl.Unavailable = true
			if ok {
				pl.Name = item.Name
			}
			snap.Lines = append(snap.Lines, pl)
			continue
		}
		pl.Name = item.Name
		unit, err := item.UnitPrice(l.Size, l.Extras)
		if err != nil {
			pl.Unavailable = true
			snap.Lines = append(snap.Lines, pl)
			continue
		}
		pl.UnitPrice = unit
		pl.LineTotal = unit.Mul(l.Quantity)
		snap.Total += pl.LineTotal
		snap.Lines = append(snap.Lines, pl)
	}
	return snap
}
