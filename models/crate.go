package models

import (
	"fmt"
	"math"
)

// dropChanceTolerance is the allowed deviation of a crate's summed drop
// chances from 1.0.
const dropChanceTolerance = 1e-6

// CrateItem is one entry in a crate's weighted drop table
type CrateItem struct {
	Name       string  `json:"name" toml:"name"`
	Value      int64   `json:"value" toml:"value"`
	DropChance float64 `json:"drop_chance" toml:"drop_chance"`
}

// Crate is a weighted drop table opened during crate battles
type Crate struct {
	ID    string      `json:"id" toml:"id"`
	Name  string      `json:"name" toml:"name"`
	Items []CrateItem `json:"items" toml:"items"`
}

// TotalWeight sums the drop chances of all items
func (c *Crate) TotalWeight() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.DropChance
	}
	return total
}

// Validate checks the drop table is well-formed: at least one item, positive
// weights, and weights summing to 1 within tolerance.
func (c *Crate) Validate() error {
	if len(c.Items) == 0 {
		return fmt.Errorf("crate %q has no items", c.ID)
	}
	for _, item := range c.Items {
		if item.DropChance <= 0 {
			return fmt.Errorf("crate %q item %q has non-positive drop chance %f", c.ID, item.Name, item.DropChance)
		}
		if item.Value < 0 {
			return fmt.Errorf("crate %q item %q has negative value %d", c.ID, item.Name, item.Value)
		}
	}
	if math.Abs(c.TotalWeight()-1.0) > dropChanceTolerance {
		return fmt.Errorf("crate %q drop chances sum to %f, want 1.0", c.ID, c.TotalWeight())
	}
	return nil
}

// Pick selects an item by scanning cumulative weights with a roll scaled to
// [0, totalWeight). The roll must be in [0, 1).
func (c *Crate) Pick(roll float64) CrateItem {
	target := roll * c.TotalWeight()
	var cumulative float64
	for _, item := range c.Items {
		cumulative += item.DropChance
		if target < cumulative {
			return item
		}
	}
	// floating point slack on the final boundary
	return c.Items[len(c.Items)-1]
}
