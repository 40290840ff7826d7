package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"crateclash/engine"
	"crateclash/models"
)

// gameTablesFile mirrors the TOML layout of the game table file
type gameTablesFile struct {
	Fees     map[string]int64 `toml:"fees"`
	Coinflip struct {
		Edge float64 `toml:"edge"`
	} `toml:"coinflip"`
	Minefield struct {
		Edge  float64        `toml:"edge"`
		Table []minefieldRow `toml:"table"`
	} `toml:"minefield"`
	Crates []models.Crate `toml:"crates"`
}

type minefieldRow struct {
	TotalCells int     `toml:"total_cells"`
	MineCount  int     `toml:"mine_count"`
	Revealed   int     `toml:"revealed"`
	Multiplier float64 `toml:"multiplier"`
}

// LoadGameTables reads the house fee schedule, edges, minefield odds
// overrides and the crate catalog from a TOML file. The engine takes these
// as configuration rather than inferring them.
func LoadGameTables(path string) (*engine.Config, error) {
	var file gameTablesFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode game tables %s: %w", path, err)
	}
	return buildTables(&file)
}

// DefaultGameTables returns tables with zero fees, zero edges and an empty
// crate catalog. Used when no table file is configured and by tests that
// supply their own parameters.
func DefaultGameTables() *engine.Config {
	return &engine.Config{
		FeeBps:         map[models.GameKind]int64{},
		MinefieldTable: map[engine.MultiplierKey]float64{},
		Crates:         map[string]*models.Crate{},
	}
}

func buildTables(file *gameTablesFile) (*engine.Config, error) {
	cfg := DefaultGameTables()
	cfg.CoinflipEdge = file.Coinflip.Edge
	cfg.MinefieldEdge = file.Minefield.Edge

	for kind, bps := range file.Fees {
		if bps < 0 || bps > 10000 {
			return nil, fmt.Errorf("fee for %q out of range: %d bps", kind, bps)
		}
		cfg.FeeBps[models.GameKind(kind)] = bps
	}

	for _, row := range file.Minefield.Table {
		if row.Multiplier <= 0 {
			return nil, fmt.Errorf("minefield table entry (%d cells, %d mines, %d revealed) has non-positive multiplier", row.TotalCells, row.MineCount, row.Revealed)
		}
		cfg.MinefieldTable[engine.MultiplierKey{
			TotalCells: row.TotalCells,
			MineCount:  row.MineCount,
			Revealed:   row.Revealed,
		}] = row.Multiplier
	}

	for i := range file.Crates {
		crate := file.Crates[i]
		if err := crate.Validate(); err != nil {
			return nil, fmt.Errorf("invalid crate table: %w", err)
		}
		if _, exists := cfg.Crates[crate.ID]; exists {
			return nil, fmt.Errorf("duplicate crate id %q", crate.ID)
		}
		cfg.Crates[crate.ID] = &crate
	}

	return cfg, nil
}
