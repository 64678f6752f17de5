package dataset

import (
	"context"

	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/model"
)

// holdingsRequired are the columns the matcher needs from a holdings file.
// Everything else rides along untouched.
var holdingsRequired = []string{"item_name", "item_code"}

// LoadHoldings reads an ETF constituents table. The returned table preserves
// the file's column set and row order exactly; a missing required column is
// a *SchemaError.
func LoadHoldings(ctx context.Context, path string) (*model.HoldingTable, error) {
	raw, err := readTable(ctx, path)
	if err != nil {
		return nil, err
	}
	if missing := raw.missingColumns(holdingsRequired); len(missing) > 0 {
		return nil, &SchemaError{Dataset: "holdings", Path: path, Missing: missing}
	}

	nameIdx := raw.col("item_name")
	codeIdx := raw.col("item_code")

	table := &model.HoldingTable{
		Columns: raw.Columns,
		Rows:    make([]model.Holding, 0, len(raw.Rows)),
	}
	for _, row := range raw.Rows {
		table.Rows = append(table.Rows, model.Holding{
			ItemName: cell(row, nameIdx),
			ItemCode: cell(row, codeIdx),
			Fields:   row,
		})
	}

	zap.L().Debug("holdings loaded",
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)),
	)
	return table, nil
}
