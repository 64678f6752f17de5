package dataset

import (
	"context"

	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/model"
)

// industryRequired are the columns an industry metadata file must carry.
// The update date is special-cased: at least one date column must exist.
var industryRequired = []string{
	"sub_code", "sub_name", "data_code", "data_name",
	"frequency", "source", "companies",
}

// LoadIndustry reads an industry data-series table into entries. Header
// problems are fatal; per-row problems (bad companies JSON, odd dates) are
// deferred to the index build, which skips and counts them.
func LoadIndustry(ctx context.Context, path string) ([]model.IndustryEntry, error) {
	raw, err := readTable(ctx, path)
	if err != nil {
		return nil, err
	}

	missing := raw.missingColumns(industryRequired)
	if raw.col("update_date") < 0 && raw.col("last_update") < 0 {
		missing = append(missing, "update_date|last_update")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Dataset: "industry", Path: path, Missing: missing}
	}

	var (
		mainCode  = raw.col("main_code")
		mainName  = raw.col("main_name")
		groupID   = raw.col("group_id")
		groupName = raw.col("group_name")
		subCode   = raw.col("sub_code")
		subName   = raw.col("sub_name")
		dataType  = raw.col("data_type")
		dataCode  = raw.col("data_code")
		dataName  = raw.col("data_name")
		frequency = raw.col("frequency")
		unit      = raw.col("unit")
		source    = raw.col("source")
		footnote  = raw.col("footnote")
		yoyFlag   = raw.col("yoy_flag")
		update    = raw.col("update_date")
		header    = raw.col("header_update_date")
		last      = raw.col("last_update")
		companies = raw.col("companies")
	)
	// The raw crawler export spells the header-level date updateDate; the
	// enriched export spells it header_update_date. Accept either.
	if header < 0 {
		header = raw.col("updateDate")
	}
	if yoyFlag < 0 {
		yoyFlag = raw.col("yoyFlag")
	}

	entries := make([]model.IndustryEntry, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		entries = append(entries, model.IndustryEntry{
			MainCode:         cell(row, mainCode),
			MainName:         cell(row, mainName),
			GroupID:          cell(row, groupID),
			GroupName:        cell(row, groupName),
			SubCode:          cell(row, subCode),
			SubName:          cell(row, subName),
			DataType:         cell(row, dataType),
			DataCode:         cell(row, dataCode),
			DataName:         cell(row, dataName),
			Frequency:        cell(row, frequency),
			Unit:             cell(row, unit),
			Source:           cell(row, source),
			Footnote:         cell(row, footnote),
			YoYFlag:          cell(row, yoyFlag),
			UpdateDate:       cell(row, update),
			HeaderUpdateDate: cell(row, header),
			LastUpdate:       cell(row, last),
			CompaniesJSON:    cell(row, companies),
		})
	}

	zap.L().Debug("industry entries loaded",
		zap.String("path", path),
		zap.Int("rows", len(entries)),
	)
	return entries, nil
}
