package model

// Holding is one constituent row from an ETF holdings dataset. ItemName and
// ItemCode are lifted out of the row for the matcher; Fields keeps every cell
// verbatim, aligned with the table's Columns, so unknown upstream columns
// survive the pipeline untouched.
type Holding struct {
	ItemName string   `json:"item_name"`
	ItemCode string   `json:"item_code"`
	Fields   []string `json:"-"`
}

// HoldingTable is a holdings dataset: the header as read plus the rows in
// file order. Row order is the contract for everything downstream.
type HoldingTable struct {
	Columns []string  `json:"columns"`
	Rows    []Holding `json:"-"`
}

// ResolvedHolding is a holding after industry resolution. The industry
// fields stay empty when no entry matched; Recent marks membership in the
// recent output slice.
type ResolvedHolding struct {
	Holding
	Matched           bool   `json:"matched"`
	IndustryInfo      string `json:"industry_info,omitempty"`
	IndustryFrequency string `json:"industry_frequency,omitempty"`
	IndustrySource    string `json:"industry_source,omitempty"`
	IndustryUpdate    string `json:"industry_update_date,omitempty"`
	Recent            bool   `json:"recent"`
	Candidates        int    `json:"candidates"`
}
