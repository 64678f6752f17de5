package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// IndustryEntry is one data series of an industry sub-category, flattened
// from the BigFinance category tree. The three update-date columns come from
// different levels of the source: UpdateDate from the sub-category,
// HeaderUpdateDate from the series header endpoint, LastUpdate from the data
// series itself.
type IndustryEntry struct {
	MainCode         string `json:"main_code"`
	MainName         string `json:"main_name"`
	GroupID          string `json:"group_id"`
	GroupName        string `json:"group_name"`
	SubCode          string `json:"sub_code"`
	SubName          string `json:"sub_name"`
	DataType         string `json:"data_type"`
	DataCode         string `json:"data_code"`
	DataName         string `json:"data_name"`
	Frequency        string `json:"frequency"`
	Unit             string `json:"unit,omitempty"`
	Source           string `json:"source"`
	Footnote         string `json:"footnote,omitempty"`
	YoYFlag          string `json:"yoy_flag,omitempty"`
	UpdateDate       string `json:"update_date"`
	HeaderUpdateDate string `json:"header_update_date,omitempty"`
	LastUpdate       string `json:"last_update"`
	CompaniesJSON    string `json:"companies"`
}

// CompanyRef is one member of an industry entry's company list.
type CompanyRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Info is the combined label exposed on matched holdings,
// "<sub_name>-<data_name>".
func (e *IndustryEntry) Info() string {
	return e.SubName + "-" + e.DataName
}

// EffectiveUpdateDate resolves the entry's update date by source priority:
// sub-category date first, then the header date, then the series last-update.
// The raw string that won is returned alongside the parsed time; ok is false
// when none of the three parses.
func (e *IndustryEntry) EffectiveUpdateDate() (t time.Time, raw string, ok bool) {
	for _, s := range []string{e.UpdateDate, e.HeaderUpdateDate, e.LastUpdate} {
		if ts, parsed := ParseDate(s); parsed {
			return ts, s, true
		}
	}
	return time.Time{}, "", false
}

// dateLayouts are the timestamp shapes seen across the upstream sources:
// compact and dashed dates from category metadata, datetimes from the series
// API, RFC3339 from the collect log.
var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// ParseDate parses an upstream date string against the known layouts.
// Empty or unrecognized input returns ok=false, never an error.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseCompanies decodes an entry's companies cell. The cell is JSON text in
// one of two shapes: a list of {code,name} objects (enriched datasets) or a
// bare list of name strings. Empty and null cells decode to an empty list;
// anything else malformed is an error so the caller can skip the entry.
func ParseCompanies(raw string) ([]CompanyRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "[]" {
		return nil, nil
	}
	var refs []CompanyRef
	if err := json.Unmarshal([]byte(raw), &refs); err == nil {
		return refs, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, eris.Wrap(err, "model: parse companies list")
	}
	refs = make([]CompanyRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, CompanyRef{Name: n})
	}
	return refs, nil
}
