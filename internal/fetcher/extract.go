package fetcher

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// TableMeta carries the per-file context a bare table cannot express.
type TableMeta struct {
	CompanyName      string
	SourceFile       string
	PeriodType       model.PeriodType
	Currency         string
	ExtractionMethod string
	Confidence       float64 // applied when the table has no confidence column
}

// columnAliases maps normalized header spellings to canonical column roles.
// Statement exports disagree wildly on header names; this list grew from
// files actually seen in intake.
var columnAliases = map[string]string{
	"lineitem":    "line_item",
	"line":        "line_item",
	"account":     "line_item",
	"accountname": "line_item",
	"item":        "line_item",
	"description": "line_item",

	"period":          "period",
	"month":           "period",
	"date":            "period",
	"reportingperiod": "period",

	"value":  "value",
	"amount": "value",
	"total":  "value",

	"scenario": "scenario",
	"version":  "scenario",
	"type":     "scenario",
	"basis":    "scenario",

	"context": "context",
	"note":    "context",
	"notes":   "context",
	"segment": "context",

	"confidence":  "confidence",
	"currency":    "currency",
	"company":     "company",
	"companyname": "company",
	"entity":      "company",
}

func normalizeCol(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MapTable converts a header-plus-data table into raw rows. The first row is
// the header; every column the alias table does not recognize is ignored.
// A table without line_item, period, and value columns is unusable.
func MapTable(rows [][]string, meta TableMeta) ([]model.RawRow, error) {
	if len(rows) == 0 {
		return nil, eris.New("table: empty file")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		if role, ok := columnAliases[normalizeCol(h)]; ok {
			if _, seen := cols[role]; !seen {
				cols[role] = i
			}
		}
	}
	for _, required := range []string{"line_item", "period", "value"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("table: no %s column in header %v", required, rows[0])
		}
	}

	cell := func(row []string, role string) string {
		idx, ok := cols[role]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	out := make([]model.RawRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		raw := model.RawRow{
			CompanyName:      meta.CompanyName,
			LineItemText:     cell(row, "line_item"),
			Scenario:         cell(row, "scenario"),
			PeriodLabel:      cell(row, "period"),
			PeriodType:       meta.PeriodType,
			ValueText:        cell(row, "value"),
			Currency:         meta.Currency,
			SourceFile:       meta.SourceFile,
			SourceRow:        i + 2, // 1-based, after the header
			ContextKey:       cell(row, "context"),
			ExtractionMethod: meta.ExtractionMethod,
			Confidence:       meta.Confidence,
		}
		if c := cell(row, "company"); c != "" {
			raw.CompanyName = c
		}
		if c := cell(row, "currency"); c != "" {
			raw.Currency = c
		}
		if c := cell(row, "confidence"); c != "" {
			if v, err := strconv.ParseFloat(c, 64); err == nil {
				raw.Confidence = v
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
