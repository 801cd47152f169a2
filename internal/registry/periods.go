package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// PeriodAlias maps a raw period label to a canonical one.
type PeriodAlias struct {
	Alias      string           `yaml:"alias"`
	Canonical  string           `yaml:"canonical"`
	PeriodType model.PeriodType `yaml:"period_type"`
}

// PeriodRegistry resolves raw period labels to canonical periods. Canonical
// periods are generated for a fixed calendar-year window; labels outside the
// window do not resolve.
type PeriodRegistry struct {
	FromYear int
	ToYear   int

	byLabel map[string]model.Period // canonical label -> period
	byAlias map[string]string       // normalized alias -> canonical label
}

// NewPeriodRegistry generates canonical Monthly, Quarterly, and Yearly
// periods for every year in [fromYear, toYear] and indexes the alias table.
func NewPeriodRegistry(fromYear, toYear int, aliases []PeriodAlias) *PeriodRegistry {
	r := &PeriodRegistry{
		FromYear: fromYear,
		ToYear:   toYear,
		byLabel:  make(map[string]model.Period),
		byAlias:  make(map[string]string, len(aliases)),
	}

	for year := fromYear; year <= toYear; year++ {
		for m := time.January; m <= time.December; m++ {
			start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
			r.add(model.Period{
				Label:     fmt.Sprintf("%04d-%02d", year, m),
				Type:      model.PeriodMonthly,
				StartDate: start,
				EndDate:   start.AddDate(0, 1, -1),
			})
		}
		for q := 1; q <= 4; q++ {
			start := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
			r.add(model.Period{
				Label:     fmt.Sprintf("%04d-Q%d", year, q),
				Type:      model.PeriodQuarterly,
				StartDate: start,
				EndDate:   start.AddDate(0, 3, -1),
			})
		}
		r.add(model.Period{
			Label:     strconv.Itoa(year),
			Type:      model.PeriodYearly,
			StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		})
	}

	for _, a := range aliases {
		r.byAlias[NormalizeLabel(a.Alias)] = a.Canonical
	}

	return r
}

func (r *PeriodRegistry) add(p model.Period) {
	r.byLabel[p.Label] = p
}

// Resolve maps a raw period label to its canonical period. Resolution order:
// exact canonical label, alias table, then the built-in label formats. The
// boolean is false when the label is unrecognized or outside the window.
func (r *PeriodRegistry) Resolve(label string, ptype model.PeriodType) (model.Period, bool) {
	trimmed := strings.TrimSpace(label)

	if p, ok := r.byLabel[trimmed]; ok {
		return p, true
	}
	if canonical, ok := r.byAlias[NormalizeLabel(trimmed)]; ok {
		if p, ok := r.byLabel[canonical]; ok {
			return p, true
		}
	}
	if canonical := parseLabel(trimmed, ptype); canonical != "" {
		if p, ok := r.byLabel[canonical]; ok {
			return p, true
		}
	}
	return model.Period{}, false
}

// monthLayouts are tried in order against monthly labels.
var monthLayouts = []string{
	"2006-01", "Jan 2006", "January 2006", "Jan-06", "Jan-2006",
	"01/2006", "1/2006", "2006/01", "01-2006",
}

// parseLabel converts common raw label shapes into a canonical label without
// consulting the alias table. Returns "" when no format matches.
func parseLabel(label string, ptype model.PeriodType) string {
	switch ptype {
	case model.PeriodMonthly, "":
		for _, layout := range monthLayouts {
			if t, err := time.Parse(layout, label); err == nil {
				return fmt.Sprintf("%04d-%02d", t.Year(), t.Month())
			}
		}
		if ptype == model.PeriodMonthly {
			return ""
		}
		fallthrough
	case model.PeriodQuarterly:
		if c := parseQuarter(label); c != "" {
			return c
		}
		if ptype == model.PeriodQuarterly {
			return ""
		}
		fallthrough
	case model.PeriodYearly:
		if y, err := strconv.Atoi(label); err == nil && y >= 1900 && y <= 2200 {
			return strconv.Itoa(y)
		}
	}
	return ""
}

// parseQuarter handles "Q1 2025", "2025 Q1", and "2025-Q1" shapes.
func parseQuarter(label string) string {
	fields := strings.FieldsFunc(strings.ToUpper(label), func(r rune) bool {
		return r == ' ' || r == '-' || r == '/'
	})
	if len(fields) != 2 {
		return ""
	}

	var year, quarter int
	for _, f := range fields {
		if strings.HasPrefix(f, "Q") && len(f) == 2 {
			quarter, _ = strconv.Atoi(f[1:])
		} else if y, err := strconv.Atoi(f); err == nil {
			year = y
		}
	}
	if quarter < 1 || quarter > 4 || year == 0 {
		return ""
	}
	return fmt.Sprintf("%04d-Q%d", year, quarter)
}

// LoadPeriodAliases reads the period alias table from a YAML file. A missing
// file is not an error; the built-in label formats still apply.
func LoadPeriodAliases(path string) ([]PeriodAlias, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "registry: read period aliases %s", path)
	}

	var wrapper struct {
		Periods []PeriodAlias `yaml:"periods"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse period aliases")
	}
	return wrapper.Periods, nil
}
