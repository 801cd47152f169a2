// Package registry loads the YAML alias dictionaries and question templates
// into immutable indexed lookup structures. Registries are built once at
// startup and passed explicitly into the pipeline stages that need them.
package registry

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LineItemDef is one canonical line item with its alias set.
type LineItemDef struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Description string   `yaml:"description,omitempty"`
}

// headlineKPIs are the line items subject to the normalization-time quality
// screen (implausibly small values, bare calendar years).
var headlineKPIs = map[string]bool{
	"Revenue":      true,
	"Gross Profit": true,
	"EBITDA":       true,
}

// noisePrefixes mark extracted labels that are known non-financial artifacts
// (section headers, totals separators, page furniture) and are silently
// filtered before alias lookup.
var noisePrefixes = []string{
	"page ", "continued", "note:", "see note", "table of contents",
}

// LineItemRegistry is an indexed, read-only view of the line-item dictionary.
type LineItemRegistry struct {
	Items   []LineItemDef
	byAlias map[string]*LineItemDef // normalized alias or canonical name -> def
}

// NewLineItemRegistry builds the alias index. Both canonical names and
// aliases are matched case- and whitespace-insensitively.
func NewLineItemRegistry(items []LineItemDef) *LineItemRegistry {
	r := &LineItemRegistry{
		Items:   items,
		byAlias: make(map[string]*LineItemDef, len(items)*4),
	}
	for i := range r.Items {
		def := &r.Items[i]
		r.byAlias[NormalizeLabel(def.Name)] = def
		for _, a := range def.Aliases {
			r.byAlias[NormalizeLabel(a)] = def
		}
	}
	return r
}

// Resolve returns the canonical line item for a raw label, or "" when the
// label has no alias match.
func (r *LineItemRegistry) Resolve(label string) string {
	def, ok := r.byAlias[NormalizeLabel(label)]
	if !ok {
		return ""
	}
	return def.Name
}

// IsHeadlineKPI reports whether the canonical line item is one of the
// headline KPIs covered by the quality screen.
func (r *LineItemRegistry) IsHeadlineKPI(name string) bool {
	return headlineKPIs[name]
}

// IsNoise reports whether a raw label is a known non-financial artifact.
func (r *LineItemRegistry) IsNoise(label string) bool {
	norm := NormalizeLabel(label)
	if norm == "" {
		return true
	}
	for _, p := range noisePrefixes {
		if strings.HasPrefix(norm, p) {
			return true
		}
	}
	return false
}

var labelReplacer = strings.NewReplacer(
	",", "",
	".", "",
	":", "",
	"(", " ",
	")", " ",
	"\t", " ",
)

// NormalizeLabel lowercases, strips punctuation, and collapses whitespace so
// "Total  REVENUE:" and "total revenue" compare equal. Matching stays exact
// after normalization; fuzzy matching is deliberately not attempted.
func NormalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = labelReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// LoadLineItems reads the line-item dictionary from a YAML file.
func LoadLineItems(path string) (*LineItemRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read line items %s", path)
	}

	var wrapper struct {
		LineItems []LineItemDef `yaml:"line_items"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse line items")
	}
	if len(wrapper.LineItems) == 0 {
		return nil, eris.Errorf("registry: no line items defined in %s", path)
	}

	return NewLineItemRegistry(wrapper.LineItems), nil
}
