package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// TemplateRegistry is the read-only set of question templates, indexed by
// (line item, calculation type).
type TemplateRegistry struct {
	Templates []model.QuestionTemplate

	byKey map[templateKey][]*model.QuestionTemplate
}

type templateKey struct {
	metric string
	calc   model.CalculationType
}

// NewTemplateRegistry indexes templates for trigger evaluation.
func NewTemplateRegistry(templates []model.QuestionTemplate) *TemplateRegistry {
	r := &TemplateRegistry{
		Templates: templates,
		byKey:     make(map[templateKey][]*model.QuestionTemplate, len(templates)),
	}
	for i := range r.Templates {
		t := &r.Templates[i]
		k := templateKey{metric: t.Metric, calc: t.CalculationType}
		r.byKey[k] = append(r.byKey[k], t)
	}
	return r
}

// For returns the templates matching a line item and calculation type.
func (r *TemplateRegistry) For(metric string, calc model.CalculationType) []*model.QuestionTemplate {
	return r.byKey[templateKey{metric: metric, calc: calc}]
}

// LoadTemplates reads question templates from a YAML file. A missing file
// yields an empty registry: question generation is optional.
func LoadTemplates(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewTemplateRegistry(nil), nil
		}
		return nil, eris.Wrapf(err, "registry: read templates %s", path)
	}

	var wrapper struct {
		Templates []model.QuestionTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse templates")
	}

	return NewTemplateRegistry(wrapper.Templates), nil
}
