// Package questions evaluates derived metrics against the question-template
// registry and produces prioritized analytical questions.
package questions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finfacts-cli/internal/model"
	"github.com/sells-group/finfacts-cli/internal/registry"
)

// Engine matches derived metrics to question templates.
type Engine struct {
	templates *registry.TemplateRegistry
}

// New creates a question engine over a template registry.
func New(templates *registry.TemplateRegistry) *Engine {
	return &Engine{templates: templates}
}

// Evaluate fires every matching template for every metric. A malformed
// template (unknown operator) is logged and skipped; it never fails the
// batch.
func (e *Engine) Evaluate(metrics []model.DerivedMetric) []model.Question {
	var out []model.Question

	for _, m := range metrics {
		for _, t := range e.templates.For(m.LineItem, m.Calculation) {
			fired, err := compare(m.Value, t.TriggerOperator, t.TriggerThreshold)
			if err != nil {
				zap.L().Warn("questions: skipping malformed template",
					zap.String("metric", t.Metric),
					zap.String("calculation", string(t.CalculationType)),
					zap.Error(err))
				continue
			}
			if !fired {
				continue
			}

			category := t.Category
			if category == "" {
				category = m.LineItem
			}

			out = append(out, model.Question{
				CompanyID:   m.CompanyID,
				PeriodLabel: m.PeriodLabel,
				MetricName:  m.MetricName,
				Category:    category,
				Text:        interpolate(t.BaseQuestion, m, t),
				Priority:    priority(t.DefaultWeight, m.Value, t.TriggerThreshold),
				MetricValue: m.Value,
			})
		}
	}

	// Highest priority first; metric name breaks ties for stable output.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].PeriodLabel != out[j].PeriodLabel {
			return out[i].PeriodLabel < out[j].PeriodLabel
		}
		return out[i].MetricName < out[j].MetricName
	})
	return out
}

// compare applies `value <op> threshold`. Unknown operators are an error so
// the caller can skip the template rather than guess.
func compare(value float64, op string, threshold float64) (bool, error) {
	switch strings.TrimSpace(op) {
	case ">":
		return value > threshold, nil
	case "<":
		return value < threshold, nil
	case ">=":
		return value >= threshold, nil
	case "<=":
		return value <= threshold, nil
	case "=", "==":
		return value == threshold, nil
	default:
		return false, eris.Errorf("questions: unknown trigger operator %q", op)
	}
}

// priority combines the template weight with how far past the threshold the
// observed value landed. A value right at the threshold scores the bare
// weight; a value at 3x the threshold scores 3x the weight.
func priority(weight, value, threshold float64) float64 {
	base := math.Max(math.Abs(threshold), 1)
	ratio := math.Abs(value) / base
	return math.Round(weight*ratio*100) / 100
}

// interpolate substitutes the observed metric context into the template text.
func interpolate(text string, m model.DerivedMetric, t *model.QuestionTemplate) string {
	return strings.NewReplacer(
		"{metric}", m.LineItem,
		"{metric_name}", m.MetricName,
		"{period}", m.PeriodLabel,
		"{change}", fmt.Sprintf("%.2f", m.Value),
		"{value}", fmt.Sprintf("%.2f", m.Value),
		"{threshold}", fmt.Sprintf("%.2f", t.TriggerThreshold),
	).Replace(text)
}
