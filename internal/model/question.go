package model

import "time"

// QuestionTemplate is a threshold rule from the template registry. A template
// fires when a derived metric with matching line item and calculation type
// satisfies `value <operator> threshold`.
type QuestionTemplate struct {
	Metric           string          `json:"metric" yaml:"metric"` // canonical line-item name
	CalculationType  CalculationType `json:"calculation_type" yaml:"calculation_type"`
	BaseQuestion     string          `json:"base_question" yaml:"base_question"`
	TriggerThreshold float64         `json:"trigger_threshold" yaml:"trigger_threshold"`
	TriggerOperator  string          `json:"trigger_operator" yaml:"trigger_operator"` // one of > < >= <= =
	DefaultWeight    float64         `json:"default_weight" yaml:"default_weight"`
	Category         string          `json:"category,omitempty" yaml:"category,omitempty"`
}

// Question is an analytical question generated from a template trigger match.
type Question struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	PeriodLabel string    `json:"period_label"`
	MetricName  string    `json:"metric_name"`
	Category    string    `json:"category"`
	Text        string    `json:"text"`
	Priority    float64   `json:"priority"`
	MetricValue float64   `json:"metric_value"`
	CreatedAt   time.Time `json:"created_at"`
}
