// Package measure keeps per-component live measures up to date after an analysis: the
// analyzed components get the reported values, every ancestor is recomputed from its
// children and the quality gate is re-evaluated.
package measure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Metric keys.
const (
	MetricBugs            = "bugs"
	MetricVulnerabilities = "vulnerabilities"
	MetricCodeSmells      = "code_smells"
	MetricViolations      = "violations"
	MetricNcloc           = "ncloc"
	MetricAlertStatus     = "alert_status"
)

// reportable are the metrics an analyzer may report. They are summed up the tree.
var reportable = map[string]bool{
	MetricBugs:            true,
	MetricVulnerabilities: true,
	MetricCodeSmells:      true,
	MetricNcloc:           true,
}

// Reportable reports whether an analyzer may send metric.
func Reportable(metric string) bool {
	return reportable[metric]
}

// Measure is one live value of a metric on a component. Text is used by
// alert_status only.
type Measure struct {
	ComponentKey string  `json:"component"`
	Metric       string  `json:"metric"`
	Value        float64 `json:"value"`
	Text         string  `json:"text,omitempty"`
}

func (m Measure) equal(o Measure) bool {
	return m.Value == o.Value && m.Text == o.Text
}

// Component is a node of the component tree as the matrix sees it.
type Component struct {
	Key       string
	Qualifier string
	ParentKey string
}

type report struct {
	Measures []struct {
		Component string   `json:"component"`
		Metric    string   `json:"metric"`
		Value     *float64 `json:"value"`
	} `json:"measures"`
}

// ParseReport decodes the measure report an analyzer writes to stdout:
//
//	{"measures": [{"component": "proj:src/a.go", "metric": "bugs", "value": 2}]}
//
// Entries without a component apply to defaultKey. Empty output is an empty report.
func ParseReport(defaultKey string, out []byte) ([]Measure, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}

	var r report
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding measure report: %w", err)
	}

	measures := make([]Measure, 0, len(r.Measures))
	for i, e := range r.Measures {
		if !Reportable(e.Metric) {
			return nil, fmt.Errorf("measure %d: unknown metric %q", i, e.Metric)
		}
		if e.Value == nil || math.IsNaN(*e.Value) || math.IsInf(*e.Value, 0) || *e.Value < 0 {
			return nil, fmt.Errorf("measure %d: invalid value for %s", i, e.Metric)
		}
		key := e.Component
		if key == "" {
			key = defaultKey
		}
		measures = append(measures, Measure{ComponentKey: key, Metric: e.Metric, Value: *e.Value})
	}
	return measures, nil
}
