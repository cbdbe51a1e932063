package measure

import (
	"fmt"
	"strconv"
	"strings"
)

// GateStatus is the quality gate verdict of a component.
type GateStatus string

const (
	GateOK    GateStatus = "OK"
	GateError GateStatus = "ERROR"
)

// Condition fails the gate when the metric value is greater (Op ">") or lower
// (Op "<") than Threshold.
type Condition struct {
	Metric    string
	Op        string
	Threshold float64
}

func (c Condition) String() string {
	return c.Metric + c.Op + strconv.FormatFloat(c.Threshold, 'f', -1, 64)
}

func (c Condition) fails(v float64) bool {
	if c.Op == "<" {
		return v < c.Threshold
	}
	return v > c.Threshold
}

// Gate is a set of conditions evaluated on every refreshed component.
type Gate struct {
	Conditions []Condition
}

// DefaultGate fails on any bug or vulnerability.
var DefaultGate = Gate{Conditions: []Condition{
	{Metric: MetricBugs, Op: ">", Threshold: 0},
	{Metric: MetricVulnerabilities, Op: ">", Threshold: 0},
}}

// ParseGate reads a comma-separated condition list such as "bugs>0,ncloc<10".
// An empty string is the default gate.
func ParseGate(s string) (Gate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultGate, nil
	}
	var g Gate
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		i := strings.IndexAny(part, "<>")
		if i <= 0 {
			return Gate{}, fmt.Errorf("invalid gate condition %q", part)
		}
		metric := strings.TrimSpace(part[:i])
		if !Reportable(metric) && metric != MetricViolations {
			return Gate{}, fmt.Errorf("invalid gate condition %q: unknown metric", part)
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(part[i+1:]), 64)
		if err != nil {
			return Gate{}, fmt.Errorf("invalid gate condition %q: %w", part, err)
		}
		g.Conditions = append(g.Conditions, Condition{Metric: metric, Op: part[i : i+1], Threshold: threshold})
	}
	return g, nil
}

// Evaluate returns the verdict for a component's values and the failed conditions.
// Conditions on metrics without a value are skipped.
func (g Gate) Evaluate(values map[string]float64) (GateStatus, []Condition) {
	var failed []Condition
	for _, c := range g.Conditions {
		v, ok := values[c.Metric]
		if ok && c.fails(v) {
			failed = append(failed, c)
		}
	}
	if len(failed) > 0 {
		return GateError, failed
	}
	return GateOK, nil
}
