package measure

import (
	"sort"

	"github.com/otavio/vigia/internal/component"
)

// bottomUp orders qualifiers from the leaves of the tree to its roots.
var bottomUp = []string{
	component.QualifierFile,
	component.QualifierDirectory,
	component.QualifierModule,
	component.QualifierProject,
	component.QualifierApplication,
	component.QualifierSubPortfolio,
	component.QualifierPortfolio,
}

func qualifierRank(q string) int {
	for i, b := range bottomUp {
		if b == q {
			return i
		}
	}
	return len(bottomUp)
}

// Matrix holds the measures of a component subtree: the touched components, their
// ancestors and the direct children of those ancestors.
type Matrix struct {
	components map[string]Component
	children   map[string][]string
	stored     map[string]map[string]Measure
	values     map[string]map[string]Measure
	reported   map[string]map[string]bool
}

// NewMatrix builds a matrix over tree, seeded with the stored measures.
func NewMatrix(tree []Component, stored []Measure) *Matrix {
	m := &Matrix{
		components: make(map[string]Component, len(tree)),
		children:   make(map[string][]string),
		stored:     make(map[string]map[string]Measure),
		values:     make(map[string]map[string]Measure),
		reported:   make(map[string]map[string]bool),
	}
	for _, c := range tree {
		m.components[c.Key] = c
	}
	for _, c := range tree {
		if _, ok := m.components[c.ParentKey]; ok && c.ParentKey != c.Key {
			m.children[c.ParentKey] = append(m.children[c.ParentKey], c.Key)
		}
	}
	for _, s := range stored {
		if _, ok := m.components[s.ComponentKey]; !ok {
			continue
		}
		put(m.stored, s)
		put(m.values, s)
	}
	return m
}

func put(dst map[string]map[string]Measure, ms Measure) {
	byMetric := dst[ms.ComponentKey]
	if byMetric == nil {
		byMetric = make(map[string]Measure)
		dst[ms.ComponentKey] = byMetric
	}
	byMetric[ms.Metric] = ms
}

// Set records a reported value. It returns false when the component is not in the matrix.
func (m *Matrix) Set(ms Measure) bool {
	if _, ok := m.components[ms.ComponentKey]; !ok {
		return false
	}
	put(m.values, ms)
	if m.reported[ms.ComponentKey] == nil {
		m.reported[ms.ComponentKey] = make(map[string]bool)
	}
	m.reported[ms.ComponentKey][ms.Metric] = true
	return true
}

// Value returns the current value of metric on a component.
func (m *Matrix) Value(key, metric string) (Measure, bool) {
	ms, ok := m.values[key][metric]
	return ms, ok
}

// Refreshed returns the touched components and all their ancestors, bottom-up.
func (m *Matrix) Refreshed() []string {
	seen := make(map[string]bool)
	for key := range m.reported {
		for k := key; !seen[k]; {
			c, ok := m.components[k]
			if !ok {
				break
			}
			seen[k] = true
			k = c.ParentKey
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := qualifierRank(m.components[keys[i]].Qualifier), qualifierRank(m.components[keys[j]].Qualifier)
		if ri != rj {
			return ri < rj
		}
		di, dj := m.depth(keys[i]), m.depth(keys[j])
		if di != dj {
			return di > dj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (m *Matrix) depth(key string) int {
	d := 0
	seen := map[string]bool{key: true}
	for c, ok := m.components[key]; ok; c, ok = m.components[c.ParentKey] {
		if seen[c.ParentKey] {
			break
		}
		seen[c.ParentKey] = true
		d++
	}
	return d
}

// Compute recomputes the refreshed components bottom-up and evaluates gate on each.
// A reported value always wins; otherwise a component with children gets the sum of
// its children's values.
func (m *Matrix) Compute(gate Gate) map[string]GateStatus {
	gates := make(map[string]GateStatus)
	for _, key := range m.Refreshed() {
		for metric := range reportable {
			if m.reported[key][metric] {
				continue
			}
			if sum, ok := m.sumChildren(key, metric); ok {
				put(m.values, Measure{ComponentKey: key, Metric: metric, Value: sum})
			}
		}
		m.computeViolations(key)

		values := make(map[string]float64)
		for metric, ms := range m.values[key] {
			if metric != MetricAlertStatus {
				values[metric] = ms.Value
			}
		}
		status, _ := gate.Evaluate(values)
		put(m.values, Measure{ComponentKey: key, Metric: MetricAlertStatus, Text: string(status)})
		gates[key] = status
	}
	return gates
}

func (m *Matrix) sumChildren(key, metric string) (float64, bool) {
	var sum float64
	found := false
	for _, child := range m.children[key] {
		if ms, ok := m.values[child][metric]; ok {
			sum += ms.Value
			found = true
		}
	}
	return sum, found
}

func (m *Matrix) computeViolations(key string) {
	var total float64
	found := false
	for _, metric := range []string{MetricBugs, MetricVulnerabilities, MetricCodeSmells} {
		if ms, ok := m.values[key][metric]; ok {
			total += ms.Value
			found = true
		}
	}
	if found {
		put(m.values, Measure{ComponentKey: key, Metric: MetricViolations, Value: total})
	}
}

// Changed returns the values of refreshed components that differ from what was stored,
// ordered by component and metric.
func (m *Matrix) Changed() []Measure {
	var out []Measure
	for _, key := range m.Refreshed() {
		for metric, ms := range m.values[key] {
			if old, ok := m.stored[key][metric]; ok && old.equal(ms) {
				continue
			}
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ComponentKey != out[j].ComponentKey {
			return out[i].ComponentKey < out[j].ComponentKey
		}
		return out[i].Metric < out[j].Metric
	})
	return out
}
