package measure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
)

type fakeRepo struct {
	tree     []Component
	measures map[string]Measure
	loaded   []string
	saves    int
	loadErr  error
}

func newFakeRepo(tree []Component, stored ...Measure) *fakeRepo {
	r := &fakeRepo{tree: tree, measures: map[string]Measure{}}
	for _, ms := range stored {
		r.measures[ms.ComponentKey+"/"+ms.Metric] = ms
	}
	return r
}

func (r *fakeRepo) LoadTree(_ context.Context, keys []string) ([]Component, []Measure, error) {
	if r.loadErr != nil {
		return nil, nil, r.loadErr
	}
	r.loaded = keys
	var out []Measure
	for _, ms := range r.measures {
		out = append(out, ms)
	}
	return r.tree, out, nil
}

func (r *fakeRepo) SaveMeasures(_ context.Context, ms []Measure) error {
	r.saves++
	for _, m := range ms {
		r.measures[m.ComponentKey+"/"+m.Metric] = m
	}
	return nil
}

func (r *fakeRepo) value(key, metric string) (Measure, bool) {
	ms, ok := r.measures[key+"/"+metric]
	return ms, ok
}

// proj
// ├── proj:src         (touched through a.go)
// │   ├── proj:src/a.go
// │   └── proj:src/b.go
// └── proj:lib
func sampleTree() []Component {
	return []Component{
		{Key: "proj", Qualifier: "TRK"},
		{Key: "proj:src", Qualifier: "DIR", ParentKey: "proj"},
		{Key: "proj:lib", Qualifier: "DIR", ParentKey: "proj"},
		{Key: "proj:src/a.go", Qualifier: "FIL", ParentKey: "proj:src"},
		{Key: "proj:src/b.go", Qualifier: "FIL", ParentKey: "proj:src"},
	}
}

func num(key, metric string, v float64) Measure {
	return Measure{ComponentKey: key, Metric: metric, Value: v}
}

func TestRefresh_RollsUpBottomUp(t *testing.T) {
	repo := newFakeRepo(sampleTree(),
		num("proj:src/b.go", MetricBugs, 1),
		num("proj:lib", MetricBugs, 5),
		num("proj:lib", MetricNcloc, 100),
		num("proj", MetricBugs, 6),
		Measure{ComponentKey: "proj", Metric: MetricAlertStatus, Text: "ERROR"},
	)

	res, err := Refresh(context.Background(), repo, DefaultGate, []Measure{
		num("proj:src/a.go", MetricBugs, 2),
		num("proj:src/a.go", MetricNcloc, 50),
	})
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	tests := []struct {
		key, metric string
		want        float64
	}{
		{"proj:src/a.go", MetricBugs, 2},
		{"proj:src/a.go", MetricViolations, 2},
		{"proj:src", MetricBugs, 3},
		{"proj:src", MetricNcloc, 50},
		{"proj", MetricBugs, 8},
		{"proj", MetricNcloc, 150},
		{"proj", MetricViolations, 8},
	}
	for _, tt := range tests {
		got, ok := repo.value(tt.key, tt.metric)
		if !ok || got.Value != tt.want {
			t.Errorf("%s %s = %v (stored %v), want %v", tt.key, tt.metric, got.Value, ok, tt.want)
		}
	}

	// proj alert_status stays ERROR, so it is not rewritten.
	if res.Changed != 11 {
		t.Errorf("Changed = %d, want 11", res.Changed)
	}
	for _, key := range []string{"proj", "proj:src", "proj:src/a.go"} {
		if res.Gates[key] != GateError {
			t.Errorf("gate of %s = %s, want ERROR", key, res.Gates[key])
		}
	}
	if _, ok := res.Gates["proj:lib"]; ok {
		t.Error("untouched sibling should not be refreshed")
	}
	if got, _ := repo.value("proj:lib", MetricBugs); got.Value != 5 {
		t.Errorf("sibling value changed to %v", got.Value)
	}
}

func TestRefresh_WritesOnlyChangedMeasures(t *testing.T) {
	repo := newFakeRepo(sampleTree())
	reported := []Measure{num("proj:src/a.go", MetricBugs, 0), num("proj:src/a.go", MetricCodeSmells, 4)}

	first, err := Refresh(context.Background(), repo, DefaultGate, reported)
	if err != nil {
		t.Fatal(err)
	}
	if first.Changed == 0 || repo.saves != 1 {
		t.Fatalf("first refresh: changed=%d saves=%d", first.Changed, repo.saves)
	}

	second, err := Refresh(context.Background(), repo, DefaultGate, reported)
	if err != nil {
		t.Fatal(err)
	}
	if second.Changed != 0 {
		t.Errorf("second refresh changed %d measures, want 0", second.Changed)
	}
	if repo.saves != 1 {
		t.Errorf("SaveMeasures called %d times, want 1", repo.saves)
	}
	if second.Gates["proj"] != GateOK {
		t.Errorf("gate = %s, want OK", second.Gates["proj"])
	}
}

func TestRefresh_ReportedValueWinsOverChildren(t *testing.T) {
	repo := newFakeRepo(sampleTree(), num("proj:src/a.go", MetricNcloc, 10))

	_, err := Refresh(context.Background(), repo, DefaultGate, []Measure{num("proj:src", MetricNcloc, 999)})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := repo.value("proj:src", MetricNcloc); got.Value != 999 {
		t.Errorf("dir ncloc = %v, want 999", got.Value)
	}
	if got, _ := repo.value("proj", MetricNcloc); got.Value != 999 {
		t.Errorf("project ncloc = %v, want 999", got.Value)
	}
}

func TestRefresh_UnknownComponentIgnored(t *testing.T) {
	repo := newFakeRepo(sampleTree())

	res, err := Refresh(context.Background(), repo, DefaultGate, []Measure{num("other", MetricBugs, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Ignored != 1 || res.Changed != 0 || repo.saves != 0 {
		t.Errorf("result = %+v, saves = %d", res, repo.saves)
	}
}

func TestRefresh_NothingReported(t *testing.T) {
	repo := newFakeRepo(sampleTree())
	res, err := Refresh(context.Background(), repo, DefaultGate, nil)
	if err != nil || res.Changed != 0 {
		t.Fatalf("Refresh() = %+v, %v", res, err)
	}
	if repo.loaded != nil {
		t.Error("tree should not be loaded for an empty report")
	}
}

func TestRefresh_LoadError(t *testing.T) {
	repo := newFakeRepo(nil)
	repo.loadErr = errors.New("db down")
	_, err := Refresh(context.Background(), repo, DefaultGate, []Measure{num("proj", MetricBugs, 1)})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("Refresh() error = %v", err)
	}
}

func TestRefreshedOrder(t *testing.T) {
	m := NewMatrix(sampleTree(), nil)
	m.Set(num("proj:src/b.go", MetricBugs, 1))
	m.Set(num("proj:lib", MetricBugs, 1))

	got := strings.Join(m.Refreshed(), " ")
	want := "proj:src/b.go proj:lib proj:src proj"
	if got != want {
		t.Errorf("Refreshed() = %q, want %q", got, want)
	}
}

func TestRefreshedOrder_NestedDirectories(t *testing.T) {
	tree := []Component{
		{Key: "p", Qualifier: "TRK"},
		{Key: "p:a", Qualifier: "DIR", ParentKey: "p"},
		{Key: "p:a/b", Qualifier: "DIR", ParentKey: "p:a"},
		{Key: "p:a/b/f", Qualifier: "FIL", ParentKey: "p:a/b"},
	}
	m := NewMatrix(tree, nil)
	m.Set(num("p:a/b/f", MetricBugs, 2))
	m.Compute(DefaultGate)

	if got := strings.Join(m.Refreshed(), " "); got != "p:a/b/f p:a/b p:a p" {
		t.Errorf("Refreshed() = %q", got)
	}
	if ms, _ := m.Value("p", MetricBugs); ms.Value != 2 {
		t.Errorf("root bugs = %v, want 2", ms.Value)
	}
}

func TestParseReport(t *testing.T) {
	out := []byte(`{"measures": [
		{"component": "proj:src/a.go", "metric": "bugs", "value": 2},
		{"metric": "ncloc", "value": 120}
	]}`)

	got, err := ParseReport("proj", out)
	if err != nil {
		t.Fatalf("ParseReport() error: %v", err)
	}
	want := []Measure{num("proj:src/a.go", MetricBugs, 2), num("proj", MetricNcloc, 120)}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("ParseReport() = %v, want %v", got, want)
	}
}

func TestParseReport_Invalid(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"not json", "analysis done"},
		{"unknown metric", `{"measures":[{"metric":"coverage","value":80}]}`},
		{"missing value", `{"measures":[{"metric":"bugs"}]}`},
		{"negative value", `{"measures":[{"metric":"bugs","value":-1}]}`},
		{"unknown field", `{"measures":[], "extra": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseReport("proj", []byte(tt.out)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseReport_Empty(t *testing.T) {
	got, err := ParseReport("proj", []byte("  \n"))
	if err != nil || got != nil {
		t.Errorf("ParseReport(empty) = %v, %v", got, err)
	}
}

func TestParseGate(t *testing.T) {
	g, err := ParseGate("bugs>0, ncloc<10")
	if err != nil {
		t.Fatalf("ParseGate() error: %v", err)
	}
	var conds []string
	for _, c := range g.Conditions {
		conds = append(conds, c.String())
	}
	sort.Strings(conds)
	if strings.Join(conds, ",") != "bugs>0,ncloc<10" {
		t.Errorf("conditions = %v", conds)
	}

	if g, _ := ParseGate(""); len(g.Conditions) != len(DefaultGate.Conditions) {
		t.Error("empty gate should be the default gate")
	}

	for _, bad := range []string{"bugs", ">0", "coverage<80", "bugs>many"} {
		if _, err := ParseGate(bad); err == nil {
			t.Errorf("ParseGate(%q) should fail", bad)
		}
	}
}

func TestGateEvaluate(t *testing.T) {
	status, failed := DefaultGate.Evaluate(map[string]float64{MetricBugs: 0, MetricVulnerabilities: 2})
	if status != GateError || len(failed) != 1 || failed[0].Metric != MetricVulnerabilities {
		t.Errorf("Evaluate() = %s, %v", status, failed)
	}

	status, _ = DefaultGate.Evaluate(map[string]float64{MetricNcloc: 10})
	if status != GateOK {
		t.Errorf("missing metrics should pass, got %s", status)
	}
}
