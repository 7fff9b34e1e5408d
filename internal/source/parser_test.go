package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirongolddev/costfall/internal/model"
)

const sampleScenario = `
[[unit]]
id = "U1"
name = "Platform UK"
legal_entity = "UK"
staff = 100000
fte = 4

[[unit]]
id = "U2"
legal_entity = "UK"
non_staff = 1000.5

[[service]]
id = "S1"
name = "Platform"
tower = "Technology"

[[pool]]
id = "P1"
name = "Platform - UK"
service = "S1"
source_le = "UK"

[[assignment]]
unit = "U1"
group = "S1"
stage = "service"

[[assignment]]
unit = "U1"
group = "P1"
stage = "pool"

[[activity]]
id = "A1"
name = "Run"
pool = "P1"
metric = "M1"
units = ["U1"]

[[cell]]
row = "A1"
column = "staff"
percent = 60.5

[[metric]]
id = "M1"
name = "Headcount"
service = "S1"
source_le = "UK"
franchises = { "Franchise A" = 60, "Franchise B" = 40 }

[metric.le_allocations."Franchise A".a]
M1 = 100
OTHER = 5

[metric.le_allocations."Franchise B".b]
M1 = 100
`

// writeScenario creates a scenario file in dir and returns its DiscoveredFile.
func writeScenario(t *testing.T, dir, name, body string) DiscoveredFile {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return DiscoveredFile{Path: path, Name: filepath.ToSlash(name)}
}

func TestParseFile(t *testing.T) {
	df := writeScenario(t, t.TempDir(), "base.toml", "stray = 1\n"+sampleScenario)

	result := ParseFile(df)
	require.NoError(t, result.Err)
	sc := result.Scenario

	require.Len(t, sc.Units, 2)
	assert.Equal(t, "Platform UK", sc.Units[0].Name)
	assert.InDelta(t, 100000, sc.Units[0].Staff, 0)
	assert.InDelta(t, 1000.5, sc.Units[1].NonStaff, 0)
	require.Len(t, sc.Metrics, 1)
	assert.InDelta(t, 100, sc.Metrics[0].LEAllocations["Franchise A"]["a"]["M1"], 0)
	assert.Contains(t, strings.Join(result.Undecoded, ","), "stray")
}

func TestParseFileSyntaxError(t *testing.T) {
	df := writeScenario(t, t.TempDir(), "bad.toml", "[[unit]\nid=")
	result := ParseFile(df)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "bad.toml")
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.toml", "")
	writeScenario(t, dir, "nested/a.toml", "")
	writeScenario(t, dir, ".hidden/skip.toml", "")
	writeScenario(t, dir, "notes.txt", "")

	files, err := ScanDir(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"b.toml", "nested/a.toml"}, names)

	missing, err := ScanDir(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestBuild(t *testing.T) {
	df := writeScenario(t, t.TempDir(), "base.toml", sampleScenario)
	result := ParseFile(df)
	require.NoError(t, result.Err)

	s, err := Build(result.Scenario, Catalog{})
	require.NoError(t, err)

	assert.Equal(t, "S1", s.ServiceOf["U1"])
	assert.Equal(t, "P1", s.PoolOf["U1"])
	assert.True(t, s.Units["U2"].NonStaff.Equal(decimal.RequireFromString("1000.5")))
	assert.True(t, s.Cells.Value("A1", "Staff").Equal(decimal.RequireFromString("60.5")))

	m := s.Metrics["M1"]
	assert.True(t, m.FranchiseShare("Franchise A").Equal(decimal.NewFromInt(60)))
	assert.True(t, m.LEShare("Franchise A", "a").Equal(decimal.NewFromInt(100)))
	assert.True(t, m.LEShare("Franchise B", "b").Equal(decimal.NewFromInt(100)))
	assert.Len(t, m.LegalEntities["Franchise A"], 1, "entries keyed by other metrics are ignored")
}

func TestBuildRejectsCrossLegalEntity(t *testing.T) {
	sc := Scenario{
		Units: []UnitRecord{{ID: "U1", LegalEntity: "US"}},
		Pools: []PoolRecord{{ID: "P1", Name: "UK pool", SourceLE: "UK"}},
		Assignments: []AssignmentRecord{
			{Unit: "U1", Group: "P1", Stage: "pool"},
		},
	}
	_, err := Build(sc, Catalog{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Problems, 1)
	assert.Contains(t, verr.Problems[0], "differs from pool LE")
}

func TestBuildCollectsProblems(t *testing.T) {
	sc := Scenario{
		Units: []UnitRecord{
			{ID: "U1", LegalEntity: "UK", Staff: -5},
			{ID: "U2"},
		},
		Activities: []ActivityRecord{{ID: "A1", Name: "x", Pool: "missing"}},
		Assignments: []AssignmentRecord{
			{Unit: "U1", Group: "S1", Stage: "tower"},
		},
		Cells:   []CellRecord{{Row: "A1", Column: "Staff", Percent: 120}},
		Metrics: []MetricRecord{{ID: "M1", Franchises: map[string]float64{"Franchise Z": 10}}},
	}
	_, err := Build(sc, Catalog{Franchises: []string{"Franchise A"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	all := strings.Join(verr.Problems, "\n")
	assert.Contains(t, all, "unit #1: Staff failed gte=0")
	assert.Contains(t, all, "unit #2: LegalEntity failed required")
	assert.Contains(t, all, "unknown pool missing")
	assert.Contains(t, all, "Stage failed oneof")
	assert.Contains(t, all, "Percent failed lte=100")
	assert.Contains(t, all, `unknown franchise "Franchise Z"`)
}

func TestBuildRejectsFranchiseRange(t *testing.T) {
	sc := Scenario{
		Metrics: []MetricRecord{
			{ID: "M1", Franchises: map[string]float64{"Franchise A": 150}},
			{ID: "M2", Franchises: map[string]float64{"Franchise A": -5, "Franchise B": 105}},
			{ID: "M3", Franchises: map[string]float64{"Franchise A": 100}},
		},
	}
	_, err := Build(sc, Catalog{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{
		"metric M1: franchise Franchise A percentage 150 out of range",
		"metric M2: franchise Franchise A percentage -5 out of range",
		"metric M2: franchise Franchise B percentage 105 out of range",
	}, verr.Problems)
}

func TestBuildDuplicates(t *testing.T) {
	sc := Scenario{
		Units:    []UnitRecord{{ID: "U1", LegalEntity: "UK"}, {ID: "U1", LegalEntity: "UK"}},
		Services: []ServiceRecord{{ID: "S1", Name: "a"}, {ID: "S2", Name: "b"}},
		Assignments: []AssignmentRecord{
			{Unit: "U1", Group: "S1", Stage: "service"},
			{Unit: "U1", Group: "S2", Stage: "service"},
		},
	}
	_, err := Build(sc, Catalog{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit U1 declared twice")
	assert.Contains(t, err.Error(), "assigned to services S1 and S2")
}

func TestScenarioMerge(t *testing.T) {
	var a Scenario
	a.Merge(Scenario{Units: []UnitRecord{{ID: "U1"}}, Cells: []CellRecord{{Row: "A1"}}})
	a.Merge(Scenario{Units: []UnitRecord{{ID: "U2"}}})
	assert.Equal(t, 3, a.Records())
	assert.Equal(t, model.Stage("pool"), model.StagePool)
}

func TestEncodeReloads(t *testing.T) {
	sc := Scenario{
		Pools:       []PoolRecord{{ID: "pool-ops-uk", Name: "Ops - UK", Service: "S1", SourceLE: "UK"}},
		Assignments: []AssignmentRecord{{Unit: "U1", Group: "pool-ops-uk", Stage: "pool"}},
	}
	var b strings.Builder
	require.NoError(t, Encode(&b, sc))
	assert.NotContains(t, b.String(), "[[unit]]")
	assert.Contains(t, b.String(), "[[pool]]")

	df := writeScenario(t, t.TempDir(), "pools.toml", b.String())
	result := ParseFile(df)
	require.NoError(t, result.Err)
	assert.Empty(t, result.Undecoded)
	assert.Equal(t, sc.Pools, result.Scenario.Pools)
	assert.Equal(t, sc.Assignments, result.Scenario.Assignments)
}
