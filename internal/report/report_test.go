// internal/report/report_test.go
package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/focusmap/internal/tabstops"
)

var t0 = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func event(target string, offset int) tabstops.Event {
	return tabstops.Event{Timestamp: t0.Add(time.Duration(offset) * time.Second), Target: []string{target}, HTML: "<a>"}
}

func samplePages() []PageReport {
	ok := tabstops.Recording{Events: []tabstops.Event{event("#a", 0), event("#b", 1)}, Stop: tabstops.StopCycle}
	bad := tabstops.Recording{Events: []tabstops.Event{event("#b", 0), event("#a", 1), event("#x", 2)}, Stop: tabstops.StopLeftPage}

	pass := NewPageReport("https://example.com/", ModeLive, ok, tabstops.Analyze([]string{"#a", "#b"}, ok.Events))
	failed := NewPageReport("page.html", ModeStatic, bad, tabstops.Analyze([]string{"#a", "#b", "#c"}, bad.Events))
	failed.Overlay = "out/page.overlay.html"
	errored := PageReport{Target: "https://down.example/", Mode: ModeStatic, Error: "connection refused"}
	return []PageReport{pass, failed, errored}
}

func TestNewPageReport(t *testing.T) {
	pages := samplePages()

	assert.True(t, pages[0].Passed)
	assert.False(t, pages[0].Failed())
	assert.Equal(t, tabstops.StopCycle, pages[0].StopReason)

	want := []Stop{
		{Position: 1, Target: []string{"#b"}, HTML: "<a>", Timestamp: t0},
		{Position: 2, Target: []string{"#a"}, HTML: "<a>", Timestamp: t0.Add(time.Second), Problem: ProblemOutOfOrder},
		{Position: 3, Target: []string{"#x"}, HTML: "<a>", Timestamp: t0.Add(2 * time.Second), Problem: ProblemUnexpected},
	}
	if diff := cmp.Diff(want, pages[1].Stops); diff != "" {
		t.Errorf("stops mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"#c"}, pages[1].Missing)
	assert.True(t, pages[1].Failed())
	assert.True(t, pages[2].Failed())
}

func TestNewComputesSummary(t *testing.T) {
	r := New("1.2.3", t0.In(time.FixedZone("X", 3600)), samplePages())

	_, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "focusmap", r.Tool)
	assert.Equal(t, time.UTC, r.CreatedAt.Location())
	assert.Equal(t, Summary{Pages: 3, Passed: 1, Failed: 1, Errored: 1}, r.Summary)
	assert.True(t, r.Failed())

	clean := New("1.2.3", t0, samplePages()[:1])
	assert.False(t, clean.Failed())
}

func TestEncoders(t *testing.T) {
	r := New("dev", t0, samplePages())

	t.Run("json", func(t *testing.T) {
		enc, err := NewEncoder("JSON")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, enc.Encode(&buf, r))

		var back Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
		if diff := cmp.Diff(*r, back); diff != "" {
			t.Errorf("json changed the report (-want +got):\n%s", diff)
		}
		assert.Contains(t, buf.String(), `"out_of_order"`)
	})

	t.Run("yaml", func(t *testing.T) {
		enc, err := NewEncoder("yml")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, enc.Encode(&buf, r))

		var back Report
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, r.Summary, back.Summary)
		assert.Equal(t, r.Pages[1].Missing, back.Pages[1].Missing)
		assert.Contains(t, buf.String(), "stop_reason: left_page")
	})

	t.Run("text", func(t *testing.T) {
		enc, err := NewEncoder("")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, enc.Encode(&buf, r))
		out := buf.String()

		assert.Contains(t, out, r.ID)
		assert.Contains(t, out, "pages: 3  passed: 1  failed: 1  errored: 1")
		assert.Contains(t, out, "[PASS]")
		assert.Contains(t, out, "https://example.com/ (live, stopped: cycle)")
		assert.Contains(t, out, "[FAIL]")
		assert.Contains(t, out, "out_of_order")
		assert.Contains(t, out, "missing: #c")
		assert.Contains(t, out, "overlay: out/page.overlay.html")
		assert.Contains(t, out, "https://down.example/: connection refused")
	})

	_, err := NewEncoder("xml")
	assert.EqualError(t, err, "unsupported output format: xml")
}

func TestSARIFEncoder(t *testing.T) {
	r := New("dev", t0, samplePages())
	enc, err := NewEncoder(FormatSARIF)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, enc.Encode(&buf, r))

	var log struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name    string `json:"name"`
					Version string `json:"version"`
					Rules   []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Invocations []struct {
				ExecutionSuccessful bool `json:"executionSuccessful"`
			} `json:"invocations"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
					} `json:"physicalLocation"`
					LogicalLocations []struct {
						FullyQualifiedName string `json:"fullyQualifiedName"`
					} `json:"logicalLocations"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	assert.Equal(t, SARIFVersion, log.Version)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]
	assert.Equal(t, "focusmap", run.Tool.Driver.Name)
	assert.Equal(t, "dev", run.Tool.Driver.Version)
	assert.Len(t, run.Tool.Driver.Rules, 4)
	assert.False(t, run.Invocations[0].ExecutionSuccessful, "one page errored")

	var rules []string
	for _, res := range run.Results {
		rules = append(rules, res.RuleID)
	}
	// The passing page adds nothing. The failed page has an out of order stop, an
	// unexpected stop and a missing one. The errored page adds a scan error.
	assert.Equal(t, []string{RuleOutOfOrder, RuleUnexpected, RuleMissing, RuleScanError}, rules)
	assert.Equal(t, "warning", run.Results[1].Level)
	assert.Equal(t, "page.html", run.Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, "#a", run.Results[0].Locations[0].LogicalLocations[0].FullyQualifiedName)
	assert.Equal(t, "#c", run.Results[2].Locations[0].LogicalLocations[0].FullyQualifiedName)
	assert.Empty(t, run.Results[3].Locations[0].LogicalLocations)
}

func TestSARIFEncoderCleanScan(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sarifEncoder{}.Encode(&buf, New("dev", t0, samplePages()[:1])))
	assert.Contains(t, buf.String(), `"results": []`)
}

func TestWrite(t *testing.T) {
	r := New("dev", t0, samplePages()[:1])

	var stdout bytes.Buffer
	require.NoError(t, Write(r, FormatJSON, "-", &stdout))
	assert.Contains(t, stdout.String(), r.ID)

	path := filepath.Join(t.TempDir(), "nested", "report.yaml")
	require.NoError(t, Write(r, FormatYAML, path, &stdout))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id: "+r.ID)

	assert.Error(t, Write(r, "xml", "", &stdout))
}

func TestPageRoundTrip(t *testing.T) {
	page := samplePages()[1]
	data, err := MarshalPage(page)
	require.NoError(t, err)
	back, err := UnmarshalPage(data)
	require.NoError(t, err)
	if diff := cmp.Diff(page, back); diff != "" {
		t.Errorf("page changed (-want +got):\n%s", diff)
	}

	_, err = UnmarshalPage([]byte("{"))
	assert.Error(t, err)
}
