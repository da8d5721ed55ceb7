package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"imagededup/types"
)

func sampleReport() *types.Report {
	return &types.Report{
		Groups: []types.DuplicateGroup{
			{
				ID:      1,
				Members: []string{"/p/a.png", "/p/b.png"},
				Reason:  "dHash+aHash similar (rotated 90°)",
				Edges: []types.Edge{{
					A: "/p/a.png", B: "/p/b.png", Angle: 90, Scale: 1,
					Distances: []types.AlgorithmDistance{
						{Algorithm: types.DHash, Distance: 2, Threshold: 8, Passed: true},
						{Algorithm: types.AHash, Distance: 1, Threshold: 2, Passed: true},
					},
				}},
			},
			{
				ID:      2,
				Members: []string{"/p/c.png", "/p/c_copy.png"},
				Reason:  "identical file",
				Edges:   []types.Edge{{A: "/p/c.png", B: "/p/c_copy.png", Exact: true, Scale: 1}},
			},
		},
		Summary: types.Summary{
			TotalImages:     6,
			DuplicateGroups: 2,
			DuplicateImages: 4,
			UniformImages:   1,
			Uniform:         []string{"/p/white.png"},
			FailedImages:    1,
			Failed:          []types.FailedImage{{Path: "/p/bad.png", Error: "decode_failure: corrupt"}},
			Elapsed:         1500 * time.Millisecond,
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Groups []struct {
			ID      int      `json:"id"`
			Members []string `json:"members"`
		} `json:"groups"`
		Summary struct {
			TotalImages  int      `json:"total_images"`
			FailedImages int      `json:"failed_images"`
			Uniform      []string `json:"uniform"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Groups) != 2 || decoded.Groups[1].Members[1] != "/p/c_copy.png" {
		t.Errorf("groups = %+v", decoded.Groups)
	}
	if decoded.Summary.TotalImages != 6 || decoded.Summary.FailedImages != 1 ||
		len(decoded.Summary.Uniform) != 1 || decoded.Summary.Uniform[0] != "/p/white.png" {
		t.Errorf("summary = %+v", decoded.Summary)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want header + 4 members + 1 uniform", len(rows))
	}
	want := []string{"1", "/p/b.png", "dHash+aHash similar (rotated 90°)", "90", "1", "dhash=2;ahash=1"}
	for i, v := range want {
		if rows[2][i] != v {
			t.Errorf("row[2][%d] = %q, want %q", i, rows[2][i], v)
		}
	}
	if rows[3][5] != "exact" {
		t.Errorf("exact edge distances = %q", rows[3][5])
	}
	if rows[5][0] != UniformGroupID || rows[5][1] != "/p/white.png" || rows[5][2] != "uniform color" {
		t.Errorf("uniform row = %v", rows[5])
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"- Total images: 6",
		"Group 2 (identical file):",
		"  /p/c_copy.png",
		"Uniform-color images:\n  /p/white.png",
		"  /p/bad.png: decode_failure: corrupt",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
