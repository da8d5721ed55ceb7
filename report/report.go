// Package report formats analysis results for export.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"imagededup/types"
)

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, r *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var csvHeader = []string{"group_id", "path", "reason", "angle", "scale", "distances"}

// UniformGroupID marks CSV rows listing uniform-color images
const UniformGroupID = "uniform"

// WriteCSV writes one row per group member. The angle, scale and distances
// come from the first edge that touches the member. Uniform-color images
// follow as rows with group_id "uniform".
func WriteCSV(w io.Writer, r *types.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, g := range r.Groups {
		for _, member := range g.Members {
			row := []string{strconv.Itoa(g.ID), member, g.Reason, "", "", ""}
			if e, ok := edgeFor(g, member); ok {
				row[3] = strconv.Itoa(e.Angle)
				row[4] = strconv.FormatFloat(e.Scale, 'g', -1, 64)
				row[5] = formatDistances(e)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	for _, path := range r.Summary.Uniform {
		if err := cw.Write([]string{UniformGroupID, path, "uniform color", "", "", ""}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func edgeFor(g types.DuplicateGroup, path string) (types.Edge, bool) {
	for _, e := range g.Edges {
		if e.A == path || e.B == path {
			return e, true
		}
	}
	return types.Edge{}, false
}

func formatDistances(e types.Edge) string {
	if e.Exact {
		return "exact"
	}
	parts := make([]string, 0, len(e.Distances))
	for _, d := range e.Distances {
		parts = append(parts, fmt.Sprintf("%s=%d", d.Algorithm, d.Distance))
	}
	return strings.Join(parts, ";")
}

// WriteText writes a human readable summary followed by every group
func WriteText(w io.Writer, r *types.Report) error {
	s := r.Summary
	var b strings.Builder

	fmt.Fprintf(&b, "Summary:\n")
	fmt.Fprintf(&b, "- Total images: %d\n", s.TotalImages)
	fmt.Fprintf(&b, "- Duplicate groups: %d\n", s.DuplicateGroups)
	fmt.Fprintf(&b, "- Duplicate images: %d\n", s.DuplicateImages)
	fmt.Fprintf(&b, "- Uniform-color images: %d\n", s.UniformImages)
	fmt.Fprintf(&b, "- Failed images: %d\n", s.FailedImages)
	if s.CachedImages > 0 {
		fmt.Fprintf(&b, "- Cached images: %d\n", s.CachedImages)
	}
	fmt.Fprintf(&b, "- Elapsed: %v\n", s.Elapsed.Round(time.Millisecond))
	if s.Interrupted {
		fmt.Fprintf(&b, "- Interrupted: results are partial\n")
	}

	for _, g := range r.Groups {
		fmt.Fprintf(&b, "\nGroup %d (%s):\n", g.ID, g.Reason)
		for _, m := range g.Members {
			fmt.Fprintf(&b, "  %s\n", m)
		}
	}

	if len(s.Uniform) > 0 {
		fmt.Fprintf(&b, "\nUniform-color images:\n")
		for _, path := range s.Uniform {
			fmt.Fprintf(&b, "  %s\n", path)
		}
	}

	if len(s.Failed) > 0 {
		fmt.Fprintf(&b, "\nFailed:\n")
		for _, f := range s.Failed {
			fmt.Fprintf(&b, "  %s: %s\n", f.Path, f.Error)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
