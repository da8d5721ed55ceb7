package scanner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"imagededup/types"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(ctx context.Context, src Source) []string {
	var out []string
	for p := range src.Paths(ctx) {
		out = append(out, p)
	}
	return out
}

func TestFileSource(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.png"))
	touch(t, filepath.Join(root, "b.JPG"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "nested", "c.webp"))
	touch(t, filepath.Join(root, "nested", "deeper", "d.tiff"))

	tests := []struct {
		name      string
		recursive bool
		want      []string
	}{
		{"flat", false, []string{"a.png", "b.JPG"}},
		{"recursive", true, []string{"a.png", "b.JPG", "nested/c.webp", "nested/deeper/d.tiff"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want []string
			for _, w := range tt.want {
				want = append(want, filepath.Join(root, filepath.FromSlash(w)))
			}
			src := NewFileSource(root, tt.recursive)
			got := collect(context.Background(), src)
			if !slices.Equal(got, want) {
				t.Errorf("Paths() = %v, want %v", got, want)
			}
			if again := collect(context.Background(), src); !slices.Equal(again, got) {
				t.Errorf("second pass = %v, want %v", again, got)
			}
		})
	}
}

func TestFileSourceStopsEarly(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"1.png", "2.png", "3.png"} {
		touch(t, filepath.Join(root, name))
	}

	src := NewFileSource(root, false)
	n := 0
	for range src.Paths(context.Background()) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("consumer break yielded %d paths", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := collect(ctx, src); len(got) != 0 {
		t.Errorf("cancelled walk yielded %v", got)
	}
}

func TestStaticSourceFiltersExtensions(t *testing.T) {
	src := StaticSource{"/x/a.png", "/x/readme.md", "/x/b.bmp"}
	got := collect(context.Background(), src)
	if !slices.Equal(got, []string{"/x/a.png", "/x/b.bmp"}) {
		t.Errorf("Paths() = %v", got)
	}
}

func TestCountFiles(t *testing.T) {
	src := StaticSource{"a.png", "b.png", "c.tif", "d.gif"}
	stats := CountFiles(context.Background(), src)
	if stats.TotalFiles != 4 || stats.TifFiles != 1 || stats.ByFormat["png"] != 2 {
		t.Errorf("CountFiles() = %+v", stats)
	}
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf)
	tracker.Observe(types.ProgressEvent{Stage: types.StageSignature, Index: 1, Total: 3, CurrentFile: "a.png"})
	tracker.Observe(types.ProgressEvent{Stage: types.StageSignature, Index: 2, Total: 3, CurrentFile: "b.png", Failed: true})
	tracker.Observe(types.ProgressEvent{Stage: types.StageSignature, Index: 3, Total: 3, CurrentFile: "c.png"})
	if tracker.Errors() != 1 {
		t.Errorf("Errors() = %d, want 1", tracker.Errors())
	}
	tracker.Stop()

	out := buf.String()
	if !strings.Contains(out, "Progress [signature]: 3/3 (Errors: 1)") {
		t.Errorf("unexpected output %q", out)
	}
}
