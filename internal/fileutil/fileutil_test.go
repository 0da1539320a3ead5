package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRelativePath(t *testing.T) {
	root := filepath.Join("/srv", "models")

	rel, err := RelativePath(root, filepath.Join(root, "loras", "cat.safetensors"))
	if err != nil {
		t.Fatalf("RelativePath: %v", err)
	}
	if rel != filepath.Join("loras", "cat.safetensors") {
		t.Fatalf("unexpected rel path %q", rel)
	}

	if _, err := RelativePath(root, "/etc/passwd"); err == nil {
		t.Fatal("expected error for path outside root")
	}
	if Inside(root, "/srv/models-other/x") {
		t.Fatal("sibling directory with shared prefix must not count as inside")
	}
	if !Inside(root, filepath.Join(root, "x")) {
		t.Fatal("expected direct child to be inside root")
	}
}

func TestSwapExt(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want string
	}{
		{"model.safetensors", "json", "model.json"},
		{"model.safetensors", "model.json", "model.model.json"},
		{"dir/model.ckpt", ".jpeg", "dir/model.jpeg"},
		{"noext", "json", "noext.json"},
	}
	for _, tc := range tests {
		if got := SwapExt(tc.path, tc.ext); got != tc.want {
			t.Errorf("SwapExt(%q, %q) = %q, want %q", tc.path, tc.ext, got, tc.want)
		}
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/x/y/model.safetensors"); got != "model" {
		t.Fatalf("Stem = %q", got)
	}
	if got := Stem("model.model.json"); got != "model.model" {
		t.Fatalf("Stem of dotted name = %q", got)
	}
}

func TestSameStemFilesExcludesDottedSidecar(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "pastel.safetensors")
	for _, name := range []string{"pastel.safetensors", "pastel.json", "pastel.jpeg", "pastel.model.json", "other.safetensors"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := SameStemFiles(model)
	if err != nil {
		t.Fatalf("SameStemFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 matches, got %v", files)
	}
	for _, file := range files {
		base := filepath.Base(file)
		if base == "pastel.model.json" || base == "other.safetensors" {
			t.Fatalf("unexpected match %s", base)
		}
	}
}

func TestSameStemFilesMissingPath(t *testing.T) {
	files, err := SameStemFiles(filepath.Join(t.TempDir(), "absent.safetensors"))
	if err != nil || files != nil {
		t.Fatalf("expected empty result for missing file, got %v %v", files, err)
	}
}

func TestMoveToDir(t *testing.T) {
	dir := t.TempDir()
	trash := filepath.Join(dir, ".trash")
	if err := os.MkdirAll(trash, 0o755); err != nil {
		t.Fatal(err)
	}

	present := filepath.Join(dir, "a.safetensors")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "gone.json")

	if err := MoveToDir([]string{present, missing}, trash); err != nil {
		t.Fatalf("MoveToDir: %v", err)
	}

	if _, err := os.Stat(filepath.Join(trash, "a.safetensors")); err != nil {
		t.Fatalf("file not moved: %v", err)
	}
	if _, err := os.Stat(present); !os.IsNotExist(err) {
		t.Fatalf("source still present: %v", err)
	}
}
