package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestExposeBinPrependsOnce verifies the local bin dir is created and prepended a single time.
func TestExposeBinPrependsOnce(t *testing.T) {
	paths := newAppPaths(filepath.Join(t.TempDir(), ".subtitle-studio"))
	t.Setenv("PATH", "/usr/bin")

	for i := 0; i < 2; i++ {
		if err := paths.exposeBin(); err != nil {
			t.Fatalf("exposeBin() error = %v", err)
		}
	}

	if info, err := os.Stat(paths.binDir()); err != nil || !info.IsDir() {
		t.Fatalf("bin dir not created: %v", err)
	}
	want := paths.binDir() + string(os.PathListSeparator) + "/usr/bin"
	if got := os.Getenv("PATH"); got != want {
		t.Fatalf("PATH = %q, want %q", got, want)
	}
}

// TestModelDir covers each shape a configured model path can take.
func TestModelDir(t *testing.T) {
	root := t.TempDir()
	paths := newAppPaths(filepath.Join(root, ".subtitle-studio"))

	existingDir := filepath.Join(root, "models")
	if err := os.MkdirAll(existingDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	notes := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(notes, []byte("not a model"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty uses app models dir", input: "  ", want: paths.modelsDir()},
		{name: "missing model file uses parent", input: filepath.Join(root, "ggml-small.bin"), want: root},
		{name: "existing directory kept", input: existingDir, want: existingDir},
		{name: "missing directory kept", input: filepath.Join(root, "later"), want: filepath.Join(root, "later")},
		{name: "existing non-model file rejected", input: notes, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := paths.modelDir(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("modelDir(%q) = %q, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("modelDir(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("modelDir(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

// TestModelDirsDeduplicates verifies the app models dir is listed once when configured explicitly.
func TestModelDirsDeduplicates(t *testing.T) {
	paths := newAppPaths(filepath.Join(t.TempDir(), ".subtitle-studio"))

	dirs := paths.modelDirs(filepath.Join(paths.modelsDir(), "ggml-tiny.bin"))
	if len(dirs) != 1 || dirs[0] != paths.modelsDir() {
		t.Fatalf("dirs = %v, want only %s", dirs, paths.modelsDir())
	}

	other := t.TempDir()
	dirs = paths.modelDirs(other)
	if len(dirs) != 2 || dirs[1] != other {
		t.Fatalf("dirs = %v, want app dir then %s", dirs, other)
	}
}

// TestFetchFile verifies a successful download lands at the destination with no partial left behind.
func TestFetchFile(t *testing.T) {
	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("model-bytes"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "models")
	dest := filepath.Join(dir, "ggml-tiny.bin")
	if err := fetchFile(context.Background(), server.Client(), server.URL, dest); err != nil {
		t.Fatalf("fetchFile() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "model-bytes" {
		t.Fatalf("content = %q", data)
	}
	if agent != "subtitle-studio" {
		t.Fatalf("user agent = %q", agent)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want only the model", len(entries))
	}
}

// TestFetchFileRejectsBadStatus verifies non-200 responses leave nothing behind.
func TestFetchFileRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	err := fetchFile(context.Background(), server.Client(), server.URL, filepath.Join(dir, "ggml-tiny.bin"))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("dir has %d entries, want none", len(entries))
	}
}
