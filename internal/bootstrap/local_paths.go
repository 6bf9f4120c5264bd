package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

const modelDownloadTimeout = 45 * time.Minute

// appPaths locates the per-user tool and model directories.
type appPaths struct {
	root string
}

func newAppPaths(root string) appPaths {
	return appPaths{root: filepath.Clean(root)}
}

func (p appPaths) binDir() string    { return filepath.Join(p.root, "bin") }
func (p appPaths) modelsDir() string { return filepath.Join(p.root, "models") }

// exposeBin puts binDir first on PATH so user-installed ffmpeg and whisper-cli resolve.
func (p appPaths) exposeBin() error {
	bin := p.binDir()
	if err := os.MkdirAll(bin, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", bin, err)
	}

	current := os.Getenv("PATH")
	entries := lo.Map(filepath.SplitList(current), func(entry string, _ int) string {
		return filepath.Clean(entry)
	})
	if lo.Contains(entries, bin) {
		return nil
	}
	if current == "" {
		return os.Setenv("PATH", bin)
	}
	return os.Setenv("PATH", bin+string(os.PathListSeparator)+current)
}

// modelDir maps a configured model path (file, directory, or empty) to the directory
// that holds model files. A path to an existing non-model file is rejected.
func (p appPaths) modelDir(modelPath string) (string, error) {
	trimmed := strings.TrimSpace(modelPath)
	if trimmed == "" {
		return p.modelsDir(), nil
	}

	info, err := os.Stat(trimmed)
	switch {
	case err == nil && info.IsDir():
		return trimmed, nil
	case err == nil && !isModelFile(trimmed):
		return "", fmt.Errorf("model path points to non-model file: %s", trimmed)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("check model path: %w", err)
	case isModelFile(trimmed):
		return filepath.Dir(trimmed), nil
	default:
		return trimmed, nil
	}
}

// modelDirs lists every directory a catalog model may already live in.
func (p appPaths) modelDirs(modelPath string) []string {
	dirs := []string{p.modelsDir()}
	if strings.TrimSpace(modelPath) != "" {
		if dir, err := p.modelDir(modelPath); err == nil {
			dirs = append(dirs, dir)
		}
	}
	return lo.Uniq(lo.Map(dirs, func(dir string, _ int) string {
		return filepath.Clean(dir)
	}))
}

func isModelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".bin" || ext == ".gguf"
}

// fetchFile downloads sourceURL into dest. The body lands in a temp file next to dest
// and is renamed over it only after a complete write.
func fetchFile(ctx context.Context, client *http.Client, sourceURL, dest string) (err error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "subtitle-studio")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected HTTP status %s", sourceURL, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	_, copyErr := io.Copy(tmp, resp.Body)
	if err := errors.Join(copyErr, tmp.Close()); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move %s into place: %w", dest, err)
	}
	return nil
}
