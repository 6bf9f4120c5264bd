package diagnostics

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"subtitle-studio/internal/domain"
)

// Backend describes the translation endpoint to validate.
type Backend struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Checker validates external tools, model files and translation credentials.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	tempDir    func() string
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		tempDir:    os.TempDir,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings, backend Backend) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", settings.FFmpegPath),
		c.checkTool("whisper", settings.WhisperPath),
		c.checkModelPath(settings.ModelPath),
		c.checkWorkspace(c.tempDir()),
		checkBackend(backend),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a CLI executable resolves, either on PATH or as a direct path.
func (c *Checker) checkTool(id, command string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:    "tool_" + id,
		Name:  id,
		Scope: domain.DiagnosticScopeRecognition,
	}

	if strings.TrimSpace(command) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("No executable configured for %s.", id)
		item.Hint = "Set the executable path in settings."
		return item
	}

	path, err := c.lookPath(command)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found: %s", command)
		item.Hint = "Install it and ensure the binary is on PATH, or set its full path in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkModelPath validates configured model file or model directory.
func (c *Checker) checkModelPath(modelPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:    "model_path",
		Name:  "Model path",
		Scope: domain.DiagnosticScopeRecognition,
	}

	if strings.TrimSpace(modelPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model path is empty."
		item.Hint = "Set a valid model file path or a directory containing whisper models."
		return item
	}

	info, err := c.stat(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model path does not exist: %s", modelPath)
		} else {
			item.Message = fmt.Sprintf("Cannot access model path: %s", modelPath)
		}
		item.Hint = "Download a whisper.cpp model and configure the path in settings."
		return item
	}

	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model file found: %s", modelPath)
		return item
	}

	entries, err := c.readDir(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelPath)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory is valid: %s", modelPath)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No model files found in directory: %s", modelPath)
	item.Hint = "Place a .bin or .gguf model file in this directory or point to a model file directly."
	return item
}

// checkWorkspace validates the directory used for extracted audio is writable.
func (c *Checker) checkWorkspace(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:    "workspace",
		Name:  "Audio workspace",
		Scope: domain.DiagnosticScopeRecognition,
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create workspace directory: %s", dir)
		item.Hint = "Set TMPDIR to a writable location."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Workspace directory is not writable: %s", dir)
		item.Hint = "Set TMPDIR to a writable location."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkBackend validates translation credentials without calling the endpoint.
func checkBackend(backend Backend) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:    "translation_backend",
		Name:  "Translation backend",
		Scope: domain.DiagnosticScopeTranslation,
	}

	if strings.TrimSpace(backend.APIKey) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No API key configured."
		item.Hint = "Set SUBTITLE_STUDIO_API_KEY or OPENAI_API_KEY, or add it to a .env file."
		return item
	}

	if backend.BaseURL != "" {
		u, err := url.Parse(backend.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Invalid base URL: %s", backend.BaseURL)
			item.Hint = "Use an absolute http(s) URL such as https://api.openai.com/v1/."
			return item
		}
	}

	if strings.TrimSpace(backend.Model) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No model configured."
		item.Hint = "Set SUBTITLE_STUDIO_MODEL."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using model %s", backend.Model)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	tempDir func() string,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		tempDir:    tempDir,
	}
}
