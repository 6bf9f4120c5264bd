package recognition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// autoLanguage asks the recognizer to detect the spoken language.
const autoLanguage = "auto"

// normalizeLanguage maps an empty hint to auto-detection.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, autoLanguage) {
		return autoLanguage
	}
	return lang
}

// buildWhisperArgs builds recognizer args for streaming timestamped lines to stdout.
func buildWhisperArgs(modelPath, audioPath, language string) []string {
	return []string{
		"-m", modelPath,
		"-l", normalizeLanguage(language),
		"-f", audioPath,
	}
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// modelResolver turns a configured model path into one model file.
type modelResolver struct {
	stat    func(name string) (os.FileInfo, error)
	readDir func(name string) ([]os.DirEntry, error)
}

func newModelResolver() modelResolver {
	return modelResolver{stat: os.Stat, readDir: os.ReadDir}
}

// resolve returns the path itself for a file, or the lexically first
// .bin/.gguf file for a directory.
func (r modelResolver) resolve(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := r.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := r.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}
