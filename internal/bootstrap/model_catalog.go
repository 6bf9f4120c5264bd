package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"subtitle-studio/internal/domain"
)

// whisperModelBaseURL hosts the ggml model files; overridden in tests.
var whisperModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var whisperModelCatalog = []domain.WhisperModelOption{
	{Size: "tiny", Name: "Tiny", FileName: "ggml-tiny.bin", SizeLabel: "~75 MB", Description: "Fastest multilingual model."},
	{Size: "tiny.en", Name: "Tiny (English)", FileName: "ggml-tiny.en.bin", SizeLabel: "~75 MB", Description: "Fastest, English-only."},
	{Size: "base", Name: "Base", FileName: "ggml-base.bin", SizeLabel: "~142 MB", Description: "Balanced speed and quality."},
	{Size: "base.en", Name: "Base (English)", FileName: "ggml-base.en.bin", SizeLabel: "~142 MB", Description: "Balanced, English-only."},
	{Size: "small", Name: "Small", FileName: "ggml-small.bin", SizeLabel: "~466 MB", Description: "Higher quality multilingual model."},
	{Size: "medium", Name: "Medium", FileName: "ggml-medium.bin", SizeLabel: "~1.5 GB", Description: "High quality multilingual model."},
	{Size: "large-v3", Name: "Large v3", FileName: "ggml-large-v3.bin", SizeLabel: "~2.9 GB", Description: "Best quality, slowest."},
	{Size: "large-v3-turbo", Name: "Large v3 Turbo", FileName: "ggml-large-v3-turbo.bin", SizeLabel: "~1.6 GB", Description: "Faster large-v3 variant."},
}

// ListWhisperModels returns the model catalog with install state resolved against known model dirs.
func (a *App) ListWhisperModels() []domain.WhisperModelOption {
	models := make([]domain.WhisperModelOption, len(whisperModelCatalog))
	copy(models, whisperModelCatalog)

	settings, err := a.Store.Load()
	if err != nil {
		a.log.Warn().Err(err).Msg("load settings for model catalog")
	}
	markInstalledModels(models, a.paths.modelDirs(normalizeSettings(settings).ModelPath))
	return models
}

// DownloadWhisperModel fetches the ggml file for size and points settings.ModelPath at it.
func (a *App) DownloadWhisperModel(size string) (domain.Settings, error) {
	model, found := whisperModelBySize(strings.TrimSpace(size))
	if !found {
		return domain.Settings{}, fmt.Errorf("unknown model size: %q", size)
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	downloadDir, err := a.paths.modelDir(settings.ModelPath)
	if err != nil {
		return domain.Settings{}, err
	}

	targetPath := filepath.Join(downloadDir, model.FileName)
	a.log.Info().Str("model", model.Size).Str("path", targetPath).Msg("downloading whisper model")
	ctx, cancel := context.WithTimeout(context.Background(), modelDownloadTimeout)
	defer cancel()
	if err := fetchFile(ctx, nil, whisperModelBaseURL+model.FileName, targetPath); err != nil {
		return domain.Settings{}, fmt.Errorf("download model %s: %w", model.Name, err)
	}

	settings.ModelPath = targetPath
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

func whisperModelBySize(size string) (domain.WhisperModelOption, bool) {
	return lo.Find(whisperModelCatalog, func(model domain.WhisperModelOption) bool {
		return model.Size == size
	})
}

func markInstalledModels(models []domain.WhisperModelOption, modelDirs []string) {
	for i := range models {
		for _, dir := range modelDirs {
			candidate := filepath.Join(dir, models[i].FileName)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			models[i].Installed = true
			models[i].LocalPath = candidate
			break
		}
	}
}
