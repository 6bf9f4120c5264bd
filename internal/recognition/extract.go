package recognition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Audio is a normalized recognizer input produced by Extractor.
type Audio struct {
	Path       string
	CommandLog CommandLog
	tempDir    string
	removeAll  func(path string) error
}

// Cleanup removes the temporary workspace holding the audio file.
func (a *Audio) Cleanup() error {
	if a == nil || a.tempDir == "" {
		return nil
	}
	if err := a.removeAll(a.tempDir); err != nil {
		return err
	}
	a.tempDir = ""
	return nil
}

// Extractor demuxes media into 16 kHz mono PCM WAV via ffmpeg.
type Extractor struct {
	ffmpegPath string
	runner     commandRunner
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	stat       func(name string) (os.FileInfo, error)
}

// NewExtractor constructs the production extractor with OS dependencies.
func NewExtractor(ffmpegPath string) *Extractor {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Extractor{
		ffmpegPath: ffmpegPath,
		runner:     &execRunner{},
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		stat:       os.Stat,
	}
}

// Extract converts inputPath into a temporary WAV file.
// The caller owns the returned Audio and must call Cleanup.
func (e *Extractor) Extract(ctx context.Context, inputPath string) (*Audio, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, &ProcessError{
			Stage:   "extracting",
			Message: "input media path is required",
		}
	}

	if _, err := e.stat(inputPath); err != nil {
		return nil, &ProcessError{
			Stage:   "extracting",
			Message: fmt.Sprintf("cannot access input media: %s", inputPath),
			Err:     err,
		}
	}

	tempDir, err := e.mkdirTemp("", "subtitle-studio-*")
	if err != nil {
		return nil, &ProcessError{
			Stage:   "extracting",
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}

	outPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	args := buildFFmpegArgs(inputPath, outPath)

	result, runErr := e.runner.Run(ctx, e.ffmpegPath, args...)
	log := CommandLog{
		Command:  e.ffmpegPath,
		Args:     args,
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}
	if runErr != nil {
		_ = e.removeAll(tempDir)
		return nil, &ProcessError{
			Stage:      "extracting",
			Message:    "ffmpeg audio conversion failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := e.stat(outPath); err != nil {
		_ = e.removeAll(tempDir)
		return nil, &ProcessError{
			Stage:      "extracting",
			Message:    "ffmpeg completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	return &Audio{
		Path:       outPath,
		CommandLog: log,
		tempDir:    tempDir,
		removeAll:  e.removeAll,
	}, nil
}
