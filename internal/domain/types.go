package domain

// TranslationState tracks the translation lifecycle of a single cue.
type TranslationState string

const (
	TranslationIdle    TranslationState = "idle"
	TranslationPending TranslationState = "pending"
	TranslationDone    TranslationState = "done"
	TranslationFailed  TranslationState = "failed"
)

// Cue is one timed subtitle entry.
type Cue struct {
	ID               string           `json:"id"`
	StartTime        string           `json:"startTime"`
	EndTime          string           `json:"endTime"`
	Text             string           `json:"text"`
	Translation      *string          `json:"translation,omitempty"`
	TranslationState TranslationState `json:"translationState"`
}

// HasTranslation reports whether a translated string is attached.
func (c Cue) HasTranslation() bool {
	return c.Translation != nil
}

// SessionStatus tracks the recognition session lifecycle.
type SessionStatus string

const (
	SessionStatusIdle      SessionStatus = "idle"
	SessionStatusStarting  SessionStatus = "starting"
	SessionStatusStreaming SessionStatus = "streaming"
	SessionStatusStopping  SessionStatus = "stopping"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelPath      string `json:"modelPath"`
	WhisperPath    string `json:"whisperPath"`
	FFmpegPath     string `json:"ffmpegPath"`
	Language       string `json:"language"`
	TargetLanguage string `json:"targetLanguage"`
	Concurrency    int    `json:"concurrency"`
}

// Session stores the identity and lifecycle status of a recognition run.
type Session struct {
	ID     string        `json:"id"`
	Status SessionStatus `json:"status"`
}
