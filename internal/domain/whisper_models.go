package domain

// WhisperModelOption describes one ggml model size the recognizer can load.
type WhisperModelOption struct {
	Size        string `json:"size"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Installed   bool   `json:"installed"`
	LocalPath   string `json:"localPath,omitempty"`
}
