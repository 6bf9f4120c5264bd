package subtitle

import (
	"regexp"
	"strings"
)

// EndOfStream is the chunk value that announces no more cues will arrive.
const EndOfStream = "end"

// Segment is one timed line recognized in raw recognizer output.
type Segment struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Text      string `json:"text"`
}

// cueLinePattern matches "[start --> end] text" and "[start] --> [end] text", one per line.
var cueLinePattern = regexp.MustCompile(
	`(?m)^\s*\[(\d{2}:\d{2}:\d{2}\.\d{3})\]?\s*-->\s*\[?(\d{2}:\d{2}:\d{2}\.\d{3})\][ \t]*([^\r\n]*)\r?$`,
)

// IsEndOfStream reports whether a chunk is the end-of-stream sentinel.
func IsEndOfStream(chunk string) bool {
	return strings.TrimSpace(chunk) == EndOfStream
}

// ParseChunk checks for the sentinel before parsing. The sentinel never yields segments.
func ParseChunk(chunk string) ([]Segment, bool) {
	if IsEndOfStream(chunk) {
		return nil, true
	}
	return Parse(chunk), false
}

// Parse extracts every timed line in chunk, in order. Unmatched text yields nothing.
func Parse(chunk string) []Segment {
	matches := cueLinePattern.FindAllStringSubmatch(chunk, -1)
	if len(matches) == 0 {
		return nil
	}

	segments := make([]Segment, 0, len(matches))
	for _, m := range matches {
		seg := Segment{
			StartTime: m[1],
			EndTime:   m[2],
			Text:      strings.TrimSpace(m[3]),
		}
		if compareTimecodes(seg.EndTime, seg.StartTime) < 0 {
			seg.EndTime = seg.StartTime
		}
		segments = append(segments, seg)
	}
	return segments
}
