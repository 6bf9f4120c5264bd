package recognition

import "bytes"

// lineBuffer accumulates raw output and yields complete lines.
// Chunk boundaries may split a line or a multi-byte rune.
type lineBuffer struct {
	pending []byte
}

// Write appends a chunk and returns every line it completed, without terminators.
func (b *lineBuffer) Write(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(b.pending[:i], []byte{'\r'})))
		b.pending = b.pending[i+1:]
	}

	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// Flush returns the unterminated remainder and empties the buffer.
func (b *lineBuffer) Flush() string {
	rest := string(bytes.TrimSuffix(b.pending, []byte{'\r'}))
	b.pending = nil
	return rest
}
