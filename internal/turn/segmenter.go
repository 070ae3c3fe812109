package turn

import "strings"

// Segmentation thresholds, in runes. A segment shorter than softMin is never
// cut mid-stream; a buffer past maxLen is hard-cut even without punctuation.
const (
	softMinRunes = 30
	minRunes     = 70
	maxRunes     = 260
)

// isEndPunct reports whether r ends a speakable sentence.
func isEndPunct(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?', '\n':
		return true
	}
	return false
}

// Segmenter accumulates streamed reply text and cuts it into natural
// speakable chunks for synthesis. Not safe for concurrent use; each turn owns
// one Segmenter.
type Segmenter struct {
	buf []rune
}

// Push appends a text delta to the buffer without cutting.
func (s *Segmenter) Push(delta string) {
	s.buf = append(s.buf, []rune(delta)...)
}

// Pop attempts to cut one segment off the front of the buffer:
//
//  1. Below softMin runes: no segment.
//  2. At or past min runes with end punctuation at rune index >= min-1:
//     cut inclusive of the earliest such punctuation.
//  3. End punctuation in [softMin-1, min-1): early cut, so short complete
//     replies ("OK.") are not held back until min.
//  4. At or past max runes: hard cut at max.
//
// Returns ok=false when no cut is possible yet.
func (s *Segmenter) Pop() (seg string, ok bool) {
	n := len(s.buf)
	if n < softMinRunes {
		return "", false
	}

	if n >= minRunes {
		if idx := s.findBoundary(minRunes - 1); idx >= 0 {
			return s.cut(idx + 1), true
		}
	}

	if idx := s.findBoundary(softMinRunes - 1); idx >= 0 && idx+1 < minRunes {
		return s.cut(idx + 1), true
	}

	if n >= maxRunes {
		return s.cut(maxRunes), true
	}

	return "", false
}

// Flush returns the whitespace-trimmed remainder and empties the buffer.
// Called at end of stream; the tail is emitted even below softMin.
func (s *Segmenter) Flush() string {
	tail := strings.TrimSpace(string(s.buf))
	s.buf = s.buf[:0]
	return tail
}

// Len returns the current buffer length in runes.
func (s *Segmenter) Len() int {
	return len(s.buf)
}

// findBoundary returns the earliest end-punctuation index at or after start,
// or -1 when none exists.
func (s *Segmenter) findBoundary(start int) int {
	for i := start; i < len(s.buf); i++ {
		if isEndPunct(s.buf[i]) {
			return i
		}
	}
	return -1
}

// cut removes and returns the first n runes of the buffer.
func (s *Segmenter) cut(n int) string {
	seg := string(s.buf[:n])
	s.buf = append(s.buf[:0], s.buf[n:]...)
	return seg
}
