package sudo

import "bytes"

// Bytes before both search cursors are dropped once this many accumulate.
const compactThreshold = 64 * 1024

// streamScanner accumulates raw output and looks for the prompt and success
// markers. Output is not line framed: sudo prints its prompt without a
// newline, and a marker may be split across reads.
type streamScanner struct {
	prompt  []byte
	success []byte

	buf         []byte
	promptFrom  int
	successFrom int
	prompts     int
}

func newStreamScanner(prompt, success string) *streamScanner {
	return &streamScanner{prompt: []byte(prompt), success: []byte(success)}
}

// feed appends chunk to the buffer. answer is true exactly once, for the
// first prompt. decided reports a final outcome: Authenticated when the
// success marker is anywhere in the output, otherwise WrongPassword on a
// second prompt. The first prompt of a chunk is answered before the chunk
// is judged.
func (s *streamScanner) feed(chunk []byte) (answer bool, outcome Outcome, decided bool) {
	s.buf = append(s.buf, chunk...)

	if s.prompts == 0 {
		if i := s.find(s.prompt, &s.promptFrom); i >= 0 {
			s.prompts = 1
			s.promptFrom = i + len(s.prompt)
			answer = true
		}
	}

	if s.find(s.success, &s.successFrom) >= 0 {
		return answer, Authenticated, true
	}

	if s.prompts > 0 {
		if i := s.find(s.prompt, &s.promptFrom); i >= 0 {
			s.prompts++
			s.promptFrom = i + len(s.prompt)
			return answer, WrongPassword, true
		}
	}

	s.compact()
	return answer, Undetermined, false
}

// find returns the absolute index of marker at or after *from, or -1. On a
// miss *from moves to the first position where a split marker could still
// start.
func (s *streamScanner) find(marker []byte, from *int) int {
	if i := bytes.Index(s.buf[*from:], marker); i >= 0 {
		return *from + i
	}
	if next := len(s.buf) - len(marker) + 1; next > *from {
		*from = next
	}
	return -1
}

func (s *streamScanner) compact() {
	low := min(s.promptFrom, s.successFrom)
	if low < compactThreshold {
		return
	}
	s.buf = append(s.buf[:0], s.buf[low:]...)
	s.promptFrom -= low
	s.successFrom -= low
}
