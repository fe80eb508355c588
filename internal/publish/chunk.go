package publish

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrLimitTooSmall is returned when the header or a continuation marker does
// not leave room for any content under the configured limit.
var ErrLimitTooSmall = errors.New("message limit too small for decoration")

// Chunk is one bounded segment of a published message.
type Chunk struct {
	// Part is the 1-based position of the chunk.
	Part int
	// Prefix is the header on the first chunk and the continuation marker on the rest.
	Prefix string
	// Content is the slice of the source text carried by this chunk.
	Content string
	// Gap is the whitespace trimmed between this chunk and the next one.
	Gap string
}

// Text returns what is emitted to the sink.
func (c Chunk) Text() string {
	return c.Prefix + c.Content
}

// Len returns the emitted length in runes.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Prefix) + utf8.RuneCountInString(c.Content)
}

// Reassemble rebuilds header+body from chunks produced by Split, dropping the
// continuation markers.
func Reassemble(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(chunks[0].Prefix)
	for _, c := range chunks {
		sb.WriteString(c.Content)
		sb.WriteString(c.Gap)
	}
	return sb.String()
}

// Header renders the header template for title.
func (c Config) Header(title string) string {
	return render(c.HeaderTemplate, title, 1)
}

// Continuation renders the continuation marker for part.
func (c Config) Continuation(title string, part int) string {
	return render(c.ContinuationTemplate, title, part)
}

func render(tmpl, title string, part int) string {
	return strings.NewReplacer("{title}", title, "{part}", strconv.Itoa(part)).Replace(tmpl)
}

// Split decorates body with the header for title and cuts it into chunks
// whose emitted text is at most c.Limit runes.
//
// Each cut is made at the last line break that leaves the chunk within the
// limit; the decoration itself never counts as a break. A line longer than
// the limit is hard cut at exactly the limit. Whitespace around a cut is
// trimmed from both sides and kept in Chunk.Gap, so Reassemble restores the
// original text. Invalid UTF-8 in body is replaced with U+FFFD first.
func (c Config) Split(title, body string) ([]Chunk, error) {
	prefix := c.Header(title)
	if utf8.RuneCountInString(prefix) >= c.Limit {
		return nil, fmt.Errorf("%w: header is %d runes, limit is %d",
			ErrLimitTooSmall, utf8.RuneCountInString(prefix), c.Limit)
	}

	// Reassemble must match what is emitted, not the raw bytes.
	body = strings.ToValidUTF8(body, string(utf8.RuneError))

	text := []rune(body)
	chunks := make([]Chunk, 0, 1+len(text)/c.Limit)
	var tail string

	for part := 1; ; part++ {
		room := c.Limit - utf8.RuneCountInString(prefix)
		if len(text) <= room {
			chunks = append(chunks, Chunk{Part: part, Prefix: prefix, Content: string(text), Gap: tail})
			return chunks, nil
		}

		var head string
		cut := lastLineBreak(text, room)
		if cut > 0 {
			head = strings.TrimRightFunc(string(text[:cut]), unicode.IsSpace)
		}
		if head == "" {
			cut = room
			head = string(text[:cut])
		}
		between := string(text[utf8.RuneCountInString(head):cut])

		rest := string(text[cut:])
		left := strings.TrimLeftFunc(rest, unicode.IsSpace)
		trimmed := strings.TrimRightFunc(left, unicode.IsSpace)
		tail = left[len(trimmed):] + tail

		chunk := Chunk{Part: part, Prefix: prefix, Content: head, Gap: between + rest[:len(rest)-len(left)]}

		if trimmed == "" {
			chunk.Gap += tail
			chunks = append(chunks, chunk)
			return chunks, nil
		}
		chunks = append(chunks, chunk)

		prefix = c.Continuation(title, part+1)
		if utf8.RuneCountInString(prefix) >= c.Limit {
			return nil, fmt.Errorf("%w: continuation marker is %d runes, limit is %d",
				ErrLimitTooSmall, utf8.RuneCountInString(prefix), c.Limit)
		}
		text = []rune(trimmed)
	}
}

// lastLineBreak returns the largest index i with 0 < i <= limit and text[i] == '\n',
// or -1 when there is none.
func lastLineBreak(text []rune, limit int) int {
	if limit >= len(text) {
		limit = len(text) - 1
	}
	for i := limit; i > 0; i-- {
		if text[i] == '\n' {
			return i
		}
	}
	return -1
}
