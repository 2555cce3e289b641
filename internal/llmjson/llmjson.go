// Package llmjson extracts usable JSON from generative-model output, which
// is routinely wrapped in markdown fences and truncated mid-stream.
package llmjson

import (
	"encoding/json"
	"strings"
)

// Options controls decoding of one model payload.
type Options struct {
	// ExpectKeys are top-level keys the payload is supposed to carry. They
	// gate the truncation-completion stage: a payload that does not even
	// mention them is not worth completing.
	ExpectKeys []string

	// WrapKey, when set, is the key of the minimal wrapper object
	// resynthesized around objects recovered from a truncated payload.
	WrapKey string
}

// Decode applies three decreasing levels of tolerance and returns the first
// payload that parses. It returns (nil, false) when nothing can be recovered;
// callers must treat that as a soft failure for this unit of work.
func Decode(raw string, opt Options) (json.RawMessage, bool) {
	s := StripFence(raw)
	if s == "" {
		return nil, false
	}

	// Level 1: strict parse.
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), true
	}

	// Level 2: superficially well-formed but cut off at the tail. Close the
	// open scopes and retry.
	if looksWellFormed(s, opt.ExpectKeys) {
		if fixed, ok := completeTruncated(s); ok {
			return json.RawMessage(fixed), true
		}
	}

	// Level 3: recover whatever balanced objects survived the truncation and
	// resynthesize a minimal wrapper around them.
	objs := BalancedObjects(s)
	if len(objs) == 0 {
		return nil, false
	}
	if opt.WrapKey == "" {
		return json.RawMessage(objs[0]), true
	}
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(strconvQuote(opt.WrapKey))
	b.WriteString(":[")
	for i, o := range objs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(o)
	}
	b.WriteString("]}")
	out := b.String()
	if !json.Valid([]byte(out)) {
		return nil, false
	}
	return json.RawMessage(out), true
}

// StripFence removes a surrounding markdown code fence (``` or ```json) and
// leading/trailing whitespace.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func looksWellFormed(s string, keys []string) bool {
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return false
	}
	for _, k := range keys {
		if !strings.Contains(s, `"`+k+`"`) {
			return false
		}
	}
	return true
}

// completeTruncated closes the open braces, brackets and string of a payload
// that was cut off mid-stream. When the raw tail is unparseable (for example
// a dangling `"key":`), it backs up to the previous element boundary and
// tries again.
func completeTruncated(s string) (string, bool) {
	for attempt := 0; attempt < 64 && len(s) > 1; attempt++ {
		if closers, ok := closersFor(s); ok {
			cand := s + closers
			if json.Valid([]byte(cand)) {
				return cand, true
			}
		}
		cut := strings.LastIndexAny(s, ",{[")
		if cut <= 0 {
			break
		}
		s = s[:cut]
	}
	return "", false
}

// closersFor walks the payload tracking brace depth and string/escape state
// and returns the characters needed to balance it.
func closersFor(s string) (string, bool) {
	var stack []byte
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if esc {
			esc = false
			continue
		}
		if inStr {
			switch c {
			case '\\':
				esc = true
			case '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) == 0 || stack[len(stack)-1] != '{' {
				return "", false
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if esc {
		// Payload ends on a dangling escape; let the caller back up instead.
		return "", false
	}
	var b strings.Builder
	if inStr {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), true
}

// maxRecoveredObject bounds the balanced-object scan so a payload with no
// closing brace cannot buffer without limit.
const maxRecoveredObject = 16384

// BalancedObjects scans the payload character by character, tracking brace
// depth and string-escape state, and returns every fully balanced object it
// finds. Scanning starts inside the first array when one is present, so the
// (possibly unterminated) outer wrapper does not swallow its elements. An
// incomplete trailing object is discarded.
func BalancedObjects(s string) []string {
	start := 0
	if i := strings.IndexByte(s, '['); i >= 0 {
		start = i + 1
	} else if i := strings.IndexByte(s, '{'); i >= 0 {
		start = i + 1
	}

	var out []string
	var cur strings.Builder
	depth := 0
	inStr, esc := false, false

	for i := start; i < len(s); i++ {
		c := s[i]
		if depth > 0 {
			cur.WriteByte(c)
			if cur.Len() > maxRecoveredObject {
				return out
			}
		}
		if esc {
			esc = false
			continue
		}
		if inStr {
			switch c {
			case '\\':
				esc = true
			case '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inStr = true
			}
		case '{':
			if depth == 0 {
				cur.Reset()
				cur.WriteByte('{')
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				obj := cur.String()
				if json.Valid([]byte(obj)) {
					out = append(out, obj)
				}
				cur.Reset()
			}
		}
	}
	return out
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
