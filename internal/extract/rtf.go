package extract

import (
	"os"
	"strconv"
	"strings"
)

// extractTXT reads a plain-text file, normalizing CRLF line endings.
func extractTXT(path string) (*Extraction, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path, Err: err}
	}
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\uFEFF")
	return finish(path, "txt", text, 0)
}

// rtfSkipGroups are destination groups that hold no document text.
var rtfSkipGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
}

// extractRTF strips RTF control words and groups, keeping the document
// text. This is a tolerant reader, not a validator: malformed input
// degrades to whatever text survives rather than erroring.
func extractRTF(path string) (*Extraction, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path, Err: err}
	}
	return finish(path, "rtf", stripRTF(b), 0)
}

func stripRTF(b []byte) string {
	var sb strings.Builder
	skipDepth := 0 // depth at which a skipped destination group started
	depth := 0

	i := 0
	for i < len(b) {
		c := b[i]
		switch c {
		case '{':
			depth++
			i++
		case '}':
			if skipDepth > 0 && depth == skipDepth {
				skipDepth = 0
			}
			depth--
			i++
		case '\\':
			word, param, hasParam, next := rtfControl(b, i+1)
			i = next
			if skipDepth > 0 {
				continue
			}
			switch word {
			case "par", "line", "row":
				sb.WriteByte('\n')
			case "tab", "cell":
				sb.WriteByte('\t')
			case "'":
				if hasParam {
					sb.WriteByte(byte(param))
				}
			case "u":
				if hasParam {
					if param < 0 {
						param += 65536
					}
					sb.WriteRune(rune(param))
					// Skip the fallback character that follows \uN.
					if i < len(b) && b[i] != '\\' && b[i] != '{' && b[i] != '}' {
						i++
					}
				}
			case "{", "}", "\\":
				sb.WriteString(word)
			case "*":
				skipDepth = depth
			default:
				if rtfSkipGroups[word] {
					skipDepth = depth
				}
			}
		case '\r', '\n':
			i++
		default:
			if skipDepth == 0 {
				sb.WriteByte(c)
			}
			i++
		}
	}
	return sb.String()
}

// rtfControl reads the control word (or symbol) starting at pos and
// returns the word, its numeric parameter if present, and the next
// read position.
func rtfControl(b []byte, pos int) (word string, param int, hasParam bool, next int) {
	if pos >= len(b) {
		return "", 0, false, pos
	}

	c := b[pos]
	if c == '\'' {
		// \'hh hex-escaped byte
		if pos+2 < len(b) {
			if v, err := strconv.ParseInt(string(b[pos+1:pos+3]), 16, 32); err == nil {
				return "'", int(v), true, pos + 3
			}
		}
		return "'", 0, false, pos + 1
	}
	if !isRTFLetter(c) {
		// Control symbol: \~, \{, \}, \\, \*, etc.
		return string(c), 0, false, pos + 1
	}

	start := pos
	for pos < len(b) && isRTFLetter(b[pos]) {
		pos++
	}
	word = string(b[start:pos])

	numStart := pos
	if pos < len(b) && (b[pos] == '-' || isDigit(b[pos])) {
		pos++
		for pos < len(b) && isDigit(b[pos]) {
			pos++
		}
		if v, err := strconv.Atoi(string(b[numStart:pos])); err == nil {
			param, hasParam = v, true
		}
	}

	// A single space after a control word is a delimiter, not text.
	if pos < len(b) && b[pos] == ' ' {
		pos++
	}
	return word, param, hasParam, pos
}

func isRTFLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
