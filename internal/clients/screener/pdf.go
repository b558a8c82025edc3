package screener

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfText extracts the literal text strings from every page content stream.
// Documents set in CID fonts without literal strings yield little text; the
// summarizer then reports the document as unusable.
func pdfText(data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "screener-pdf-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inFile := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(inFile, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write temp pdf: %w", err)
	}

	outDir := filepath.Join(dir, "content")
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create content dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract content streams: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to list content streams: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			continue
		}
		b.WriteString(contentStreamText(string(content)))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// contentStreamText pulls literal strings out of a page content stream,
// breaking lines on text positioning operators
func contentStreamText(stream string) string {
	var (
		out  strings.Builder
		line strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(s)
			out.WriteString("\n")
		}
		line.Reset()
	}

	for i := 0; i < len(stream); i++ {
		switch ch := stream[i]; {
		case ch == '(':
			literal, next := readLiteral(stream, i+1)
			line.WriteString(literal)
			i = next
		case ch == 'T' && i+1 < len(stream) && (stream[i+1] == '*' || stream[i+1] == 'd' || stream[i+1] == 'D'):
			flush()
			i++
		case ch == 'E' && i+1 < len(stream) && stream[i+1] == 'T':
			flush()
			i++
		case ch == ']':
			line.WriteString(" ")
		}
	}
	flush()
	return out.String()
}

// readLiteral reads a PDF literal string starting after its opening
// parenthesis and returns the decoded text and the index of the closing one
func readLiteral(s string, start int) (string, int) {
	var b strings.Builder
	depth := 1
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n', 'r':
				b.WriteByte(' ')
			case 't':
				b.WriteByte('\t')
			default:
				if s[i] >= '0' && s[i] <= '7' {
					// octal escapes encode glyph codes, skip them
					for j := 0; j < 2 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; j++ {
						i++
					}
					continue
				}
				b.WriteByte(s[i])
			}
		case ch == '(':
			depth++
			b.WriteByte(ch)
		case ch == ')':
			depth--
			if depth == 0 {
				return b.String(), i
			}
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), len(s)
}
