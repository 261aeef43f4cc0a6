package scan

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractionFailed is handed to callers when no strategy can pull
// content out of a matched page. The scan must keep moving, so the
// extractor never returns an error.
const extractionFailed = "Extraction Failed: Could not find content blocks in the response."

// rawEndMarker closes the answer block in the raw page markup.
const rawEndMarker = "================================="

var (
	brPattern  = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// Extractor reduces a matched HTML page to the find summary written to
// the logs. The structured strategy is tried first; when the document
// does not parse into the expected blocks, a raw line scan of the
// markup takes over.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the best-effort summary for body. It is total: the
// fixed failure sentinel is returned when both strategies come up empty.
func (e *Extractor) Extract(body string) string {
	if summary, err := e.extractStructured(body); err == nil {
		return summary
	}
	if summary := e.extractRawLines(body); summary != "" {
		return summary
	}
	return extractionFailed
}

// ExtractRaw applies only the raw line-scan strategy. The probe command
// uses it to inspect pages whose structure has drifted.
func (e *Extractor) ExtractRaw(body string) string {
	if summary := e.extractRawLines(body); summary != "" {
		return summary
	}
	return extractionFailed
}

// extractStructured parses the two content blocks the target renders for
// a valid PIN: the subject/password label and the answer list.
func (e *Extractor) extractStructured(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	label := doc.Find("div.itemContainer > b").First()
	if label.Length() == 0 {
		return "", errors.New("item label not found")
	}
	labelHTML, err := label.Html()
	if err != nil {
		return "", fmt.Errorf("item label html: %w", err)
	}
	subject, password := splitLabel(labelHTML)

	item := doc.Find("div.positem").First()
	if item.Length() == 0 {
		return "", errors.New("post item not found")
	}
	itemHTML, err := item.Html()
	if err != nil {
		return "", fmt.Errorf("post item html: %w", err)
	}
	lines := textLines(itemHTML)
	if len(lines) == 0 {
		return "", errors.New("post item empty")
	}

	block := lines[0]
	if len(lines) > 1 {
		block += "\n\n" + strings.Join(lines[1:], "\n")
	}
	return fmt.Sprintf("%s\n%s\n\n%s", subject, password, block), nil
}

// extractRawLines scans the raw markup for the answer block. Capture
// starts on the line carrying both the subject label and its container
// class and stops once the delimiter row has been taken.
func (e *Extractor) extractRawLines(body string) string {
	var captured []string
	capturing := false
	for _, line := range strings.Split(body, "\n") {
		if !capturing && strings.Contains(line, "SUBJECT:") && strings.Contains(line, "itemContainer") {
			capturing = true
		}
		if !capturing {
			continue
		}
		text := strings.TrimSpace(tagPattern.ReplaceAllString(brPattern.ReplaceAllString(line, "\n"), ""))
		if text != "" {
			captured = append(captured, text)
		}
		if strings.Contains(line, rawEndMarker) {
			break
		}
	}
	return strings.Join(captured, "\n")
}

// splitLabel separates the subject and password joined by a <br> inside
// the item label.
func splitLabel(fragment string) (subject, password string) {
	flat := tagPattern.ReplaceAllString(brPattern.ReplaceAllString(fragment, "|"), "")
	parts := strings.SplitN(html.UnescapeString(flat), "|", 2)
	subject = strings.TrimSpace(strings.ReplaceAll(parts[0], "SUBJECT:", ""))
	if len(parts) > 1 {
		password = strings.TrimSpace(parts[1])
	}
	return subject, password
}

// textLines flattens an HTML fragment into trimmed, non-empty text lines.
func textLines(fragment string) []string {
	flat := tagPattern.ReplaceAllString(brPattern.ReplaceAllString(fragment, "\n"), "\n")
	var lines []string
	for _, line := range strings.Split(flat, "\n") {
		if line = strings.TrimSpace(html.UnescapeString(line)); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
