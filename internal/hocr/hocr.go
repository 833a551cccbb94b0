// -----------------------------------------------------------------------
// hOCR parsing - token extraction from OCR engine output
// -----------------------------------------------------------------------

package hocr

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ternarybob/lectio/internal/algorithms"
)

// ExtractTokens returns all nonempty words from an hOCR document in
// document order. Only the direct text of each span is considered, so
// line spans do not duplicate the words they contain.
func ExtractTokens(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR document: %w", err)
	}

	var words []string
	doc.Find("span").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			for child := node.FirstChild; child != nil; child = child.NextSibling {
				if child.Type != html.TextNode {
					continue
				}
				// ocr_line spans carry newlines around their word spans
				word := strings.TrimRight(child.Data, " \t\n\r")
				if word != "" {
					words = append(words, word)
				}
			}
		}
	})
	return words, nil
}

// ExtractSanitizedTokens extracts tokens and normalizes each to NFD for
// dictionary comparisons.
func ExtractSanitizedTokens(r io.Reader) ([]string, error) {
	tokens, err := ExtractTokens(r)
	if err != nil {
		return nil, err
	}
	sanitized := make([]string, 0, len(tokens))
	for _, t := range tokens {
		s := algorithms.Sanitize(t)
		if s != "" {
			sanitized = append(sanitized, s)
		}
	}
	return sanitized, nil
}
