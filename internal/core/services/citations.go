package services

import (
	"errors"
	"math"
	"regexp"
	"strings"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

// excerptLength is the number of characters kept in a citation excerpt.
const excerptLength = 200

// errUnterminatedMarker reports an opening bracket with no closing bracket.
var errUnterminatedMarker = errors.New("unterminated citation marker")

// citationToken matches one id inside a marker, optionally prefixed with
// the "Source N:" label used in the context blocks.
var citationToken = regexp.MustCompile(`(?i)^(?:source\s*\d*\s*:\s*)?([a-z0-9][a-z0-9._-]{0,63})$`)

// ParseCitations extracts citation ids from generated text, in order of
// appearance. A marker is a bracketed, comma-separated list of ids such as
// [GH-0001] or [GH-0001, GH-0002]; brackets holding anything else are prose.
// Text with an unterminated bracket is rejected as a whole.
func ParseCitations(text string) ([]string, error) {
	var ids []string
	rest := text
	for {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			return ids, nil
		}
		rest = rest[open+1:]

		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, errUnterminatedMarker
		}
		// A nested opening bracket starts a new candidate.
		if inner := strings.IndexByte(rest[:end], '['); inner >= 0 {
			rest = rest[inner:]
			continue
		}

		if marker, ok := parseMarker(rest[:end]); ok {
			ids = append(ids, marker...)
		}
		rest = rest[end+1:]
	}
}

func parseMarker(body string) ([]string, bool) {
	parts := strings.Split(body, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		m := citationToken.FindStringSubmatch(strings.TrimSpace(p))
		if m == nil {
			return nil, false
		}
		ids = append(ids, m[1])
	}
	return ids, true
}

// ResolveCitations maps parsed ids onto the invocation's retrieval set.
// Ids outside the set are dropped and counted; duplicates are cited once.
func ResolveCitations(ids []string, docs []domain.RetrievedDocument) ([]domain.Citation, int) {
	byID := make(map[string]domain.RetrievedDocument, len(docs))
	for _, d := range docs {
		byID[strings.ToLower(d.Facility.ID)] = d
	}

	citations := []domain.Citation{}
	seen := map[string]bool{}
	dropped := 0
	for _, id := range ids {
		key := strings.ToLower(id)
		doc, ok := byID[key]
		if !ok {
			dropped++
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, citeDocument(doc))
	}
	return citations, dropped
}

func citeDocument(doc domain.RetrievedDocument) domain.Citation {
	return domain.Citation{
		SourceID:  doc.Facility.ID,
		Relevance: math.Round(clamp(doc.Similarity, 0, 1)*1000) / 1000,
		Excerpt:   excerpt(doc.Text, excerptLength),
	}
}

func excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
