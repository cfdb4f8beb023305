package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"luxestore/searchservice/internal/domain"
)

const minTokenLength = 2

var separatorPattern = regexp.MustCompile(`[-_]+`)

// normalizeText lower-cases, strips accents, turns dash/underscore runs into
// spaces and collapses whitespace. "Hermès Birkin_25" becomes "hermes birkin 25".
func normalizeText(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	value = strings.ToLower(foldAccents(value))
	value = separatorPattern.ReplaceAllString(value, " ")
	return strings.Join(strings.Fields(value), " ")
}

func foldAccents(value string) string {
	if isASCII(value) {
		return value
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

func isASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// tokenize splits normalized text and keeps tokens of at least two runes.
func tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	tokens := fields[:0]
	for _, field := range fields {
		if utf8.RuneCountInString(field) >= minTokenLength {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// searchableFields lists the product text that is indexed and scanned.
func searchableFields(product domain.Product) []string {
	fields := make([]string, 0, 4)
	for _, value := range []string{
		product.Brand,
		product.ProductName,
		product.Attribute(domain.AttrTitle),
		product.Attribute(domain.AttrName),
	} {
		if strings.TrimSpace(value) != "" {
			fields = append(fields, value)
		}
	}
	return fields
}

func matchesSubstring(product domain.Product, normalizedQuery string) bool {
	if normalizedQuery == "" {
		return false
	}
	for _, field := range searchableFields(product) {
		if strings.Contains(normalizeText(field), normalizedQuery) {
			return true
		}
	}
	return false
}
