package skills

import (
	"regexp"
	"strings"
	"unicode"
)

// Entity is a named span found by an EntityRecognizer.
type Entity struct {
	Text  string
	Label string
}

const (
	LabelOrg      = "ORG"
	LabelProduct  = "PRODUCT"
	LabelLanguage = "LANGUAGE"
)

// EntityRecognizer finds organisations, products and languages in free text.
type EntityRecognizer interface {
	Entities(text string) ([]Entity, error)
}

// ProductRecognizer tags mixed-case and dotted tokens ("PostgreSQL", "GraphQL",
// "Node.js", "DevOps") as products. It is a lexical stand-in for a statistical
// NER model and never fails.
type ProductRecognizer struct{}

var tokenRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9.+#-]*[A-Za-z0-9+#]`)

func (ProductRecognizer) Entities(text string) ([]Entity, error) {
	var out []Entity
	seen := map[string]struct{}{}
	for _, tok := range tokenRe.FindAllString(text, -1) {
		if !looksLikeProduct(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, Entity{Text: tok, Label: LabelProduct})
	}
	return out, nil
}

func looksLikeProduct(tok string) bool {
	if strings.Contains(tok, ".") {
		// "Node.js", "Vue.js"; not initials like "B.S"
		parts := strings.Split(tok, ".")
		last := parts[len(parts)-1]
		return len(parts) == 2 && len(parts[0]) > 1 && len(last) >= 2 && isLower(last)
	}
	runes := []rune(tok)
	upperInside, lower := false, false
	for i, r := range runes {
		if unicode.IsLower(r) {
			lower = true
		}
		if i > 0 && unicode.IsUpper(r) {
			upperInside = true
		}
	}
	return upperInside && lower
}

func isLower(s string) bool {
	for _, r := range s {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}
