package sources

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// htmlToText renders an HTML fragment as whitespace-collapsed text.
// Entity-escaped markup (as in feeds) is unescaped first.
func htmlToText(fragment string) string {
	if fragment == "" {
		return ""
	}
	if strings.Contains(fragment, "&lt;") {
		fragment = html.UnescapeString(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br, p, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func matchesTerm(term string, fields ...string) bool {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), t) {
			return true
		}
	}
	return false
}

// Casers and printers carry state, so each call gets its own.
func titleCase(s string) string { return cases.Title(language.English).String(s) }

// formatSalary renders "$90,000 - $130,000"; empty when no bound is known.
func formatSalary(min, max float64) string {
	salaryPrinter := message.NewPrinter(language.English)
	switch {
	case min <= 0 && max <= 0:
		return ""
	case max <= 0:
		return salaryPrinter.Sprintf("From $%d", int64(min))
	case min <= 0:
		return salaryPrinter.Sprintf("Up to $%d", int64(max))
	case min == max:
		return salaryPrinter.Sprintf("$%d", int64(min))
	default:
		return salaryPrinter.Sprintf("$%d - $%d", int64(min), int64(max))
	}
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func remoteFromText(fields ...string) *bool {
	for _, f := range fields {
		l := strings.ToLower(f)
		if strings.Contains(l, "remote") || strings.Contains(l, "anywhere") || strings.Contains(l, "worldwide") {
			return boolPtr(true)
		}
	}
	return nil
}
