package filters

import (
	"regexp"
	"strings"

	"resume-matcher/internal/sources"
)

var locationAffixes = []string{
	"greater ", " area", " region", " metropolitan", " metro", " county",
	" city", " district", " province", " state", " territory",
}

var remoteKeywords = []string{"remote", "work from home", "wfh", "virtual"}

var stateNames = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "washington dc",
}

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeLocation lowercases, strips administrative affixes and punctuation,
// and expands US state abbreviations: "Greater Austin Area, TX" -> "austin texas".
func NormalizeLocation(loc string) string {
	s := strings.ToLower(loc)
	for _, affix := range locationAffixes {
		s = strings.ReplaceAll(s, affix, "")
	}
	s = punctRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))

	words := strings.Fields(s)
	for i, w := range words {
		if full, ok := stateNames[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

func locationPasses(p sources.JobPosting, preferred []string, remoteOnly bool) bool {
	if remoteOnly {
		if p.Remote != nil && !*p.Remote {
			return false
		}
		if p.Remote == nil && !containsAny(strings.ToLower(p.Location), remoteKeywords...) {
			return false
		}
	}
	if len(preferred) == 0 {
		return true
	}

	jobLoc := NormalizeLocation(p.Location)
	for _, want := range preferred {
		if strings.Contains(jobLoc, NormalizeLocation(want)) {
			return true
		}
	}
	if p.Remote != nil && *p.Remote {
		for _, want := range preferred {
			if strings.Contains(strings.ToLower(want), "remote") {
				return true
			}
		}
	}
	return false
}
