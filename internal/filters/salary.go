package filters

import (
	"regexp"
	"strconv"
	"strings"
)

// HoursPerYear annualises hourly rates (40h x 52w).
const HoursPerYear = 2080

var (
	hourlyRateRe = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)`)
	amountRe     = regexp.MustCompile(`[\d,]+`)
)

// ParseSalary turns free-text salary ranges into annual (min, max).
// Either bound may be nil; both are nil when nothing numeric is stated.
//
//	"$80,000 - $120,000" -> (80000, 120000)
//	"$50/hour"           -> (104000, 104000)
//	"up to $90,000"      -> (nil, 90000)
//	"Competitive"        -> (nil, nil)
func ParseSalary(text string) (min, max *int) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	lower := strings.ToLower(text)

	if strings.Contains(lower, "hour") || strings.Contains(lower, "/hr") || strings.Contains(lower, "/h") {
		return parseHourly(lower)
	}
	for _, vague := range []string{"competitive", "negotiable", "doe", "depends"} {
		if strings.Contains(lower, vague) {
			return nil, nil
		}
	}

	var nums []int
	for _, raw := range amountRe.FindAllString(lower, -1) {
		digits := strings.ReplaceAll(raw, ",", "")
		if digits == "" {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 0:
		return nil, nil
	case 1:
		n := nums[0]
		switch {
		case containsAny(lower, "from", "min", "starting"):
			return &n, nil
		case containsAny(lower, "up to", "max"):
			return nil, &n
		default:
			return &n, intPtr(n)
		}
	}
	lo, hi := nums[0], nums[0]
	for _, n := range nums[1:] {
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	return &lo, &hi
}

func parseHourly(lower string) (min, max *int) {
	var rates []float64
	for _, m := range hourlyRateRe.FindAllStringSubmatch(lower, -1) {
		r, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		rates = append(rates, r)
	}
	if len(rates) == 0 {
		return nil, nil
	}
	lo, hi := rates[0], rates[0]
	for _, r := range rates[1:] {
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	return intPtr(int(lo * HoursPerYear)), intPtr(int(hi * HoursPerYear))
}

// salaryPasses reports whether a job range overlaps the requested bounds.
// Jobs without any parseable figure never pass once a bound is requested.
func salaryPasses(jobMin, jobMax, wantMin, wantMax *int) bool {
	if wantMin == nil && wantMax == nil {
		return true
	}
	if jobMin == nil && jobMax == nil {
		return false
	}
	if wantMin != nil {
		if jobMax != nil && *jobMax < *wantMin {
			return false
		}
		if jobMax == nil && jobMin != nil && *jobMin < *wantMin {
			return false
		}
	}
	if wantMax != nil && jobMin != nil && *jobMin > *wantMax {
		return false
	}
	return true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func intPtr(v int) *int { return &v }
