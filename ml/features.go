package ml

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FeatureCount is the length of every vector returned by ExtractFeatures.
const FeatureCount = 10

var suspiciousKeywords = []string{
	"secure", "account", "update", "login", "verify", "bank", "webscr", "confirm",
	"password", "signin", "ebayisapi", "paypal", "invoice", "free", "lucky",
}

var ipURLPattern = regexp.MustCompile(`^(?:https?://)?\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?(?:/.*)?$`)

// URLFeatures is the named form of a feature vector.
type URLFeatures struct {
	URLLength              int
	HostLength             int
	CountDots              int
	CountHyphens           int
	CountDigits            int
	HasIP                  int
	HasHTTPS               int
	CountAt                int
	Redirection            int
	SuspiciousKeywordCount int
}

// ExtractURLFeatures computes the lexical features of rawURL. It never fails:
// sub-computations that cannot be evaluated contribute zero.
func ExtractURLFeatures(rawURL string) URLFeatures {
	u := strings.TrimSpace(rawURL)
	return URLFeatures{
		URLLength:              utf8.RuneCountInString(u),
		HostLength:             utf8.RuneCountInString(ExtractDomain(u)),
		CountDots:              strings.Count(u, "."),
		CountHyphens:           strings.Count(u, "-"),
		CountDigits:            CountDigits(u),
		HasIP:                  boolToInt(HasIP(u)),
		HasHTTPS:               boolToInt(HasHTTPS(u)),
		CountAt:                strings.Count(u, "@"),
		Redirection:            boolToInt(HasRedirection(u)),
		SuspiciousKeywordCount: SuspiciousKeywordCount(u),
	}
}

// ExtractFeatures returns the feature vector of rawURL in FeatureNames order.
// Models index features by position, so this order must never change.
func ExtractFeatures(rawURL string) []float64 {
	return FeatureVector(ExtractURLFeatures(rawURL))
}

func FeatureVector(f URLFeatures) []float64 {
	return []float64{
		float64(f.URLLength),
		float64(f.HostLength),
		float64(f.CountDots),
		float64(f.CountHyphens),
		float64(f.CountDigits),
		float64(f.HasIP),
		float64(f.HasHTTPS),
		float64(f.CountAt),
		float64(f.Redirection),
		float64(f.SuspiciousKeywordCount),
	}
}

func FeatureNames() []string {
	return []string{
		"url_length",
		"host_length",
		"count_dots",
		"count_hyphens",
		"count_digits",
		"has_ip",
		"has_https",
		"count_at",
		"redirection",
		"suspicious_keyword_count",
	}
}

// HasIP reports whether the whole URL, after an optional http(s) scheme, is a
// dotted-quad address with optional port and path.
func HasIP(u string) bool {
	return ipURLPattern.MatchString(u)
}

func HasHTTPS(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "https")
}

// HasRedirection reports whether a second "//" follows the first one.
func HasRedirection(u string) bool {
	first := strings.Index(u, "//")
	if first == -1 {
		return false
	}
	return strings.Contains(u[first+2:], "//")
}

// SuspiciousKeywordCount counts distinct keywords present in u, ignoring case.
func SuspiciousKeywordCount(u string) int {
	low := strings.ToLower(u)
	count := 0
	for _, kw := range suspiciousKeywords {
		if strings.Contains(low, kw) {
			count++
		}
	}
	return count
}

// CountDigits counts ASCII digits only.
func CountDigits(s string) int {
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			count++
		}
	}
	return count
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
