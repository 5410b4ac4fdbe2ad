package ml

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// HostParts is a host split along the public suffix list.
type HostParts struct {
	Subdomain string
	Domain    string
	Suffix    string
}

// String joins the non-empty parts with dots.
func (p HostParts) String() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.Subdomain, p.Domain, p.Suffix} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ".")
}

var (
	schemePrefix = regexp.MustCompile(`^[A-Za-z0-9+.\-]+://`)
	ipv4Host     = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d\d?)$`)
)

// ExtractDomain returns subdomain, registrable domain and public suffix of the
// URL's host joined with dots, e.g. "mail.example.co.uk".
//
// IPv4 literal hosts come back unchanged as a bare domain with no suffix.
func ExtractDomain(rawURL string) string {
	return SplitHost(rawURL).String()
}

// SplitHost extracts the host from a possibly scheme-less URL and splits it
// using the ICANN section of the public suffix list. Anything that cannot be
// parsed yields empty parts.
func SplitHost(rawURL string) (parts HostParts) {
	defer func() {
		if recover() != nil {
			parts = HostParts{}
		}
	}()

	host := lenientHost(rawURL)
	if host == "" {
		return HostParts{}
	}
	if strings.HasPrefix(host, "[") || ipv4Host.MatchString(host) {
		return HostParts{Domain: host}
	}

	labels := strings.Split(host, ".")
	n := suffixLabels(host)
	if n > len(labels) {
		n = len(labels)
	}
	suffixIdx := len(labels) - n

	parts.Suffix = strings.Join(labels[suffixIdx:], ".")
	if suffixIdx > 0 {
		parts.Domain = labels[suffixIdx-1]
		parts.Subdomain = strings.Join(labels[:suffixIdx-1], ".")
	}
	return parts
}

// lenientHost pulls the hostname out of rawURL without requiring it to be a
// valid URL: scheme, userinfo, port, path, query and fragment are dropped.
func lenientHost(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if strings.HasPrefix(s, "//") {
		s = s[2:]
	} else if loc := schemePrefix.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if strings.HasPrefix(s, "[") {
		if i := strings.Index(s, "]"); i >= 0 {
			return s[:i+1]
		}
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	// Ideographic full stops count as dots.
	s = strings.NewReplacer("。", ".", "．", ".", "｡", ".").Replace(s)
	return strings.TrimRight(s, ".")
}

// suffixLabels returns how many trailing labels of host form its ICANN public
// suffix. Private registry entries (blogspot.com, ...) are not treated as
// suffixes and an unlisted TLD has no suffix at all.
func suffixLabels(host string) int {
	lookup := strings.ToLower(host)
	if ascii, err := idna.ToASCII(lookup); err == nil && ascii != "" {
		lookup = ascii
	}

	for lookup != "" {
		suffix, icann := publicsuffix.PublicSuffix(lookup)
		if icann {
			return strings.Count(suffix, ".") + 1
		}
		dot := strings.Index(suffix, ".")
		if dot < 0 {
			// Default "*" rule: the TLD is not on the list.
			return 0
		}
		lookup = suffix[dot+1:]
	}
	return 0
}
