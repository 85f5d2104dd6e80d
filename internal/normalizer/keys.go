package normalizer

import (
	"net/url"
	"regexp"
	"strings"
)

var commaSpacing = regexp.MustCompile(`\s*,\s*`)

// AddressKey folds an address into its lookup key: lower case, single spaces, and
// a uniform ", " separator, so equivalent spellings map to the same stored record.
func AddressKey(address string) string {
	key := strings.ToLower(strings.Join(strings.Fields(address), " "))
	key = commaSpacing.ReplaceAllString(key, ", ")
	return strings.Trim(key, ", ")
}

// URLKey canonicalises a page URL: scheme and host are lower-cased, the fragment and a
// trailing slash are dropped. Path and query keep their case.
func URLKey(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
	}
	return u.String()
}
