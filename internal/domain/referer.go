package domain

import "net/url"

// searchTokenParam is the query string key carrying the search token on
// result page URLs.
const searchTokenParam = "searchToken"

// ParseSearchToken extracts the search token from a referrer URL.
//
// The referrer's query string is parsed strictly as a flat key to value map.
// A referrer that does not parse, whose query string does not parse, or that
// has no non-empty searchToken key yields ok=false. Callers treat that as a
// filter, not an error.
func ParseSearchToken(referer string) (token string, ok bool) {
	u, err := url.Parse(referer)
	if err != nil {
		return "", false
	}

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", false
	}

	token = values.Get(searchTokenParam)
	if token == "" {
		return "", false
	}
	return token, true
}
