// Package dedup detects exact and near-duplicate articles before they become
// visible to downstream pipeline stages.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams are stripped during URL normalization so that the same
// article shared through different channels hashes identically.
var trackingParams = []string{"fbclid", "gclid", "mc_cid", "mc_eid", "ref"}

// NormalizeURL canonicalizes an article URL: lowercases scheme and host,
// drops the fragment, strips tracking query parameters (utm_* and friends)
// and removes a trailing slash from the path.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") {
			q.Del(param)
			continue
		}
		for _, tracked := range trackingParams {
			if param == tracked {
				q.Del(param)
				break
			}
		}
	}
	u.RawQuery = q.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// NormalizeTitle lowercases a title and collapses runs of whitespace.
func NormalizeTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(t))), " ")
}

// Checksum returns the content address of an article:
// sha256(normalizedTitle + "|" + body) as lowercase hex.
func Checksum(title, body string) string {
	combined := NormalizeTitle(title) + "|" + strings.TrimSpace(body)
	h := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(h[:])
}

// SourceDomain extracts the lowercased host from an article URL, without
// the www prefix, so the same outlet groups under one domain.
func SourceDomain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// WordCount counts whitespace-separated words in a body.
func WordCount(body string) int {
	return len(strings.Fields(body))
}
