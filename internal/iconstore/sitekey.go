package iconstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/nikbrunner/favmark/internal/model"
)

// SiteKey derives the cache key for a URL: its registrable domain, lower-cased.
// IP addresses and single-label hosts (localhost) are used as-is.
func SiteKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidURL, rawURL)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", model.ErrInvalidURL, rawURL)
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}

	key, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// host is itself a public suffix
		return host, nil
	}
	return key, nil
}

// Origin returns scheme://host[:port] for a URL, the base the fetch client
// resolves icon locations against.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidURL, rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q is not a web URL", model.ErrInvalidURL, rawURL)
	}
	return scheme + "://" + strings.ToLower(u.Host), nil
}

// fileKey maps a site key to the base name of its cache files.
func fileKey(siteKey string) string {
	sum := sha256.Sum256([]byte(siteKey))
	return hex.EncodeToString(sum[:16])
}
