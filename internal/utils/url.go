package utils

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s<>]+`)

func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// NormalizeHost lowercases a bare domain or URL host and converts it to its
// ASCII (punycode) form.
func NormalizeHost(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}
	return host, nil
}

// DomainMatch reports whether host equals domain or is one of its subdomains.
func DomainMatch(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// ContainsDomain reports whether any link in content points at domain. The
// domain may be given as a bare or internationalised host or as a URL.
func ContainsDomain(content, domain string) bool {
	domain, err := NormalizeHost(domain)
	if err != nil || domain == "" {
		return false
	}
	for _, raw := range ExtractURLs(content) {
		host, err := NormalizeHost(raw)
		if err != nil {
			continue
		}
		if DomainMatch(host, domain) {
			return true
		}
	}
	return false
}
