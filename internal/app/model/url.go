package model

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrValidation)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url %q", ErrValidation, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrValidation, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url %q has no host", ErrValidation, raw)
	}
	return raw, nil
}
