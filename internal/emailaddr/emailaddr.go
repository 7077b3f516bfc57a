// Package emailaddr canonicalizes the sender address on an inbound
// policy request so the same traveller writing from varying case or
// whitespace is stored under one address. The address takes no part in
// the idempotency key.
package emailaddr

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	localPartRE     = regexp.MustCompile(`^[a-z0-9]([a-z0-9._+-]*[a-z0-9])?$`)
	validHostnameRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)
)

// Canonicalize lowercases and validates address, conservatively: ASCII
// only, no display name, no quoted local part.
func Canonicalize(address string) (canonical string, localPart string, domain string, err error) {
	raw := strings.TrimSpace(address)
	if raw == "" {
		return "", "", "", fmt.Errorf("address is empty")
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return "", "", "", fmt.Errorf("address must not contain spaces")
	}
	raw = strings.ToLower(raw)

	parts := strings.Split(raw, "@")
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("invalid address: %q", address)
	}
	localPart = strings.TrimSpace(parts[0])
	domain = strings.TrimSpace(parts[1])
	if localPart == "" || domain == "" {
		return "", "", "", fmt.Errorf("invalid address: %q", address)
	}
	if !localPartRE.MatchString(localPart) {
		return "", "", "", fmt.Errorf("invalid local part: %q", localPart)
	}

	domain = strings.TrimSuffix(domain, ".")
	if !validHostnameRE.MatchString(domain) {
		return "", "", "", fmt.Errorf("invalid domain: %q", domain)
	}

	return localPart + "@" + domain, localPart, domain, nil
}
