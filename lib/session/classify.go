package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrAuthRequired indicates the remote answered with its login wall instead
// of the requested page.
var ErrAuthRequired = errors.New("you are not logged in")

// ErrAuthFailed indicates a completed login attempt that the remote
// rejected: bad credentials, or a login form that changed shape.
var ErrAuthFailed = errors.New("failed to log in with the provided credentials")

// MalformedPageError means an expected structural anchor is missing from the
// response: the remote changed its markup or served a different page than
// the one requested. Not retryable, the caller's parsing assumptions are
// stale.
type MalformedPageError struct {
	Anchor string
	Url    string
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("page at %s is missing %q", e.Url, e.Anchor)
}

// DomainError is a business rejection spelled out in page prose, surfaced
// verbatim. Never retried, the request itself was the problem.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return e.Reason
}

type FailureMarker struct {
	Marker string
	// reported instead of the raw marker when set
	Reason string
}

// Classifier scans a response for the known failure shapes of one portal.
// The zero value accepts everything. Matching is fixed-substring scanning on
// purpose: these services are undocumented and their only error signal is
// prose, so the rules live in data where each portal client can swap them.
type Classifier struct {
	// hosts (substring match) that indicate a redirect to the central
	// auth login wall
	AuthHosts []string
	// body substrings that indicate an inline login form
	LoginMarkers []string
	// body substrings that indicate a business rejection
	FailureMarkers []FailureMarker
	// substrings that must be present for the page to count as intact
	RequiredAnchors []string
}

// Classify inspects a response body along with the URL it finally resolved
// to after redirects. A nil return means the caller may parse the page.
func (c Classifier) Classify(finalUrl *url.URL, body string) error {
	if finalUrl != nil {
		for _, host := range c.AuthHosts {
			if strings.Contains(finalUrl.Host, host) {
				return ErrAuthRequired
			}
		}
	}
	for _, marker := range c.LoginMarkers {
		if strings.Contains(body, marker) {
			return ErrAuthRequired
		}
	}
	for _, failure := range c.FailureMarkers {
		if strings.Contains(body, failure.Marker) {
			reason := failure.Reason
			if reason == "" {
				reason = failure.Marker
			}
			return &DomainError{Reason: reason}
		}
	}
	for _, anchor := range c.RequiredAnchors {
		if !strings.Contains(body, anchor) {
			pageUrl := ""
			if finalUrl != nil {
				pageUrl = finalUrl.String()
			}
			return &MalformedPageError{Anchor: anchor, Url: pageUrl}
		}
	}
	return nil
}
