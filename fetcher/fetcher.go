package fetcher

import (
	"context"
	"errors"
)

// ErrAccessDenied is returned when robots.txt forbids fetching a page
var ErrAccessDenied = errors.New("access denied by robots.txt")

// AccessChecker decides whether a page may be crawled
type AccessChecker interface {
	// CanFetch reports whether targetURL may be fetched under the rules
	// served at robotsURL
	CanFetch(ctx context.Context, robotsURL, targetURL string) (bool, error)
}
