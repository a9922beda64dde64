package scraper

import (
	"context"
	"errors"
	"time"

	"nba-stats-scraper/models"
)

var (
	// ErrSessionUnavailable is returned when a browser session cannot be started or reached
	ErrSessionUnavailable = errors.New("browser session unavailable")
	// ErrRenderTimeout is returned when the stats table does not become visible in time
	ErrRenderTimeout = errors.New("table render timed out")
)

// Driver performs the UI steps of one filter combination
type Driver interface {
	// SelectOption picks value in the dropdown of axis
	SelectOption(ctx context.Context, axis models.Axis, value string) error
	// Submit applies the current filter selection
	Submit(ctx context.Context) error
	// WaitForTableVisible blocks until the stats table is rendered or timeout elapses
	WaitForTableVisible(ctx context.Context, timeout time.Duration) error
	// CurrentMarkup returns the rendered page HTML
	CurrentMarkup(ctx context.Context) (string, error)
}

// Session is a Driver bound to one browser for the lifetime of an extraction
type Session interface {
	Driver
	Navigate(ctx context.Context, url string) error
	AcceptCookies(ctx context.Context) error
	OpenAdvancedFilters(ctx context.Context) error
	Close() error
}
