package fetcher

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/temoto/robotstxt"
)

// RobotsChecker implements AccessChecker by downloading robots.txt with colly
// and evaluating it for the configured user agent. Parsed rules are cached
// per robots URL.
type RobotsChecker struct {
	userAgent string
	timeout   time.Duration

	mu    sync.Mutex
	rules map[string]*robotstxt.RobotsData
}

// NewRobotsChecker creates a RobotsChecker for userAgent
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RobotsChecker{
		userAgent: userAgent,
		timeout:   timeout,
		rules:     make(map[string]*robotstxt.RobotsData),
	}
}

// CanFetch implements the AccessChecker interface
func (rc *RobotsChecker) CanFetch(ctx context.Context, robotsURL, targetURL string) (bool, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid target URL %s: %w", targetURL, err)
	}

	rules, err := rc.load(ctx, robotsURL)
	if err != nil {
		return false, err
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return rules.TestAgent(path, rc.userAgent), nil
}

func (rc *RobotsChecker) load(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	rc.mu.Lock()
	cached, ok := rc.rules[robotsURL]
	rc.mu.Unlock()
	if ok {
		return cached, nil
	}

	status, body, err := rc.fetch(ctx, robotsURL)
	if err != nil {
		return nil, err
	}

	// 4xx allows everything, 5xx disallows everything
	rules, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", robotsURL, err)
	}

	rc.mu.Lock()
	rc.rules[robotsURL] = rules
	rc.mu.Unlock()
	return rules, nil
}

// fetch downloads robotsURL and returns its status code and body
func (rc *RobotsChecker) fetch(ctx context.Context, robotsURL string) (int, []byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(rc.userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(rc.timeout)
	// Error statuses carry meaning for robots.txt
	c.ParseHTTPErrorResponse = true

	var status int
	var body []byte
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		log.Printf("Error fetching %s: %v\n", r.Request.URL, err)
	})

	if err := c.Visit(robotsURL); err != nil {
		return 0, nil, fmt.Errorf("failed to fetch %s: %w", robotsURL, err)
	}
	if status == 0 {
		return 0, nil, fmt.Errorf("no response from %s", robotsURL)
	}
	return status, body, nil
}
