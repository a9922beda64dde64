package pipeline

import (
	"context"
	"log"

	"nba-stats-scraper/config"
	"nba-stats-scraper/proxypool"
	"nba-stats-scraper/scraper"
)

// RodSessions opens rod browser sessions for cfg. With proxies configured,
// every session is bound to an endpoint drawn from a shared pool.
func RodSessions(cfg *config.Config) SessionFactory {
	opts := scraper.Options{
		Headless:        cfg.Browser.Headless,
		UserAgent:       cfg.Site.UserAgent,
		PageLoadTimeout: cfg.Browser.PageLoadTimeout,
		ProbeURL:        cfg.Proxy.ProbeURL,
		ProbeTimeout:    cfg.Proxy.ProbeTimeout,
		Selectors: scraper.Selectors{
			Table:          cfg.Selectors.Table,
			FilterLabel:    cfg.Selectors.FilterLabel,
			CookieButton:   cfg.Selectors.CookieButton,
			AdvancedToggle: cfg.Selectors.AdvancedToggle,
			SubmitButton:   cfg.Selectors.SubmitButton,
			SubmitText:     cfg.Selectors.SubmitText,
		},
	}

	if len(cfg.Proxy.Endpoints) == 0 {
		return func(ctx context.Context) (scraper.Session, error) {
			session, err := scraper.NewRodSession(opts, "")
			if err != nil {
				return nil, err
			}
			return session, nil
		}
	}

	pool := proxypool.New[*scraper.RodSession](cfg.Proxy.Endpoints, opts.Dial, nil)
	return PooledSessions(pool)
}

// PooledSessions adapts a proxy pool to a SessionFactory
func PooledSessions[S scraper.Session](pool *proxypool.Pool[S]) SessionFactory {
	return func(ctx context.Context) (scraper.Session, error) {
		session, endpoint, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		log.Printf("Browser session opened via %s, %d proxies left untried\n", endpoint, pool.Remaining())
		return session, nil
	}
}
