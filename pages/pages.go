package pages

import (
	"fmt"
	"net/url"
	"strings"

	"nba-stats-scraper/models"
)

// Families lists the stat families in extraction order. The first one is
// the merge base.
var Families = []models.Family{models.Shooting, models.ContestedShots, models.BoxOuts}

var paths = map[models.Family]string{
	models.Shooting:       "stats/teams/shooting",
	models.ContestedShots: "stats/teams/hustle",
	models.BoxOuts:        "stats/teams/box-outs",
}

// StatsPage is one stats table to extract
type StatsPage struct {
	Family     models.Family
	URL        string
	Categories []string // nil takes every header column
}

// StatsURL resolves the page of family against baseURL
func StatsURL(baseURL string, family models.Family) (string, error) {
	path, ok := paths[family]
	if !ok {
		return "", fmt.Errorf("unknown stat family: %s", family)
	}
	return resolve(baseURL, path)
}

// RobotsURL returns the robots.txt location for baseURL
func RobotsURL(baseURL string) (string, error) {
	return resolve(baseURL, "/robots.txt")
}

// Build returns the stats pages of every family, in extraction order.
// categories is keyed by family name.
func Build(baseURL string, categories map[string][]string) ([]StatsPage, error) {
	out := make([]StatsPage, 0, len(Families))
	for _, family := range Families {
		u, err := StatsURL(baseURL, family)
		if err != nil {
			return nil, err
		}
		var cats []string
		if c := categories[string(family)]; len(c) > 0 {
			cats = append(cats, c...)
		}
		out = append(out, StatsPage{Family: family, URL: u, Categories: cats})
	}
	return out, nil
}

func resolve(baseURL, ref string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	return base.ResolveReference(r).String(), nil
}
