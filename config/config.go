package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything a pipeline run needs
type Config struct {
	Site struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"site"`

	Browser struct {
		Headless        bool          `yaml:"headless"`
		PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
		RenderTimeout   time.Duration `yaml:"render_timeout"`
		AcceptCookies   bool          `yaml:"accept_cookies"`
		AdvancedFilters bool          `yaml:"advanced_filters"`
	} `yaml:"browser"`

	Pacing struct {
		MinDelay          time.Duration `yaml:"min_delay"`
		MaxDelay          time.Duration `yaml:"max_delay"`
		RequestsPerMinute float64       `yaml:"requests_per_minute"`
	} `yaml:"pacing"`

	Proxy struct {
		Endpoints    []string      `yaml:"endpoints"`
		ProbeURL     string        `yaml:"probe_url"`
		ProbeTimeout time.Duration `yaml:"probe_timeout"`
	} `yaml:"proxy"`

	Filters struct {
		Seasons     []string `yaml:"seasons"`
		Conferences []string `yaml:"conferences"`
		Positions   []string `yaml:"positions"`
	} `yaml:"filters"`

	// Categories per stat family; an empty list takes every header column
	Categories map[string][]string `yaml:"categories"`

	Selectors struct {
		Table          string `yaml:"table"`
		HeaderRow      string `yaml:"header_row"`
		HeaderAttr     string `yaml:"header_attr"`
		FilterBlock    string `yaml:"filter_block"`
		FilterLabel    string `yaml:"filter_label"`
		CookieButton   string `yaml:"cookie_button"`
		AdvancedToggle string `yaml:"advanced_toggle"`
		SubmitButton   string `yaml:"submit_button"`
		SubmitText     string `yaml:"submit_text"`
	} `yaml:"selectors"`

	Output struct {
		Dir           string `yaml:"dir"`
		Name          string `yaml:"name"`
		SyntheticName string `yaml:"synthetic_name"`
	} `yaml:"output"`

	Anonymize struct {
		Seed uint64 `yaml:"seed"`
	} `yaml:"anonymize"`

	Sheets struct {
		SpreadsheetURL string `yaml:"spreadsheet_url"`
		Credentials    string `yaml:"credentials"`
	} `yaml:"sheets"`

	Telegram struct {
		ChatID int64 `yaml:"chat_id"`
	} `yaml:"telegram"`
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Site.BaseURL = "https://www.nba.com/"
	cfg.Site.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"

	cfg.Browser.Headless = true
	cfg.Browser.PageLoadTimeout = 60 * time.Second
	cfg.Browser.RenderTimeout = 20 * time.Second
	cfg.Browser.AcceptCookies = true
	cfg.Browser.AdvancedFilters = true

	cfg.Pacing.MinDelay = 2 * time.Second
	cfg.Pacing.MaxDelay = 5 * time.Second
	cfg.Pacing.RequestsPerMinute = 20

	cfg.Proxy.ProbeURL = "https://www.nba.com/"
	cfg.Proxy.ProbeTimeout = 15 * time.Second

	cfg.Filters.Conferences = []string{"East", "West"}
	cfg.Filters.Positions = []string{"Center", "Guard", "Forward"}

	cfg.Categories = map[string][]string{
		"shooting":        nil,
		"contested-shots": {"contested_shots_2pt", "contested_shots_3pt"},
		"box-outs":        {"off_boxouts", "def_boxouts"},
	}

	cfg.Selectors.Table = "table.Crom_table__p1iZz"
	cfg.Selectors.HeaderRow = "thead tr.Crom_headers__mzI_m"
	cfg.Selectors.HeaderAttr = "field"
	cfg.Selectors.FilterBlock = ".nba-stats-primary-split-block"
	cfg.Selectors.FilterLabel = ".DropDown_label__lttfI"
	cfg.Selectors.CookieButton = "#onetrust-accept-btn-handler"
	cfg.Selectors.AdvancedToggle = "button.StatsAdvancedFiltersPanel_safArrow__EqRgu"
	cfg.Selectors.SubmitButton = "button.Button_button__L2wUb"
	cfg.Selectors.SubmitText = "get stats"

	cfg.Output.Dir = "dataset"
	cfg.Output.Name = "nba_test_dataset"
	cfg.Output.SyntheticName = "nba_test_dataset_rand_same_distr"
	return cfg
}

// Validate checks the values a run cannot recover from
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Browser.RenderTimeout <= 0 {
		return fmt.Errorf("browser.render_timeout must be positive")
	}
	if c.Pacing.MaxDelay < c.Pacing.MinDelay {
		return fmt.Errorf("pacing.max_delay (%s) is lower than pacing.min_delay (%s)", c.Pacing.MaxDelay, c.Pacing.MinDelay)
	}
	if c.Output.Name == "" || c.Output.SyntheticName == "" {
		return fmt.Errorf("output.name and output.synthetic_name are required")
	}
	return nil
}

// GetEnvOrDefault returns the environment value for key, or defaultValue if unset
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
