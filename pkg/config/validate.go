package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	TagModeAll   = "all"
	TagModeFirst = "first"
)

// Validate checks the configuration for values the commands cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if c.Fetch.MaxScrollsLikes < 0 || c.Fetch.MaxScrollsBookmarks < 0 {
		errs = append(errs, errors.New("fetch: max scrolls must not be negative"))
	}
	if c.Fetch.NoChangeThreshold < 1 {
		errs = append(errs, errors.New("fetch: no_change_threshold must be at least 1"))
	}

	switch c.Tagging.Mode {
	case TagModeAll, TagModeFirst:
	default:
		errs = append(errs, fmt.Errorf("tagging: unknown mode %q", c.Tagging.Mode))
	}
	seen := make(map[string]bool, len(c.TagRules))
	for i, r := range c.TagRules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("tag_rules[%d]: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("tag_rules[%d]: duplicate rule %q", i, name))
		}
		seen[name] = true
		if len(r.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("tag_rules[%d]: rule %q has no keywords", i, name))
		}
	}

	if c.PaperExtraction.MinRequestDelay <= 0 {
		errs = append(errs, errors.New("paper_extraction: min_request_delay must be positive"))
	}
	if c.PaperExtraction.ArxivMaxResults < 1 {
		errs = append(errs, errors.New("paper_extraction: arxiv_max_results must be at least 1"))
	}
	if c.PaperExtraction.TriggerTag == "" {
		errs = append(errs, errors.New("paper_extraction: trigger_tag is required"))
	}

	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage: dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}

	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram: chat_id is required when token is set"))
	}

	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule: cron %q: %w", c.Schedule.Cron, err))
	}

	return errors.Join(errs...)
}
