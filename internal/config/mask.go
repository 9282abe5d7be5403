/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"net/url"
	"regexp"
)

const maskedValue = "********"

var dsnPasswordPattern = regexp.MustCompile(`(?i)(password\s*=\s*)(\S+)`)

// Masked returns a copy safe for display, with passwords and API keys redacted
func (cfg *Config) Masked() *Config {
	out := *cfg
	out.Databases = make([]DatabaseConfig, len(cfg.Databases))
	for i, db := range cfg.Databases {
		if db.Password != "" {
			db.Password = maskedValue
		}
		db.URL = MaskURL(db.URL)
		out.Databases[i] = db
	}
	out.LLM.AnthropicAPIKey = maskSecret(cfg.LLM.AnthropicAPIKey)
	out.LLM.OpenAIAPIKey = maskSecret(cfg.LLM.OpenAIAPIKey)
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return maskedValue
}

// MaskURL redacts the password of a URL or key=value DSN
func MaskURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), maskedValue)
			return u.String()
		}
		return raw
	}
	return dsnPasswordPattern.ReplaceAllString(raw, "${1}"+maskedValue)
}
