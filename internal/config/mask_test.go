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
	"strings"
	"testing"
)

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://app:secret@db:5432/shop", "postgres://app:********@db:5432/shop"},
		{"postgres://app@db/shop", "postgres://app@db/shop"},
		{"host=db user=app password=secret dbname=shop", "host=db user=app password=******** dbname=shop"},
		{"/var/data/shop.db", "/var/data/shop.db"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MaskURL(tt.in); got != tt.want {
			t.Errorf("MaskURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskedDoesNotMutateOriginal(t *testing.T) {
	cfg := defaultConfig()
	cfg.Databases = []DatabaseConfig{{Name: "shop", URL: "postgres://app:secret@db/shop", Password: "pw"}}
	cfg.LLM.AnthropicAPIKey = "sk-ant-123"

	masked := cfg.Masked()

	if strings.Contains(masked.Databases[0].URL, "secret") || masked.Databases[0].Password != maskedValue {
		t.Errorf("database secrets leaked: %+v", masked.Databases[0])
	}
	if masked.LLM.AnthropicAPIKey != maskedValue {
		t.Errorf("api key = %q", masked.LLM.AnthropicAPIKey)
	}
	if masked.LLM.OpenAIAPIKey != "" {
		t.Error("unset key should stay empty")
	}
	if cfg.Databases[0].Password != "pw" || cfg.LLM.AnthropicAPIKey != "sk-ant-123" {
		t.Error("Masked() modified the original config")
	}
}
