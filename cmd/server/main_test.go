package main

import (
	"testing"

	"salescalc/internal/config"
)

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := []config.Config{
		{Port: "http", DefaultCartID: "main"},
		{Port: "70000", DefaultCartID: "main"},
		{Port: "8080", DefaultCartID: ""},
		{Port: "8080", DefaultCartID: "till/1"},
		{Port: "8080", DefaultCartID: "main", AppEnv: "prod", AllowedOrigin: "*"},
	}
	for _, cfg := range cases {
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_CART_ID", "")
	t.Setenv("APP_ENV", "")
	if err := validateConfig(config.Load()); err != nil {
		t.Fatalf("expected defaults to pass, got %v", err)
	}
}
