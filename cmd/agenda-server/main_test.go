package main

import (
	"testing"

	"github.com/agendasaude/agendasaude/internal/config"
)

func TestCommandTree(t *testing.T) {
	serve := serveCmd()
	if serve.Use != "serve" {
		t.Errorf("serve.Use = %q", serve.Use)
	}
	if serve.RunE == nil {
		t.Error("serve command has no RunE")
	}

	migrate := migrateCmd()
	if migrate.Use != "migrate" {
		t.Errorf("migrate.Use = %q", migrate.Use)
	}

	subs := map[string]bool{}
	for _, c := range migrate.Commands() {
		subs[c.Use] = true
	}
	for _, want := range []string{"up", "status"} {
		if !subs[want] {
			t.Errorf("migrate is missing %q subcommand", want)
		}
	}
}

func TestJWTConfigFrom(t *testing.T) {
	withKey := jwtConfigFrom(&config.Config{
		AuthIssuer:     "https://sso.example.org",
		AuthAudience:   "agenda",
		AuthSigningKey: "supersecret",
	})
	if string(withKey.SigningKey) != "supersecret" {
		t.Errorf("SigningKey = %q, want supersecret", withKey.SigningKey)
	}
	if withKey.Issuer != "https://sso.example.org" || withKey.Audience != "agenda" {
		t.Errorf("issuer/audience not carried over: %+v", withKey)
	}

	// Without a shared key the field must stay nil so JWKS mode engages.
	jwksOnly := jwtConfigFrom(&config.Config{AuthJWKSURL: "https://sso.example.org/jwks"})
	if jwksOnly.SigningKey != nil {
		t.Errorf("SigningKey = %v, want nil", jwksOnly.SigningKey)
	}
	if jwksOnly.JWKSURL != "https://sso.example.org/jwks" {
		t.Errorf("JWKSURL = %q", jwksOnly.JWKSURL)
	}
}

func TestMigrateSubcommandFlags(t *testing.T) {
	migrate := migrateCmd()
	for _, c := range migrate.Commands() {
		if c.Flags().Lookup("dir") == nil {
			t.Errorf("migrate %s has no --dir flag", c.Use)
		}
	}
}
