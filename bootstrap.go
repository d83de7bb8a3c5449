package main

import (
	"fmt"
	"log"

	"github.com/pquerna/otp/totp"

	"github.com/example/authstarter/internal/config"
)

// bootstrapDefaultUser creates the initial identity when the store is empty.
// The password hash comes pre-resolved from config; if no TOTP secret was
// configured a fresh one is generated and printed once so it can be added to
// an authenticator app.
func bootstrapDefaultUser(db DB, cfg *config.Config) error {
	count, err := db.CountUsers()
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		log.Printf("user store already has %d user(s), skipping bootstrap", count)
		return nil
	}

	hash := cfg.AuthPasswordHash
	if hash == "" {
		if hash, err = hashPassword(cfg.AuthPassword); err != nil {
			return fmt.Errorf("hashing bootstrap password: %w", err)
		}
	}

	secret := cfg.Auth2FASecret
	generated := false
	if secret == "" {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "authstarter",
			AccountName: cfg.AuthUsername,
		})
		if err != nil {
			return fmt.Errorf("generating TOTP secret: %w", err)
		}
		secret = key.Secret()
		generated = true
	}

	user, err := db.CreateUser(normalizeUsername(cfg.AuthUsername), hash, secret)
	if err != nil {
		return fmt.Errorf("creating bootstrap user: %w", err)
	}

	log.Printf("bootstrap user %q created (id %d)", user.Username, user.ID)
	if generated {
		log.Printf("generated 2FA secret for %q: %s (add it to your authenticator app)", user.Username, secret)
	}
	return nil
}
