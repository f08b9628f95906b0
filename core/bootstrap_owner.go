package core

import (
	"context"
	"errors"
	"log"
)

// BootstrapDefaultOwner creates the configured default owner when none exists.
// It is idempotent: running it on every process start creates at most one
// account. It returns nil when bootstrap is not configured. Callers must treat
// a returned error as non-fatal; bootstrap never blocks startup.
func BootstrapDefaultOwner(ctx context.Context, owners OwnerRepository, hasher *PasswordHasher, cfg Config) error {
	if cfg.DefaultOwnerEmail == "" || cfg.DefaultOwnerPassword == "" {
		return nil
	}

	existing, err := owners.FindByEmail(ctx, cfg.DefaultOwnerEmail)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := hasher.Hash(cfg.DefaultOwnerPassword)
	if err != nil {
		return err
	}

	if _, err := owners.Create(ctx, "Default Owner", cfg.DefaultOwnerEmail, hash, "000-000-0000"); err != nil {
		// A concurrent start may have won the insert; that still satisfies idempotency.
		if errors.Is(err, ErrEmailTaken) {
			return nil
		}
		return err
	}

	log.Printf("default owner created email=%s", cfg.DefaultOwnerEmail)
	return nil
}
