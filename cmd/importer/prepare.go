package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/empenhos/internal/config"
	"github.com/JonMunkholm/empenhos/internal/core"
	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/store"
)

// loadMapping reads the mapping document and checks it against the store.
// Identifiers are resolved against the live schema when schema validation is
// on. Forward references are logged, and rejected when strict is set.
func loadMapping(ctx context.Context, db *store.DB, cfg *config.Config, strict bool) (*mapping.Spec, error) {
	spec, err := mapping.Load(cfg.Import.MappingPath)
	if err != nil {
		return nil, err
	}

	if cfg.Import.ValidateSchema && db != nil {
		spec, err = spec.Resolve(ctx, store.NewCatalog(db.DB, db.Dialect))
		if err != nil {
			return nil, err
		}
	}

	for _, fr := range spec.ForwardReferences() {
		slog.Warn("foreign key references a later table and will be null",
			"table", fr.Table,
			"column", fr.Column,
			"references", fr.Ref,
		)
	}

	dialect := store.Postgres
	if db != nil {
		dialect = db.Dialect
	} else if d, err := store.DialectFor(cfg.Database.Driver); err == nil {
		dialect = d
	}
	if err := core.ValidateSpec(spec, dialect, strict); err != nil {
		return nil, err
	}

	slog.Info("mapping loaded",
		"path", cfg.Import.MappingPath,
		"tables", spec.Len(),
		"physical_tables", len(spec.PhysicalTables()),
	)
	return spec, nil
}

// openStore connects to the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("connected to database", "driver", db.Dialect.Name, "name", cfg.Database.Name)
	return db, nil
}
