package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/toolate28/SpiralSafe-sub005/internal/atom"
	"github.com/toolate28/SpiralSafe-sub005/internal/awi"
	"github.com/toolate28/SpiralSafe-sub005/internal/blob"
	"github.com/toolate28/SpiralSafe-sub005/internal/bump"
	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/internal/wave"
)

// app wires the storage collaborators and services for one command
// invocation.
type app struct {
	cfg      *config.Config
	db       *state.DB
	trail    *trail.Trail
	analyzer *wave.Analyzer
	bumps    *bump.Registry
	grantor  *awi.Grantor
	atoms    *atom.Tracker
}

// openApp loads configuration, opens the database, runs migrations,
// and builds the service graph.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	blobDir := cfg.Storage.BlobDir
	if blobDir == "" {
		blobDir = filepath.Join(filepath.Dir(dbPath), "blobs")
	}
	blobs, err := blob.NewStore(blobDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	// The lockout failure window lives in the shared database, not
	// process memory, so it accumulates across CLI invocations.
	tr := trail.New(db)
	registry := bump.NewRegistry(db, tr, cfg.Bumps)
	grantor := awi.NewGrantor(db, state.NewCache(db, cfg.AWI.LockoutWindow), tr, cfg.AWI)

	return &app{
		cfg:      cfg,
		db:       db,
		trail:    tr,
		analyzer: wave.New(db, blobs, tr, cfg.Coherence),
		bumps:    registry,
		grantor:  grantor,
		atoms:    atom.NewTracker(db, registry, grantor, tr),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
