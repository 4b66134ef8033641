package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spyglass-sh/spyglass/internal/ai"
	"github.com/spyglass-sh/spyglass/internal/budget"
	"github.com/spyglass-sh/spyglass/internal/cache"
	"github.com/spyglass-sh/spyglass/internal/config"
	"github.com/spyglass-sh/spyglass/internal/gateway"
	"github.com/spyglass-sh/spyglass/internal/ratelimit"
	"github.com/spyglass-sh/spyglass/internal/store"
	"github.com/spyglass-sh/spyglass/internal/xapi"
)

// app holds the wired-up components every subcommand needs. Commands build it
// once in RunE and close it on the way out.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	ledger  *budget.Ledger
	cache   *cache.Cache
	gateway *gateway.Gateway
	xapi    *xapi.Client
	ai      *ai.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening data store: %w", err)
	}

	ledger := budget.NewLedger(budget.NewStore(db), cfg.Budget.DailyLimit)
	cch := cache.New(db)

	xClient := xapi.NewClient(cfg.API.BaseURL, cfg.API.Key, cfg.API.Timeout)
	aiClient := ai.NewClient(ai.Config{
		APIKey:  cfg.AI.Key,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
	})

	mux := gateway.Mux{
		"search":  xClient,
		"profile": xClient,
		"tweet":   xClient,
		"thread":  xClient,
		"trends":  xClient,
		"analyze": aiClient,
	}

	gw := gateway.New(ledger, cch, mux)
	gw.SetPacer(ratelimit.New(cfg.API.RatePerMinute, time.Minute))

	return &app{
		cfg:     cfg,
		db:      db,
		ledger:  ledger,
		cache:   cch,
		gateway: gw,
		xapi:    xClient,
		ai:      aiClient,
	}, nil
}

func (a *app) close() {
	a.db.Close()
}

// defaultPageSize is the tweet page size assumed when estimating cost for a
// call whose result count is unknown up front.
const defaultPageSize = 20

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResponse renders a gateway response: the raw payload, followed by a
// cost line on stderr so piped output stays clean JSON.
func printResponse(resp *gateway.Response) error {
	var pretty any
	if err := json.Unmarshal(resp.Payload, &pretty); err != nil {
		// Not JSON; emit as-is.
		fmt.Println(string(resp.Payload))
	} else if err := printJSON(pretty); err != nil {
		return err
	}
	if resp.Cached {
		fmt.Fprintf(os.Stderr, "cached %s ago, $0.0000 spent\n", resp.CacheAge.Round(time.Second))
	} else {
		fmt.Fprintf(os.Stderr, "$%.4f spent\n", resp.Cost)
	}
	return nil
}
