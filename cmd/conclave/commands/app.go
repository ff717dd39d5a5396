package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/config"
	"github.com/conclavehq/conclave/pkg/engine"
	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/proposal"
	"github.com/conclavehq/conclave/pkg/stores"
	"github.com/conclavehq/conclave/pkg/telemetry"
	"github.com/conclavehq/conclave/pkg/transport"
)

// app wires the configured subsystems together for one command invocation.
type app struct {
	cfg      *config.Config
	log      *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	sqlite   *stores.SQLiteStore
	store    *proposal.Store
	registry *governance.Registry
	caller   *transport.GRPCCaller
	engine   *engine.Engine
}

// openApp loads the config, opens the database, restores state and builds
// the engine. A fresh database bootstraps from the configured policy file.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build metrics: %w", err)
	}
	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Telemetry.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracer: %w", err)
	}

	sqlite, err := stores.NewSQLiteStore(stores.Config{Path: cfg.DatabasePath})
	if err != nil {
		return nil, err
	}
	if err := sqlite.Init(ctx); err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx); err != nil {
		_ = sqlite.Close()
		return nil, err
	}

	snapshot, policy, ok, err := sqlite.Load(ctx)
	if err != nil {
		_ = sqlite.Close()
		return nil, err
	}
	store := proposal.NewStore()
	if ok {
		if err := store.Restore(snapshot); err != nil {
			_ = sqlite.Close()
			return nil, fmt.Errorf("failed to restore state: %w", err)
		}
	} else {
		policy, err = config.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			_ = sqlite.Close()
			return nil, err
		}
		log.Info("bootstrapping from initial policy")
	}
	registry := governance.NewRegistry(policy)

	resolver := transport.NewStaticResolver(cfg.Transport.Endpoints)
	caller, err := transport.NewGRPCCaller(transport.Config{
		ServiceName: cfg.Transport.ServiceName,
		GrantMethod: cfg.Transport.GrantMethod,
		CallTimeout: time.Duration(cfg.Transport.CallTimeout),
	}, resolver, log)
	if err != nil {
		_ = sqlite.Close()
		return nil, err
	}

	eng, err := engine.New(engine.Options{
		Store:      store,
		Registry:   registry,
		Caller:     caller,
		Grants:     caller,
		Checkpoint: sqlite,
		Logger:     log,
		Metrics:    metrics,
	})
	if err != nil {
		_ = sqlite.Close()
		return nil, err
	}

	if !ok {
		// First run: checkpoint the bootstrapped state right away.
		if err := sqlite.Save(ctx, store.Snapshot(), registry.Policy()); err != nil {
			_ = sqlite.Close()
			return nil, fmt.Errorf("failed to checkpoint initial state: %w", err)
		}
	}

	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		tracer:   tracer,
		sqlite:   sqlite,
		store:    store,
		registry: registry,
		caller:   caller,
		engine:   eng,
	}, nil
}

// Close releases all held resources.
func (a *app) Close(ctx context.Context) {
	if a.caller != nil {
		_ = a.caller.Close()
	}
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
	if a.sqlite != nil {
		_ = a.sqlite.Close()
	}
}

// callerPrincipal resolves the acting identity from --as or the configured
// default.
func (a *app) callerPrincipal() (candid.Principal, error) {
	text := asCaller
	if text == "" {
		text = a.cfg.DefaultCaller
	}
	if text == "" {
		return candid.Principal{}, fmt.Errorf("no caller identity: pass --as or set default_caller in the config")
	}
	return candid.PrincipalFromText(text)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printProposal(p proposal.Proposal) error {
	if jsonOutput {
		return printJSON(p)
	}
	category, _ := p.Payload.Category()
	fmt.Printf("Proposal #%d [%s]\n", p.ID, p.State)
	fmt.Printf("  Category:  %s\n", category)
	fmt.Printf("  Proposer:  %s\n", p.Proposer)
	if p.Description != "" {
		fmt.Printf("  About:     %s\n", p.Description)
	}
	fmt.Printf("  Votes:     %d (%d affirmative)\n", len(p.Votes), p.AffirmativeVotes())
	fmt.Printf("  Created:   %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Updated:   %s\n", p.UpdatedAt.Format(time.RFC3339))
	if p.Result != nil {
		fmt.Printf("  Result:    %s\n", p.Result.Kind)
		if p.Result.Decoded != "" {
			fmt.Printf("  Response:  %s\n", p.Result.Decoded)
		}
		if p.Result.DecodeError != "" {
			fmt.Printf("  Decode:    %s\n", p.Result.DecodeError)
		}
		if p.Result.Reason != "" {
			fmt.Printf("  Failure:   %s\n", p.Result.Reason)
		}
	}
	return nil
}
