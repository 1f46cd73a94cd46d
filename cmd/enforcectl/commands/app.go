package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/machshop/enforcement/pkg/audit"
	"github.com/machshop/enforcement/pkg/config"
	"github.com/machshop/enforcement/pkg/enforcement"
	"github.com/machshop/enforcement/pkg/prereq"
	"github.com/machshop/enforcement/pkg/quality"
	"github.com/machshop/enforcement/pkg/stores"
	"github.com/machshop/enforcement/pkg/telemetry"
)

// app wires the store, resolver, validators, engine, and recorder for one
// command invocation.
type app struct {
	cfg      *config.Config
	store    *stores.SQLiteStore
	engine   *enforcement.Engine
	gate     *quality.Gate
	recorder *audit.Recorder
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics, err = telemetry.NewMetrics(cfg.Metrics)
		if err != nil {
			return nil, err
		}
	}

	var tracer *telemetry.Tracer
	if cfg.Tracing.Enabled {
		tracer, err = telemetry.NewTracer(cfg.Tracing,
			cfg.Service.Name, cfg.Service.Version, cfg.Service.Environment)
		if err != nil {
			return nil, err
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	resolver := enforcement.NewStoreResolver(store, logger.NewComponentLogger("resolver").Zerolog())
	validator := prereq.NewValidator(store, store, logger.NewComponentLogger("prereq").Zerolog())

	// Quality rules come from the YAML rule file when configured, falling
	// back to rows in the store.
	var (
		dispositionRules quality.DispositionRuleSource = store
		signatures       quality.SignatureRuleSource   = store
	)
	if cfg.Rules.Path != "" {
		loader := quality.NewRuleLoader(cfg.Rules.Path, logger.NewComponentLogger("rules").Zerolog())
		if err := loader.Load(); err != nil {
			_ = store.Close()
			return nil, err
		}
		if cfg.Rules.Watch {
			if err := loader.Watch(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		dispositionRules = loader
		signatures = loader
	}

	gate := quality.NewGate(quality.GateDeps{
		WorkOrders:       store,
		Operations:       store,
		Resolver:         resolver,
		Inspections:      store,
		NCRs:             store,
		DispositionRules: dispositionRules,
		Signatures:       signatures,
		Logger:           logger.NewComponentLogger("quality").Zerolog(),
	})

	engine := enforcement.NewEngine(enforcement.Deps{
		WorkOrders:    store,
		Operations:    store,
		Resolver:      resolver,
		Prerequisites: validator,
		Quality:       gate,
		Logger:        logger.NewComponentLogger("engine").Zerolog(),
		Metrics:       metrics,
		Tracer:        tracer,
	})

	recorder := audit.NewRecorder(store, logger.NewComponentLogger("audit").Zerolog(), metrics)

	return &app{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		gate:     gate,
		recorder: recorder,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
	}, nil
}

func (a *app) Close() {
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.tracer.Shutdown(ctx)
		cancel()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// printResult renders a decision or other result value, honoring --json.
func printResult(v any) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	switch r := v.(type) {
	case *enforcement.Decision:
		printDecision(r)
	case *quality.InspectionRequirement:
		fmt.Printf("required: %v\n", r.Required)
		fmt.Printf("mode:     %s\n", r.Mode)
		fmt.Printf("source:   %s\n", r.Source)
		if r.Reason != "" {
			fmt.Printf("reason:   %s\n", r.Reason)
		}
	case *quality.SignatureDecision:
		fmt.Printf("required: %v\n", r.Required)
		if r.SignatureLevel != "" {
			fmt.Printf("level:    %s\n", r.SignatureLevel)
		}
	case *quality.DispositionDecision:
		fmt.Printf("valid: %v\n", r.Valid)
		if r.Reason != "" {
			fmt.Printf("reason: %s\n", r.Reason)
		}
		if r.RequiresApproval {
			fmt.Printf("requires approval: %s\n", r.ApprovalLevel)
		}
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	return nil
}

func printDecision(d *enforcement.Decision) {
	if d.Allowed {
		fmt.Println("ALLOWED")
	} else {
		fmt.Println("DENIED")
	}
	if d.Reason != "" {
		fmt.Printf("reason: %s\n", d.Reason)
	}
	if d.ConfigMode != "" {
		fmt.Printf("mode:   %s\n", d.ConfigMode)
	}
	for _, w := range d.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, b := range d.BypassesApplied {
		fmt.Printf("bypass:  %s\n", b)
	}
	for _, c := range d.EnforcementChecks {
		fmt.Printf("check:   %-20s enforced=%v passed=%v\n", c.Name, c.Enforced, c.Passed)
	}
}
