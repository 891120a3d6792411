package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/arclabs/pilot/approval"
	"github.com/arclabs/pilot/artifact"
	"github.com/arclabs/pilot/budget"
	"github.com/arclabs/pilot/bus"
	"github.com/arclabs/pilot/config"
	"github.com/arclabs/pilot/corelog"
	"github.com/arclabs/pilot/critic"
	"github.com/arclabs/pilot/executor"
	"github.com/arclabs/pilot/plan"
	"github.com/arclabs/pilot/planner"
	"github.com/arclabs/pilot/runstore"
	"github.com/arclabs/pilot/telemetry"
	"github.com/arclabs/pilot/toolrouter"
	"github.com/arclabs/pilot/tools"
)

// engine bundles the wired components a CLI invocation needs; it exists
// so run and tools share one construction path instead of duplicating
// the wiring.
type engine struct {
	cfg       *config.Config
	bus       bus.Bus
	gate      *approval.Gate
	store     runstore.Store
	budgetMgr *budget.Manager
	router    *toolrouter.Router
	artifacts *artifact.Store
	logger    corelog.Logger
	exec      *executor.Executor
}

func buildEngine(cfgPath string, withTelemetry bool) (*engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := corelog.NewTextLogger("pilot")

	if withTelemetry {
		if err := telemetry.Enable(); err != nil {
			logger.Warn("telemetry: enable failed", corelog.Fields{"error": err.Error()})
		}
	}

	var eventBus bus.Bus
	var store runstore.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rb := bus.NewRedisBus(client, "")
		rb.SetLogger(logger.WithComponent("bus"))
		eventBus = rb

		rs := runstore.NewRedisStore(client)
		rs.SetLogger(logger.WithComponent("runstore"))
		store = rs
	} else {
		eventBus = bus.NewMemoryBus()
		store = runstore.NewMemoryStore()
	}

	router := toolrouter.New(
		tools.Echo{},
		tools.NewFlaky(),
		tools.NewSearch(),
		tools.BrowserExtract{},
		tools.Summarize{},
	)

	artifacts := artifact.New(cfg.ArtifactDir)
	gate := approval.New(cfg.RiskyTools)
	budgetMgr := budget.New()

	exec := executor.New(
		eventBus,
		gate,
		store,
		budgetMgr,
		critic.Default{},
		router,
		artifacts,
		logger.WithComponent("executor"),
		cfg.StepDeadline,
		cfg.DefaultMaxAttempts,
		cfg.BrowserExtractMaxAttempts,
		cfg.TokenBudget,
	)

	return &engine{
		cfg:       cfg,
		bus:       eventBus,
		gate:      gate,
		store:     store,
		budgetMgr: budgetMgr,
		router:    router,
		artifacts: artifacts,
		logger:    logger,
		exec:      exec,
	}, nil
}

// NewRootCommand constructs the pilot root Cobra command.
func NewRootCommand() *cobra.Command {
	var cfgPath string
	var withTelemetry bool

	root := &cobra.Command{
		Use:           "pilot",
		Short:         "pilot runs autonomous task plans through the engine's core",
		Long:          "pilot drives a Plan through the Planner/Executor/Tool Router/Event Bus core, printing its lifecycle events.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&withTelemetry, "telemetry", false, "enable OpenTelemetry stdout tracing")

	root.AddCommand(newRunCommand(&cfgPath, &withTelemetry))
	root.AddCommand(newToolsCommand(&cfgPath, &withTelemetry))

	return root
}

func newRunCommand(cfgPath *string, withTelemetry *bool) *cobra.Command {
	var planPath string
	var goal string
	var interactive bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a plan to completion, printing its event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if planPath == "" {
				return fmt.Errorf("run: --plan is required")
			}

			eng, err := buildEngine(*cfgPath, *withTelemetry)
			if err != nil {
				return err
			}

			p, err := loadPlan(planPath, goal)
			if err != nil {
				return err
			}

			knownTools := eng.router.Names()
			if err := planner.Validate(p, knownTools); err != nil {
				return fmt.Errorf("run: plan validation: %w", err)
			}

			runID := plan.NewRunID()
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			events := eng.bus.Subscribe(ctx, runID)
			done := make(chan struct{})
			go printEvents(cmd, events, done)

			if interactive {
				go watchApprovals(cmd, eng, runID, ctx)
			}

			eng.exec.Execute(ctx, runID, p)
			cancel()
			<-done
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "path to a YAML plan document (see planner.StaticPlanner)")
	cmd.Flags().StringVar(&goal, "goal", "", "overrides the plan document's recorded goal")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "prompt on stdin for approve/deny when a risky step requests permission")

	return cmd
}

func newToolsCommand(cfgPath *string, withTelemetry *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "list the tools registered with the Tool Router",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(*cfgPath, *withTelemetry)
			if err != nil {
				return err
			}
			for name := range eng.router.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func loadPlan(path, goalOverride string) (*plan.Plan, error) {
	p, err := planner.LoadStaticPlanner(path)
	if err != nil {
		return nil, err
	}
	return p.Plan(context.Background(), goalOverride)
}

func printEvents(cmd *cobra.Command, events <-chan plan.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s step=%s tool=%s summary=%q error=%q\n",
			ev.Type, ev.RunID, ev.StepID, ev.Tool, ev.Summary, ev.Error)
	}
}

// watchApprovals reads lines of the form "approve <stepId>" or "deny
// <stepId> <reason...>" from stdin and forwards them to the run's
// Approval Gate, standing in for an out-of-band operator channel.
func watchApprovals(cmd *cobra.Command, eng *engine, runID string, ctx context.Context) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "approve":
			eng.gate.Grant(runID, fields[1])
		case "deny":
			reason := "denied by operator"
			if len(fields) > 2 {
				reason = strings.Join(fields[2:], " ")
			}
			eng.gate.Deny(runID, fields[1], reason)
		}
	}
}
