package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/plancraft/internal/checkpoint"
	"github.com/felixgeelhaar/plancraft/internal/config"
	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/engine"
	"github.com/felixgeelhaar/plancraft/internal/errors"
	"github.com/felixgeelhaar/plancraft/internal/log"
	"github.com/felixgeelhaar/plancraft/internal/metrics"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/telemetry"
	"github.com/felixgeelhaar/plancraft/internal/version"
	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

// session is what one command invocation works with. setup creates it and
// Execute closes it.
type session struct {
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Metrics

	span     trace.Span
	shutdown func(context.Context) error

	store   workspace.Store
	closer  func()
	manager *checkpoint.Manager
}

var current *session

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	lc := log.ConfigFrom(level, cfg.Logging.Format, cmd.ErrOrStderr())
	lc.ServiceVersion = version.Version
	logger := log.New(lc)
	log.SetDefaultLogger(logger)

	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version.Version
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.SampleRate = cfg.Telemetry.SampleRate
	shutdown, err := telemetry.InitProvider(cmd.Context(), tc)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), cmd.CommandPath())
	cmd.SetContext(ctx)

	current = &session{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.InitDefault(),
		span:     span,
		shutdown: shutdown,
	}
	logger.Debug("command started", "command", cmd.CommandPath(), "backend", cfg.Workspace.Backend)
	return nil
}

func (s *session) close(ctx context.Context, err error) {
	if s.closer != nil {
		s.closer()
	}
	telemetry.End(s.span, err)
	if shutdownErr := s.shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
		s.logger.Warn("tracer shutdown failed", "error", shutdownErr)
	}
}

// checkpoints opens the configured workspace backend on first use.
func (s *session) checkpoints(ctx context.Context) (*checkpoint.Manager, error) {
	if s.manager != nil {
		return s.manager, nil
	}

	switch s.cfg.Workspace.Backend {
	case config.BackendNATS:
		storeDir := s.cfg.NATS.StoreDir
		if s.cfg.NATS.Embedded && storeDir == "" {
			dir, err := config.Dir()
			if err != nil {
				return nil, err
			}
			storeDir = filepath.Join(dir, "nats")
		}
		b, err := workspace.OpenNATS(ctx, workspace.NATSOptions{
			URL:          s.cfg.NATS.URL,
			Embedded:     s.cfg.NATS.Embedded,
			StoreDir:     storeDir,
			Bucket:       s.cfg.NATS.Bucket,
			ReadyTimeout: s.cfg.Checkpoint.Timeout,
		})
		if err != nil {
			return nil, err
		}
		s.store = b
		s.closer = b.Close
		s.logger.Debug("workspace backend opened", "backend", "nats", "url", b.ClientURL())
	default:
		s.store = workspace.NewFSStore(s.cfg.Workspace.Root)
		s.logger.Debug("workspace backend opened", "backend", "fs", "root", s.cfg.Workspace.Root)
	}

	s.manager = checkpoint.NewManager(s.store,
		checkpoint.WithTimeout(s.cfg.Checkpoint.Timeout),
		checkpoint.WithLogger(s.logger))
	return s.manager, nil
}

func (s *session) engineOptions(mgr *checkpoint.Manager) []engine.Option {
	return []engine.Option{
		engine.WithCheckpoints(mgr),
		engine.WithLogger(s.logger),
		engine.WithMetrics(s.metrics),
	}
}

// create starts a new plan and writes its first checkpoint.
func (s *session) create(ctx context.Context, id domain.PlanID, name, description string) (*engine.Engine, error) {
	mgr, err := s.checkpoints(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		if id, err = domain.GeneratePlanID(); err != nil {
			return nil, err
		}
	} else if err := validatePlanID(id.String()); err != nil {
		return nil, err
	}
	switch _, err := mgr.Latest(ctx, id.String()); {
	case err == nil:
		return nil, errors.Validation(errors.ErrCodeInvalidDefinition, "plan %s already exists", id).
			WithSuggestion("Pick another --id or omit it to generate one")
	case !errors.IsNotFound(err):
		return nil, err
	}
	return engine.Create(id, name, description, s.engineOptions(mgr)...)
}

// open loads a plan from its newest checkpoint.
func (s *session) open(ctx context.Context, id string) (*engine.Engine, error) {
	if err := validatePlanID(id); err != nil {
		return nil, err
	}
	mgr, err := s.checkpoints(ctx)
	if err != nil {
		return nil, err
	}
	return engine.Open(ctx, id, s.engineOptions(mgr)...)
}

// persist writes a checkpoint recording which command produced it.
func (s *session) persist(ctx context.Context, cmd *cobra.Command, e *engine.Engine) (checkpoint.Summary, error) {
	sum, err := e.CreateCheckpoint(ctx, map[string]string{"command": cmd.CommandPath()})
	if err != nil {
		return checkpoint.Summary{}, err
	}
	pr := e.Progress()
	s.metrics.RecordProgress(e.ID().String(), pr.TasksCompleted, pr.TotalTasks, pr.PercentComplete)
	return sum, nil
}

// plans lists known plan ids.
func (s *session) plans(ctx context.Context) ([]string, error) {
	if _, err := s.checkpoints(ctx); err != nil {
		return nil, err
	}
	lister, ok := s.store.(workspace.Lister)
	if !ok {
		return nil, fmt.Errorf("workspace backend %q cannot list plans", s.cfg.Workspace.Backend)
	}
	return lister.Workspaces(ctx)
}

// change opens a plan, applies fn, checkpoints the result, and renders the
// transitions fn reports.
func (s *session) change(cmd *cobra.Command, planID, action string, fn func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error)) error {
	ctx := cmd.Context()
	e, err := s.open(ctx, planID)
	if err != nil {
		return err
	}
	trs, created, err := fn(ctx, e)
	if err != nil {
		return err
	}
	sum, err := s.persist(ctx, cmd, e)
	if err != nil {
		return err
	}
	return render(cmd, changeView{
		Action:      action,
		PlanID:      e.ID(),
		Created:     created,
		Transitions: trs,
		Checkpoint:  sum,
	})
}
