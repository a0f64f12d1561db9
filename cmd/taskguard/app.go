package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wronai/taskguard/internal/checkpoint"
	"github.com/wronai/taskguard/internal/config"
	"github.com/wronai/taskguard/internal/docparse"
	"github.com/wronai/taskguard/internal/focus"
	"github.com/wronai/taskguard/internal/inference"
	"github.com/wronai/taskguard/internal/interceptor"
	"github.com/wronai/taskguard/internal/practice"
	"github.com/wronai/taskguard/internal/scanner"
	"github.com/wronai/taskguard/internal/task"
	"github.com/wronai/taskguard/pkg/cerr"
	"github.com/wronai/taskguard/pkg/clog"
	"github.com/wronai/taskguard/pkg/storage"
)

// runtime wires the full pipeline for one invocation in one working
// directory.
type runtime struct {
	cwd         string
	cfg         *config.Config
	env         *config.Env
	logger      *slog.Logger
	backend     storage.Storage
	store       *task.Store
	states      *focus.StateStore
	controller  *focus.Controller
	engine      *practice.Engine
	checkpoints *checkpoint.Manager
	parser      *docparse.Parser
	ic          *interceptor.Interceptor
	auditCloser io.Closer
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to resolve working directory", err)
	}
	env, err := config.LoadEnv()
	if err != nil {
		return nil, cerr.NewError(cerr.Validation, "invalid environment configuration", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	logger := clog.NewLogger(env.SlogLevel())

	backend, err := newBackend(ctx, cwd, env)
	if err != nil {
		return nil, err
	}
	audit, auditCloser, err := clog.NewAuditLogger(filepath.Join(cwd, config.StateDir, "audit.log"))
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to open audit log", err)
	}

	store := task.NewStore(backend, filepath.Join(cwd, config.StateDir, "store.lock"))
	controller := focus.NewController(store, cfg.Focus)
	engine := practice.NewEngine(cfg.BestPractices)
	checkpoints := checkpoint.NewManager(backend, cwd)
	parser := docparse.NewParser(inference.NewClient(cfg.Inference), logger)

	return &runtime{
		cwd:         cwd,
		cfg:         cfg,
		env:         env,
		logger:      logger,
		backend:     backend,
		store:       store,
		states:      focus.NewStateStore(backend),
		controller:  controller,
		engine:      engine,
		checkpoints: checkpoints,
		parser:      parser,
		ic:          interceptor.New(scanner.New(), controller, engine, checkpoints, logger, audit),
		auditCloser: auditCloser,
	}, nil
}

func newBackend(ctx context.Context, cwd string, env *config.Env) (storage.Storage, error) {
	switch env.StorageType {
	case "s3":
		if env.S3Bucket == "" {
			return nil, cerr.NewErrorWithHint(cerr.Validation, "s3 storage requires a bucket",
				nil, "set TASKGUARD_S3_BUCKET or switch TASKGUARD_STORAGE_TYPE back to local")
		}
		s3, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, cerr.NewError(cerr.Unavailable, "failed to connect to s3", err)
		}
		return s3, nil
	default:
		local, err := storage.NewLocalStorage(filepath.Join(cwd, env.StorageBaseDir))
		if err != nil {
			return nil, cerr.NewError(cerr.Internal, "failed to open local storage", err)
		}
		return local, nil
	}
}

func (r *runtime) Close() {
	if r.auditCloser != nil {
		_ = r.auditCloser.Close()
	}
}

// loadState reads the session state for this working directory.
func (r *runtime) loadState(ctx context.Context) (*focus.SessionState, error) {
	return r.states.Load(ctx)
}

func (r *runtime) saveState(ctx context.Context, st *focus.SessionState) error {
	return r.states.Save(ctx, st)
}
