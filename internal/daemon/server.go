package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/internal/model"
	"github.com/spall-labs/spall/internal/pipeline"
	"github.com/spall-labs/spall/internal/query"
	"github.com/spall-labs/spall/internal/store"
)

// Server is the spall daemon: one per data directory, discoverable via
// the lock file, gone when idle.
type Server struct {
	cfg    *config.Config
	log    *slog.Logger
	events *bus.Bus

	store    *store.Store
	models   *model.Adapter
	pipeline *pipeline.Pipeline
	queries  *query.Service

	lock *LockFile
	idle *idleTracker
	http *http.Server

	stopOnce chan struct{}
}

// NewServer wires the daemon's components. The store is opened and the
// model adapter loaded inside Run, after leader election succeeds.
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		log:      logger,
		events:   bus.New(),
		lock:     NewLockFile(cfg.LockPath()),
		stopOnce: make(chan struct{}),
	}
}

// Events exposes the daemon bus (used by tests).
func (s *Server) Events() *bus.Bus {
	return s.events
}

// Run starts the daemon and blocks until shutdown. The sequence is:
// startup health guard, model load, store open, ephemeral bind, lock
// publish, serve. SIGINT/SIGTERM stop the server and release the lock
// only while its pid is still ours.
func (s *Server) Run(ctx context.Context) error {
	if err := s.guardStartup(); err != nil {
		return err
	}

	s.models = model.NewAdapter(model.Options{
		ModelsDir:    s.cfg.ModelsDir(),
		Offline:      s.cfg.Embed.Offline,
		EmbedderFile: s.cfg.Embed.ModelFile,
		Events:       s.events,
		Logger:       s.log,
	})
	if err := s.models.Load(ctx); err != nil {
		return err
	}
	defer s.models.Dispose()

	st, err := store.Open(store.Options{
		Path:      s.cfg.DBPath(),
		Dims:      s.models.Dimensions(),
		ModelName: s.models.ModelName(),
		Events:    s.events,
		Logger:    s.log,
	})
	if err != nil {
		return err
	}
	defer st.Close()
	s.store = st

	s.pipeline = pipeline.New(pipeline.Options{
		Store:              st,
		Models:             s.models,
		Events:             s.events,
		Logger:             s.log,
		ChunkMaxTokens:     s.cfg.Chunk.MaxTokens,
		ChunkOverlapTokens: s.cfg.Chunk.OverlapTokens,
		BatchSize:          s.cfg.Embed.BatchSize,
	})
	s.queries = query.New(st, s.models)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to bind: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	s.idle = newIdleTracker(
		time.Duration(s.cfg.Server.IdleTimeoutMS)*time.Millisecond,
		s.cfg.Server.Persist,
		s.Stop,
	)
	s.http = &http.Server{Handler: s.routes()}

	if err := s.lock.Write(LockInfo{PID: os.Getpid(), Port: &port}); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to publish port: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			s.log.Info("daemon_signal", slog.String("signal", sig.String()))
			signal.Stop(sigCh)
			s.Stop()
		case <-s.stopOnce:
			signal.Stop(sigCh)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopOnce:
		}
	}()

	s.log.Info("daemon_listening", slog.Int("port", port), slog.Int("pid", os.Getpid()))
	s.idle.Start()

	serveErr := s.http.Serve(listener)

	if err := s.lock.RemoveIfOwned(os.Getpid()); err != nil {
		s.log.Warn("daemon_lock_release_failed", slog.String("error", err.Error()))
	}

	if serveErr == http.ErrServerClosed {
		return nil
	}
	return serveErr
}

// Stop shuts the HTTP server down once.
func (s *Server) Stop() {
	select {
	case <-s.stopOnce:
		return
	default:
		close(s.stopOnce)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(shutdownCtx)
}

// claimedForUs reports whether a port-less claim was written for this
// process: either by the process itself, or by the client that spawned
// it. Clients claim the lock with their own pid before exec'ing the
// server and pass that pid down via SPALL_SPAWNER_PID.
func claimedForUs(info LockInfo) bool {
	if info.Port != nil {
		return false
	}
	if info.PID == os.Getpid() {
		return true
	}
	spawner, err := strconv.Atoi(os.Getenv(spawnerEnv))
	return err == nil && spawner > 0 && spawner == info.PID
}

// guardStartup refuses to start over a healthy peer unless force is set;
// with force it takes the lock over and terminates the old daemon.
func (s *Server) guardStartup() error {
	info, err := s.lock.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return s.lock.Write(LockInfo{PID: os.Getpid()})
		}
		return err
	}

	healthy := info.Port != nil && HealthOK(*info.Port)

	if !s.cfg.Server.Force {
		if healthy {
			return fmt.Errorf("daemon already running on port %d (pid %d); use --force to take over", *info.Port, info.PID)
		}
		if claimedForUs(*info) {
			// Take the claim over so the lock tracks this process while
			// it finishes starting up.
			return s.lock.Write(LockInfo{PID: os.Getpid()})
		}
		if info.Port == nil && processAlive(info.PID) {
			return fmt.Errorf("daemon pid %d is still starting", info.PID)
		}
		// Stale lock: dead claimant or unhealthy port.
		if err := s.lock.Remove(); err != nil {
			return err
		}
		return s.lock.Write(LockInfo{PID: os.Getpid()})
	}

	// Force takeover: write a fresh claim, terminate the old daemon,
	// wait up to ~2s for it to die.
	oldPID := info.PID
	if err := s.lock.Write(LockInfo{PID: os.Getpid()}); err != nil {
		return err
	}
	if oldPID > 0 && oldPID != os.Getpid() && processAlive(oldPID) {
		if proc, err := os.FindProcess(oldPID); err == nil {
			_ = proc.Signal(syscall.SIGTERM)
		}
		for i := 0; i < lockPollTries; i++ {
			if !processAlive(oldPID) {
				break
			}
			time.Sleep(lockPollInterval)
		}
	}
	return nil
}
