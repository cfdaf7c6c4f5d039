package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/fsutil"
	"github.com/Digital-Shane/tidy-sort/internal/logger"
	"github.com/Digital-Shane/tidy-sort/internal/oplog"
	"github.com/Digital-Shane/tidy-sort/internal/organize"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/Digital-Shane/tidy-sort/internal/provider/setup"
	"github.com/Digital-Shane/tidy-sort/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// staleClaim bounds how long a crashed worker can hold a source path.
const staleClaim = 2 * time.Hour

// remoteSearcher is the cached provider chain used by the engine.
type remoteSearcher interface {
	provider.Searcher
	SaveCache() error
}

type searcherFactory func(cfg *config.Config, log zerolog.Logger) (remoteSearcher, error)

// commandContext lazily loads the configuration shared by the subcommands.
type commandContext struct {
	opts *rootOptions

	configOnce sync.Once
	config     *config.Config
	configErr  error

	newSearcher searcherFactory
}

func newCommandContext() *commandContext {
	return &commandContext{
		opts:        &rootOptions{},
		newSearcher: defaultSearcher,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.opts.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func defaultSearcher(cfg *config.Config, log zerolog.Logger) (remoteSearcher, error) {
	registry, err := setup.LoadProviders(setup.Options{Settings: cfg.Providers, Logger: log})
	if err != nil {
		return nil, err
	}
	cachePath, err := cfg.CachePath()
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.Providers.CacheHours) * time.Hour
	return provider.NewCache(registry, ttl, cachePath), nil
}

// services is everything one command run needs. Fields stay nil when the
// command did not ask for them.
type services struct {
	cfg      *config.Config
	log      zerolog.Logger
	journal  *oplog.Journal
	store    *store.Store
	catalog  *catalog.Catalog
	monitor  *fsutil.Monitor
	searcher remoteSearcher
	engine   *organize.Engine
}

type serviceNeeds struct {
	catalog bool
	engine  bool
}

// openServices builds the requested services for cmd. Close must be called
// on the result.
func (c *commandContext) openServices(ctx context.Context, cmd *cobra.Command, args []string, needs serviceNeeds) (*services, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if c.opts.logLevel != "" {
		level = c.opts.logLevel
	}
	logFile, err := cfg.LogFilePath()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Options{
		Level:   level,
		File:    logFile,
		NoColor: cfg.Logging.ConsoleNoColor,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	svc := &services{cfg: cfg, log: log}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	svc.store, err = store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	if needs.engine {
		needs.catalog = true
	}
	if needs.catalog {
		svc.catalog = catalog.New(catalog.Options{
			Roots:  cfg.TV.LibraryPaths,
			Repo:   svc.store,
			Logger: logger.Component(log, "catalog"),
		})
		if err := svc.catalog.Scan(ctx); err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
	}
	if !needs.engine {
		return svc, nil
	}

	journalDir, err := oplog.DefaultDir()
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.journal = oplog.New(journalDir, cfg.Logging.EnableJournal)
	if err := svc.journal.Start(cmd.CommandPath(), args); err != nil {
		log.Warn().Err(err).Msg("failed to start operation journal")
	}
	if removed, err := svc.journal.Cleanup(cfg.Logging.RetentionDays); err != nil {
		log.Warn().Err(err).Msg("failed to clean up old journal sessions")
	} else if removed > 0 {
		log.Debug().Int("removed", removed).Msg("removed old journal sessions")
	}

	svc.searcher, err = c.newSearcher(cfg, logger.Component(log, "providers"))
	if err != nil {
		svc.Close()
		return nil, err
	}

	cat := svc.catalog
	svc.monitor = fsutil.NewMonitor()
	svc.monitor.OnComplete = func(path string, refresh bool) {
		if refresh {
			cat.RefreshPath(context.Background(), path)
		}
	}

	svc.engine = organize.NewEngine(organize.Options{
		Catalog:  cat,
		Searcher: svc.searcher,
		Results:  svc.store,
		Registry: store.NewRegistry(staleClaim),
		Matches:  cfg,
		FS:       fsutil.NewOS(svc.journal),
		Monitor:  svc.monitor,
		TV:       cfg.TV,
		Logger:   log,
	})
	return svc, nil
}

// Close waits for background work and releases the store, the journal and
// the provider cache.
func (s *services) Close() error {
	var errs []error
	if s.engine != nil {
		s.engine.Wait()
	}
	if s.searcher != nil {
		if err := s.searcher.SaveCache(); err != nil {
			s.log.Warn().Err(err).Msg("failed to save provider cache")
		}
	}
	if s.journal != nil {
		if err := s.journal.End(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
