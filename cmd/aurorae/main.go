package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/aurorae-haven/aurorae/internal/backup"
	"github.com/aurorae-haven/aurorae/internal/braindump"
	"github.com/aurorae-haven/aurorae/internal/bus"
	"github.com/aurorae-haven/aurorae/internal/config"
	"github.com/aurorae-haven/aurorae/internal/flatstore"
	"github.com/aurorae-haven/aurorae/internal/migrate"
	otelPkg "github.com/aurorae-haven/aurorae/internal/otel"
	"github.com/aurorae-haven/aurorae/internal/portability"
	"github.com/aurorae-haven/aurorae/internal/store"
	"github.com/aurorae-haven/aurorae/internal/taskmatrix"
	"github.com/aurorae-haven/aurorae/internal/telemetry"
	"github.com/aurorae-haven/aurorae/internal/templates"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.2-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

  %s                          Run the persistence service (backup scheduler)

SUBCOMMANDS:
  %s migrate                  Move legacy flat-store data into the object store
  %s export [-dir <path>]     Write a full export bundle
  %s import <file>            Replace the database with an export bundle
  %s template <action>        Manage templates
                              Actions: list, seed, export, import, delete, instantiate
  %s backup <action>          Manage backup snapshots
                              Actions: now, list, clean
  %s note <action>            Manage brain dump notes
                              Actions: list, export

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  AURORAE_HOME            Data directory (default: ~/.aurorae)
  AURORAE_DB_PATH         SQLite database file
  AURORAE_FLAT_DIR        Legacy flat store directory
  AURORAE_EXPORT_DIR      Export bundle directory
  AURORAE_LOG_LEVEL       debug, info, warn, or error
  AURORAE_BACKUP_CRON     Cron expression for scheduled snapshots

EXAMPLES:
  Migrate legacy data:    %s migrate
  Export everything:      %s export
  Seed built-ins:         %s template seed
  Snapshot now:           %s backup now
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	// Quiet logs (file-only) on a terminal so command output stays clean.
	quietLogs := isatty.IsTerminal(os.Stdout.Fd())
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		switch strings.ToLower(strings.TrimSpace(args[0])) {
		case "help", "-h", "--help":
			printUsage()
			os.Exit(0)
		case "migrate":
			os.Exit(runMigrateCommand(ctx, quietLogs))
		case "export":
			os.Exit(runExportCommand(ctx, quietLogs, args[1:]))
		case "import":
			os.Exit(runImportCommand(ctx, quietLogs, args[1:]))
		case "template":
			os.Exit(runTemplateCommand(ctx, quietLogs, args[1:]))
		case "backup":
			os.Exit(runBackupCommand(ctx, quietLogs, args[1:]))
		case "note":
			os.Exit(runNoteCommand(ctx, quietLogs, args[1:]))
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	runService(ctx, quietLogs)
}

// runService runs until interrupted, with the snapshot scheduler active.
func runService(ctx context.Context, quietLogs bool) {
	rt, err := openRuntime(ctx, quietLogs)
	if err != nil {
		fatalStartup(nil, err)
	}
	defer rt.Close(ctx)

	sched := rt.newScheduler()
	spec := rt.cfg.Backup.Cron
	if spec == "" {
		spec = backup.DefaultCron
	}
	if err := sched.Start(spec); err != nil {
		fatalStartup(rt.logger, err)
	}
	defer sched.Stop()

	rt.logger.Info("service started", "version", Version, "home", rt.cfg.HomeDir)
	<-ctx.Done()
	rt.logger.Info("shutdown signal received")
}

// runtime bundles the wired persistence stack for one command invocation.
type runtime struct {
	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
	otel      *otelPkg.Provider
	bus       *bus.Bus
	store     *store.Store
	flat      *flatstore.Store
	dump      *braindump.Manager
	matrix    *taskmatrix.Manager
	templates *templates.Manager
	porter    *portability.Porter
	migrator  *migrate.Migrator
	metrics   *otelPkg.Metrics
}

func openRuntime(ctx context.Context, quietLogs bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, quietLogs)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)
	logger.Info("startup", "version", Version, "config", cfg.Fingerprint())

	provider, err := otelPkg.Init(ctx, cfg.Otel)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	metrics, err := otelPkg.NewMetrics(provider.Meter)
	if err != nil {
		provider.Shutdown(ctx)
		closer.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	eventBus := bus.New()

	db, err := store.Open(cfg.DBPath, eventBus)
	if err != nil {
		provider.Shutdown(ctx)
		closer.Close()
		return nil, fmt.Errorf("open object store: %w", err)
	}

	flat, err := flatstore.Open(flatstore.DefaultConfig(cfg.FlatDir))
	if err != nil {
		db.Close()
		provider.Shutdown(ctx)
		closer.Close()
		return nil, fmt.Errorf("open flat store: %w", err)
	}

	dump := braindump.NewManager(flat)
	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		logCloser: closer,
		otel:      provider,
		bus:       eventBus,
		store:     db,
		flat:      flat,
		dump:      dump,
		matrix:    taskmatrix.NewManager(flat, logger),
		templates: templates.NewManager(db),
		porter:    portability.New(db, flat, dump, logger).WithTelemetry(provider.Tracer, metrics),
		migrator:  migrate.New(flat, db, logger).WithTelemetry(provider.Tracer, metrics),
		metrics:   metrics,
	}
	return rt, nil
}

func (rt *runtime) newInstantiator() *templates.Instantiator {
	return templates.NewInstantiator(rt.store, rt.matrix)
}

func (rt *runtime) newScheduler() *backup.Scheduler {
	return backup.NewScheduler(rt.store, rt.porter, rt.bus, rt.cfg.Backup.Keep, rt.logger).
		WithTelemetry(rt.metrics)
}

func (rt *runtime) Close(ctx context.Context) {
	if err := rt.flat.Close(); err != nil {
		rt.logger.Warn("flat store close failed", "error", err)
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("object store close failed", "error", err)
	}
	rt.otel.Shutdown(ctx)
	rt.logCloser.Close()
}

func fatalStartup(logger *slog.Logger, err error) {
	if logger != nil {
		logger.Error("startup failure", "error", err)
	} else {
		fmt.Fprintf(
			os.Stderr,
			`{"timestamp":"%s","level":"ERROR","component":"aurorae","msg":"startup failure","error":%q}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano),
			err.Error(),
		)
	}
	os.Exit(1)
}
