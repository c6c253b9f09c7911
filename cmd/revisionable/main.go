// Command revisionable manages the revisions table and inspects recorded history.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/mickamy/revisionable"
	"github.com/mickamy/revisionable/internal/config"
	"github.com/mickamy/revisionable/migrations"
	"github.com/mickamy/revisionable/store/boltstore"
	"github.com/mickamy/revisionable/store/pgxstore"
	"github.com/mickamy/revisionable/store/sqlstore"
)

const usage = `usage: revisionable [-config dir] [-env file] <command> [flags]

commands:
  migrate   create or upgrade the revisions table (-down n rolls back)
  history   print revisions of a type (-type) or one entity (-type -id)
  purge     delete the revisions of one entity (-type -id [-key k]...)
`

func main() {
	os.Exit(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("revisionable", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	var configDir, envFile string
	flags.StringVar(&configDir, "config", ".", "directory containing revisionable.yaml")
	flags.StringVar(&envFile, "env", ".env", "dotenv file loaded before reading the environment")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	if err := loadEnv(envFile); err != nil {
		_, _ = fmt.Fprintf(stderr, "revisionable: %v\n", err)
		return 1
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "revisionable: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	switch cmd {
	case "migrate":
		err = runMigrate(ctx, cfg, logger, rest, stderr)
	case "history":
		err = runHistory(ctx, cfg, logger, rest, stdout, stderr)
	case "purge":
		err = runPurge(ctx, cfg, logger, rest, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "revisionable: unknown command %q\n", cmd)
		flags.Usage()
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var ue usageError
	if errors.As(err, &ue) {
		_, _ = fmt.Fprintf(stderr, "revisionable %s: %v\n", cmd, err)
		return 2
	}
	if err != nil {
		logger.Error("command failed", slog.String("command", cmd), slog.String("error", err.Error()))
		return 1
	}
	return 0
}

type usageError struct{ error }

func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func runMigrate(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	down := flags.Int("down", 0, "number of migrations to roll back (postgres only)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		if *down > 0 {
			return migrations.Down(cfg.DSN, *down, logger)
		}
		if err := migrations.Up(cfg.DSN, logger); err != nil {
			return err
		}
		v, dirty, err := migrations.Version(cfg.DSN)
		if err != nil {
			return err
		}
		logger.Info("schema migrated", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
		return nil
	case config.DriverSQLite:
		if *down > 0 {
			return usageError{errors.New("-down is only supported for postgres")}
		}
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer func(db *sql.DB) {
			_ = db.Close()
		}(db)
		if err := sqlstore.Migrate(ctx, db, sqlstore.SchemaConfig{
			Table:       cfg.Table,
			Dialect:     sqlstore.SQLite,
			CreateIndex: true,
		}); err != nil {
			return err
		}
		logger.Info("schema migrated", slog.String("table", cfg.Table))
		return nil
	default:
		logger.Info("driver needs no migration", slog.String("driver", cfg.Driver))
		return nil
	}
}

func runHistory(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	flags.SetOutput(stderr)
	entityType := flags.String("type", "", "revisionable type")
	entityID := flags.String("id", "", "revisionable id; all entities of the type when empty")
	limit := flags.Int("limit", 100, "maximum revisions for a type")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *entityType == "" {
		return usageError{errors.New("-type is required")}
	}

	rec, closeStore, err := openRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var revs []revisionable.Revision
	if *entityID != "" {
		revs, err = rec.History(ctx, ref{morphType: *entityType, id: *entityID})
	} else {
		revs, err = rec.ClassHistory(ctx, *entityType, *limit)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, rev := range revs {
		if err := enc.Encode(newRevisionView(rev)); err != nil {
			return fmt.Errorf("write revision: %w", err)
		}
	}
	return nil
}

func runPurge(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("purge", flag.ContinueOnError)
	flags.SetOutput(stderr)
	entityType := flags.String("type", "", "revisionable type")
	entityID := flags.String("id", "", "revisionable id")
	var keys stringList
	flags.Var(&keys, "key", "field to purge; repeatable, every field when omitted")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *entityType == "" || *entityID == "" {
		return usageError{errors.New("-type and -id are required")}
	}

	rec, closeStore, err := openRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := rec.DeleteRevisions(ctx, ref{morphType: *entityType, id: *entityID}, keys...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "deleted %d revisions\n", n)
	return err
}

func openRecorder(ctx context.Context, cfg config.Config, logger *slog.Logger) (*revisionable.Recorder, func(), error) {
	var (
		store     revisionable.Store
		closeFunc func()
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxstore.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		store, closeFunc = pgxstore.New(pool), pool.Close
	case config.DriverSQLite:
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		store = sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.SQLite})
		closeFunc = func() { _ = db.Close() }
	case config.DriverBolt:
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closeFunc = func() { _ = s.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
	rec := revisionable.New(revisionable.Config{
		Table:         cfg.Table,
		Store:         store,
		Logger:        logger,
		ContextColumn: cfg.ContextColumn,
	})
	return rec, closeFunc, nil
}

// ref addresses stored history by type and id without loading the entity.
type ref struct {
	morphType string
	id        string
}

func (r ref) MorphType() string { return r.morphType }
func (r ref) RevisionKey() any { return r.id }
func (r ref) Original() *revisionable.Snapshot { return nil }
func (r ref) Attributes() *revisionable.Snapshot { return nil }
func (r ref) Exists() bool { return true }

type revisionView struct {
	ID        int64           `json:"id"`
	Type      string          `json:"revisionable_type"`
	EntityID  string          `json:"revisionable_id"`
	UserType  *string         `json:"user_type"`
	UserID    *string         `json:"user_id"`
	Key       string          `json:"key"`
	OldValue  *string         `json:"old_value"`
	NewValue  *string         `json:"new_value"`
	IP        *string         `json:"ip"`
	Context   json.RawMessage `json:"context,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func newRevisionView(rev revisionable.Revision) revisionView {
	return revisionView{
		ID:        rev.ID,
		Type:      rev.RevisionableType,
		EntityID:  rev.RevisionableID,
		UserType:  rev.UserType,
		UserID:    rev.UserID,
		Key:       rev.Key,
		OldValue:  rev.OldValue,
		NewValue:  rev.NewValue,
		IP:        rev.IP,
		Context:   rev.Context.Raw(),
		CreatedAt: rev.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: rev.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
