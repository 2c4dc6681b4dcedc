package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/calcbot/core/config"
	coredatabase "github.com/m3rciful/calcbot/core/database"
	"github.com/m3rciful/calcbot/core/logger"
)

// Options select the infrastructure to start. The function fields default to
// the real logger and database and exist for tests.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

func (o Options) withDefaults() Options {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	return o
}

// Result holds what Run started. DB stays nil while the database is disabled.
type Result struct {
	DB *sqlx.DB
}

func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run starts logging and then, if the database is enabled, opens it and
// applies pending migrations. Nothing is left open on failure.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts = opts.withDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if !opts.Database.Enabled {
		logger.DB.Debug("database disabled", slog.String("event", "db.skip"))
		return &Result{}, nil
	}

	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if err := opts.Migrate(opts.Database); err != nil {
		return nil, errors.Join(
			fmt.Errorf("bootstrap: migrations failed: %w", err),
			db.Close(),
		)
	}
	return &Result{DB: db}, nil
}
