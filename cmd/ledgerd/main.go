package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/altipay/ledgercore/internal/auditlog"
	"github.com/altipay/ledgercore/internal/export"
	"github.com/altipay/ledgercore/internal/httpapi"
	"github.com/altipay/ledgercore/internal/lock"
	"github.com/altipay/ledgercore/internal/override"
	"github.com/altipay/ledgercore/internal/period"
	"github.com/altipay/ledgercore/internal/recon"
	"github.com/altipay/ledgercore/internal/settlement"
	"github.com/altipay/ledgercore/internal/store/gormstore"
	"github.com/altipay/ledgercore/internal/store/pgreport"
	"github.com/altipay/ledgercore/pkg/ledger"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagAllowedOrigins   = "allowed-origins"
	flagMaxRetries       = "max-settlement-retries"
	configKeyDatabaseURL = "database_url"
	configKeyListenAddr  = "http_listen_addr"
	configKeyOrigins     = "allowed_origins"
	configKeyMaxRetries  = "max_settlement_retries"
	defaultDatabaseURL   = "sqlite:///tmp/ledgercore.db"
	defaultListenAddr    = ":8080"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins []string
	MaxRetries     int
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "Double-entry ledger and settlement server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "CORS allowed origins")
	cmd.Flags().Int(flagMaxRetries, settlement.DefaultMaxRetries, "settlement retry ceiling")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv(configKeyDatabaseURL, "DATABASE_URL"); err != nil {
		return err
	}
	if err := viper.BindEnv(configKeyListenAddr, "HTTP_LISTEN_ADDR"); err != nil {
		return err
	}
	if err := viper.BindEnv(configKeyOrigins, "ALLOWED_ORIGINS"); err != nil {
		return err
	}
	if err := viper.BindEnv(configKeyMaxRetries, "MAX_SETTLEMENT_RETRIES"); err != nil {
		return err
	}

	if err := viper.BindPFlag(configKeyDatabaseURL, cmd.Flags().Lookup(flagDatabaseURL)); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyListenAddr, cmd.Flags().Lookup(flagListenAddr)); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyOrigins, cmd.Flags().Lookup(flagAllowedOrigins)); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyMaxRetries, cmd.Flags().Lookup(flagMaxRetries)); err != nil {
		return err
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyOrigins)
	cfg.MaxRetries = viper.GetInt(configKeyMaxRetries)
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = settlement.DefaultMaxRetries
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	now := func() time.Time { return time.Now().UTC() }

	if err := gormstore.Migrate(gormDB); err != nil {
		return err
	}
	if err := gormstore.Seed(ctx, gormDB, now()); err != nil {
		return err
	}

	audit := ledger.MultiSink{
		auditlog.NewSink(logger),
		gormstore.NewAuditStore(gormDB, logger),
	}

	ledgerService, err := ledger.NewService(gormstore.New(gormDB), now, ledger.WithAuditSink(audit))
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}
	periodService, err := period.NewService(gormstore.NewPeriodStore(gormDB), now, audit)
	if err != nil {
		return fmt.Errorf("period service init: %w", err)
	}
	lockService, err := lock.NewService(gormstore.NewLockStore(gormDB), now, audit)
	if err != nil {
		return fmt.Errorf("lock service init: %w", err)
	}
	settlementService, err := settlement.NewService(gormstore.NewSettlementStore(gormDB), now, audit, settlement.WithMaxRetries(cfg.MaxRetries))
	if err != nil {
		return fmt.Errorf("settlement service init: %w", err)
	}
	overrideService, err := override.NewService(gormstore.NewOverrideStore(gormDB), now, audit)
	if err != nil {
		return fmt.Errorf("override service init: %w", err)
	}
	reconService, err := recon.NewService(gormstore.NewReconStore(gormDB), now, audit)
	if err != nil {
		return fmt.Errorf("recon service init: %w", err)
	}

	// Reports read through pgx on postgres and fall back to the ORM store
	// on sqlite.
	var exportSource export.Source = gormstore.NewExportStore(gormDB)
	if driver == "postgres" {
		pool, poolErr := pgxpool.New(ctx, cfg.DatabaseURL)
		if poolErr != nil {
			return fmt.Errorf("report pool init: %w", poolErr)
		}
		defer pool.Close()
		exportSource = pgreport.New(pool)
	}

	server, err := httpapi.NewServer(logger, httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
	}, httpapi.Services{
		Ledger:      ledgerService,
		Periods:     periodService,
		Locks:       lockService,
		Settlements: settlementService,
		Overrides:   overrideService,
		Recon:       reconService,
		Exporter:    export.New(exportSource),
	})
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}
	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{TranslateError: true}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "ledgercore.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Everything else is a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
