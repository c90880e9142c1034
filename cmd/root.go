package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	gocache "github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"

	"github.com/andr3so7/folio/broadcast"
	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/internal/cron"
	"github.com/andr3so7/folio/internal/database"
	"github.com/andr3so7/folio/internal/mailer"
	"github.com/andr3so7/folio/modules"
	"github.com/andr3so7/folio/router"
	"github.com/andr3so7/folio/system"
)

var rootCommand = &cobra.Command{
	Use:   "folio",
	Short: "Runs the backend API powering the portfolio frontend.",
	PreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
		initLogging()
	},
	Run: rootCmdRun,
}

func init() {
	rootCommand.AddCommand(newMigrateCommand(), newUserCommand(), newVersionCommand())
}

func Execute() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to execute command: %s\n", err)
		os.Exit(1)
	}
}

// initConfig reads the environment into the global configuration. Called
// from every subcommand's PreRun.
func initConfig() {
	c, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	config.Set(c)
}

// initLogging wires the apex handler for the current environment: a colored
// CLI handler during development, structured JSON in production.
func initLogging() {
	cfg := config.Get()

	if cfg.Environment == config.EnvProduction {
		log.SetHandler(json.New(os.Stdout))
	} else {
		log.SetHandler(cli.Default)
	}

	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.InfoLevel)
		log.WithField("value", cfg.LogLevel).Warn("unknown LOG_LEVEL, falling back to info")
	}
}

func rootCmdRun(*cobra.Command, []string) {
	cfg := config.Get()
	log.WithFields(log.Fields{
		"version":     system.Version,
		"environment": cfg.Environment,
	}).Info("starting folio api")

	if err := database.Initialize(cfg.Database.URI); err != nil {
		log.WithError(err).Fatal("failed to connect to the database")
	}

	store := modules.NewStore(database.Instance(), cfg.Database.QueryTimeout)
	cache := gocache.New(cfg.Cache.TTL, cfg.Cache.SweepInterval)
	hub := broadcast.NewHub()
	svc := modules.NewService(store, cache, hub)
	mail := mailer.New(cfg.Email)

	keepalive, err := cron.NewKeepAlive(store, cfg.KeepAlive)
	if err != nil {
		log.WithError(err).Fatal("failed to configure keep-alive jobs")
	}
	keepalive.Start()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Api.Host, cfg.Api.Port),
		Handler: router.Configure(svc, hub, keepalive, mail),
	}

	go func() {
		log.WithField("address", srv.Addr).Info("listening for http connections")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	if err := keepalive.Stop(); err != nil {
		log.WithError(err).Warn("failed to stop keep-alive jobs cleanly")
	}
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server did not shut down cleanly")
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the current version of this binary.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("folio %s (%s)\n", system.Version, system.Commit)
		},
	}
}
