package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/mwillard/beacon/internal/alert"
	"github.com/mwillard/beacon/internal/contacts"
	"github.com/mwillard/beacon/internal/db"
	"github.com/mwillard/beacon/internal/dispatch"
	"github.com/mwillard/beacon/internal/events"
	"github.com/mwillard/beacon/internal/location"
	"github.com/mwillard/beacon/internal/models"
	"github.com/mwillard/beacon/internal/sched"
	"github.com/mwillard/beacon/internal/server"
	"github.com/mwillard/beacon/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Beacon daemon",
		Long:  "Runs the emergency pipeline and its HTTP API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beacon.yaml", "path to Beacon config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedDefaults(gormDB); err != nil {
		return err
	}

	directory, err := contacts.New(gormDB)
	if err != nil {
		return err
	}
	audit, err := events.New(gormDB)
	if err != nil {
		return err
	}
	alertStore, err := store.NewGormStore(gormDB)
	if err != nil {
		return err
	}
	resolver, err := location.FromConfig(cfg)
	if err != nil {
		return err
	}

	orch, err := alert.New(alert.Opts{
		Config:     cfg,
		Resolver:   resolver,
		Dispatcher: dispatch.FromConfig(cfg),
		Directory:  directory,
		Store:      alertStore,
		Audit:      audit,
	})
	if err != nil {
		return err
	}

	orch.Subscribe(alert.Hooks{
		OnAlertConfirmed: func(a models.Alert) {
			log.Printf("beacon: alert %s confirmed (%s)", a.ID, a.TriggerKind)
		},
		OnMessagesSent: func(a models.Alert, deliveries []models.Delivery) {
			log.Printf("beacon: alert %s reached %d contacts", a.ID, len(deliveries))
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	// Warm the location cache before the first alert needs it.
	go resolver.Warm(ctx)
	go sched.New(cfg.Scheduler, resolver, audit).Run(ctx)

	if total, enabled, err := directory.Counts(); err == nil {
		fmt.Fprintf(out, "Contacts: %d total, %d enabled\n", total, enabled)
		if enabled == 0 {
			fmt.Fprintln(out, "WARNING: no enabled contacts; confirmed alerts will only be recorded locally")
		}
	}

	return server.Start(ctx, server.StartOpts{
		Orchestrator: orch,
		Directory:    directory,
		Audit:        audit,
		Port:         cfg.Server.Port,
		Out:          out,
	})
}
