// Command hissync runs the HIS replication engine: a long-lived daemon by
// default, plus one-shot operator subcommands for managing auto-sync
// configurations, following the teacher's cmd/appserver shape (flag-based
// subcommands, explicit store/application wiring, signal-based graceful
// shutdown with a 10s deadline).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/his-sync/replicator/internal/app"
	"github.com/his-sync/replicator/internal/config"
	"github.com/his-sync/replicator/internal/domain/autosync"
	"github.com/his-sync/replicator/internal/domain/instance"
)

const shutdownDeadline = 10 * time.Second

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	top := flag.NewFlagSet("hissync", flag.ContinueOnError)
	configPath := top.String("config", "", "path to a YAML configuration file overlaying the environment")
	if err := top.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}

	remaining := top.Args()
	if len(remaining) == 0 {
		return serve(ctx, application)
	}

	switch remaining[0] {
	case "serve":
		return serve(ctx, application)
	case "start-auto-sync":
		return startAutoSync(ctx, application, remaining[1:])
	case "stop-auto-sync":
		return stopAutoSync(ctx, application, remaining[1:])
	case "setup-auto-sync":
		return setupAutoSync(ctx, application, remaining[1:])
	case "cleanup-instance-urls":
		return cleanupInstanceURLs(ctx, application)
	case "test-sync-system":
		return testSyncSystem(ctx, application, remaining[1:])
	default:
		return fmt.Errorf("unknown command %q (want one of: serve, start-auto-sync, stop-auto-sync, setup-auto-sync, cleanup-instance-urls, test-sync-system)", remaining[0])
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// serve starts every registered background service and blocks until
// SIGINT/SIGTERM, then shuts down within shutdownDeadline.
func serve(ctx context.Context, application *app.Application) error {
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	log.Println("hissync: running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("hissync: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	return application.Stop(shutdownCtx)
}

func startAutoSync(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("start-auto-sync", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configID, err := requireConfigID(fs)
	if err != nil {
		return err
	}
	if err := application.Scheduler.Start(ctx, configID); err != nil {
		return err
	}
	fmt.Printf("monitor task started for configuration %s\n", configID)
	return nil
}

func stopAutoSync(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("stop-auto-sync", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configID, err := requireConfigID(fs)
	if err != nil {
		return err
	}
	if err := application.Scheduler.Stop(configID); err != nil {
		return err
	}
	fmt.Printf("monitor task stopped for configuration %s\n", configID)
	return nil
}

// setupAutoSync creates or replaces a configuration's auto-sync settings
// and, when the configuration is active and in automatic/scheduled
// execution mode, starts its monitor task.
func setupAutoSync(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("setup-auto-sync", flag.ContinueOnError)
	interval := fs.Duration("interval", 60*time.Second, "check interval (minimum 60s)")
	delay := fs.Duration("delay", 0, "delay before the first sync")
	maxPerHour := fs.Int("max-per-hour", 0, "max syncs per hour (0 = unlimited)")
	cooldown := fs.Duration("cooldown-after-error", 10*time.Minute, "cooldown duration armed after a failed sync")
	monitorMetadata := fs.Bool("monitor-metadata", true, "watch metadata resources for changes")
	monitorData := fs.Bool("monitor-data", true, "watch data resources for changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	configID, err := requireConfigID(fs)
	if err != nil {
		return err
	}

	settings := autosync.Settings{
		ConfigurationID:    configID,
		IsEnabled:          true,
		CheckInterval:      *interval,
		DelayBeforeSync:    *delay,
		MonitorMetadata:    *monitorMetadata,
		MonitorData:        *monitorData,
		MaxSyncsPerHour:    *maxPerHour,
		CooldownAfterError: *cooldown,
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid auto-sync settings: %w", err)
	}
	if _, err := application.AutoSync.UpsertAutoSync(ctx, settings); err != nil {
		return fmt.Errorf("save auto-sync settings: %w", err)
	}

	if err := application.Scheduler.Start(ctx, configID); err != nil {
		fmt.Printf("auto-sync settings saved, but monitor task did not start: %v\n", err)
		return nil
	}
	fmt.Printf("auto-sync configured and monitor task started for configuration %s\n", configID)
	return nil
}

// cleanupInstanceURLs re-canonicalizes every Instance's base URL, fixing
// any that predate instance.NormalizeBaseURL's current separator rule.
func cleanupInstanceURLs(ctx context.Context, application *app.Application) error {
	instances, err := application.Instances.ListInstances(ctx)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}

	var fixed int
	for _, inst := range instances {
		normalized := instance.NormalizeBaseURL(inst.BaseURL)
		if normalized == inst.BaseURL {
			continue
		}
		inst.BaseURL = normalized
		if _, err := application.Instances.UpdateInstance(ctx, inst); err != nil {
			return fmt.Errorf("update instance %s: %w", inst.ID, err)
		}
		fixed++
	}
	fmt.Printf("normalized %d of %d instance base URLs\n", fixed, len(instances))
	return nil
}

// testSyncSystem runs one full sync for a configuration synchronously,
// printing the resulting job outcome, so operators can smoke-test a new
// configuration before enabling auto-sync.
func testSyncSystem(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("test-sync-system", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configID, err := requireConfigID(fs)
	if err != nil {
		return err
	}

	if err := application.Orchestrator.RunFull(ctx, configID); err != nil {
		return fmt.Errorf("test sync failed: %w", err)
	}
	fmt.Printf("test sync completed for configuration %s\n", configID)
	return nil
}

func requireConfigID(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one configuration id argument, got %d", fs.NArg())
	}
	return fs.Arg(0), nil
}
