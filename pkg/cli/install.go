package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/pluginsync/pkg/config"
	"github.com/platinummonkey/pluginsync/pkg/installer"
	"github.com/platinummonkey/pluginsync/pkg/storage"
)

func (a *app) newInstallCommand() *Command {
	return &Command{
		Name:        "install",
		Description: "Install requested plugins and their dependencies",
		Flags:       passFlagSet(installer.OperationInstall),
		Run: func(args []string) error {
			return a.runPass(installer.OperationInstall, args)
		},
	}
}

func (a *app) newUpdateCommand() *Command {
	return &Command{
		Name:        "update",
		Description: "Update requested plugins and their dependencies to the catalog version",
		Flags:       passFlagSet(installer.OperationUpdate),
		Run: func(args []string) error {
			return a.runPass(installer.OperationUpdate, args)
		},
	}
}

// passFlagSet declares the pass flags with built-in defaults for help output
func passFlagSet(op installer.Operation) *flag.FlagSet {
	fs := flag.NewFlagSet(string(op), flag.ContinueOnError)
	builtin := config.Default().Plugins
	bindPassFlags(fs, &builtin)
	return fs
}

// bindPassFlags binds the pass policies onto p, using its values as defaults.
// The returned pointer holds the catalog URL override.
func bindPassFlags(fs *flag.FlagSet, p *config.PluginsConfig) *string {
	catalogURL := fs.String("catalog", "", "Catalog URL (overrides configuration)")
	fs.StringVar(&p.Dir, "plugins-dir", p.Dir, "Plugins directory")
	fs.StringVar(&p.BackupDir, "backup-dir", p.BackupDir, "Backup directory (default <plugins-dir>.bak)")
	fs.BoolVar(&p.RemoveUnlisted, "remove-unlisted", p.RemoveUnlisted, "Delete artifacts of plugins that were not requested")
	fs.BoolVar(&p.ForceUpdate, "force", p.ForceUpdate, "Reinstall plugins already at the catalog version")
	fs.BoolVar(&p.IncludeOptional, "optional", p.IncludeOptional, "Follow optional dependencies")
	fs.BoolVar(&p.VersionedFilenames, "versioned", p.VersionedFilenames, "Write <name>-<version>.jpi artifacts")
	fs.BoolVar(&p.NoRestart, "no-restart", p.NoRestart, "Never restart the host")
	return catalogURL
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (a *app) runPass(op installer.Operation, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	flags := flag.NewFlagSet(string(op), flag.ContinueOnError)
	catalogURL := bindPassFlags(flags, &s.cfg.Plugins)
	if err := flags.Parse(args); err != nil {
		return err
	}

	requests := flags.Args()
	if len(requests) == 0 {
		requests = s.cfg.Plugins.Requested
	}
	if len(requests) == 0 {
		return fmt.Errorf("no plugins requested")
	}

	locker, closeLock, err := s.locker()
	if err != nil {
		return err
	}
	defer closeLock()
	if err := locker.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := locker.Release(context.Background()); err != nil {
			s.log.WithError(err).Warn("Failed to release pass lock")
		}
	}()

	fetcher, err := s.fetcher(ctx)
	if err != nil {
		return err
	}
	cat, err := s.loadCatalog(ctx, fetcher, *catalogURL)
	if err != nil {
		return err
	}

	hostClient := s.host()
	if err := hostClient.Wait(ctx); err != nil {
		return err
	}

	store, err := s.history()
	if err != nil {
		return err
	}
	var recorder installer.Recorder
	if store != nil {
		defer store.Close() //nolint:errcheck
		recorder = store
	}

	var tp trace.TracerProvider
	if s.tp != nil {
		tp = s.tp
	}

	inst, err := installer.New(installer.Config{
		Catalog:    cat,
		Host:       hostClient,
		Filesystem: storage.NewLocalFS(),
		Fetcher:    fetcher,
		Options: installer.Options{
			PluginsDir:         s.cfg.Plugins.Dir,
			BackupDir:          s.cfg.Plugins.BackupDir,
			Owner:              storage.Owner{User: s.cfg.Plugins.User, Group: s.cfg.Plugins.Group},
			RemoveUnlisted:     s.cfg.Plugins.RemoveUnlisted,
			ForceUpdate:        s.cfg.Plugins.ForceUpdate,
			IncludeOptional:    s.cfg.Plugins.IncludeOptional,
			VersionedFilenames: s.cfg.Plugins.VersionedFilenames,
			NoRestart:          s.cfg.Plugins.NoRestart,
		},
		Logger:         s.log,
		Metrics:        s.metrics,
		TracerProvider: tp,
		Recorder:       recorder,
	})
	if err != nil {
		return err
	}

	var report *installer.Report
	if op == installer.OperationUpdate {
		report, err = inst.Update(ctx, requests)
	} else {
		report, err = inst.Install(ctx, requests)
	}
	a.printReport(report)
	return err
}

func (a *app) printReport(r *installer.Report) {
	if r == nil {
		return
	}
	a.printf("Pass %s (%s): installed %d, skipped %d, failed %d, excluded %d\n",
		r.PassID, r.Operation, len(r.Installed), len(r.Skipped), len(r.Failed), len(r.Excluded))
	if len(r.Installed) > 0 {
		a.printf("  installed: %s\n", strings.Join(r.Installed, ", "))
	}
	for _, f := range r.Failed {
		a.printf("  failed: %s (%s): %v\n", f.Name, f.Reason, f.Err)
	}
	for _, e := range r.Excluded {
		a.printf("  excluded: %s (requires core %s, running %s)\n", e.Name, e.RequiredCore, r.CoreVersion)
	}
	if len(r.Unlisted) > 0 && len(r.Removed) == 0 {
		a.printf("  unlisted: %s\n", strings.Join(r.Unlisted, ", "))
	}
	if len(r.Removed) > 0 {
		a.printf("  removed: %s\n", strings.Join(r.Removed, ", "))
	}

	switch {
	case r.RolledBack:
		a.printf("  rolled back to the previous plugins directory\n")
	case r.Restarted:
		a.printf("  host restarted\n")
	case r.RestartRequired:
		a.printf("  restart required\n")
	}
}
