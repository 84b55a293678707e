package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/pluginsync/pkg/backup"
	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/compatibility"
	"github.com/platinummonkey/pluginsync/pkg/dependencies"
	"github.com/platinummonkey/pluginsync/pkg/host"
	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/storage"
)

// Config wires an Installer
type Config struct {
	Catalog    *catalog.Catalog
	Host       host.Client
	Filesystem storage.Filesystem
	// Fetcher downloads artifacts
	Fetcher catalog.Fetcher
	Options Options

	Logger         *logrus.Logger
	Metrics        *observability.Metrics
	TracerProvider trace.TracerProvider
	Recorder       Recorder
}

// Installer runs install and update passes. It assumes exclusive ownership of
// the plugin directory while a pass runs.
type Installer struct {
	catalog  *catalog.Catalog
	host     host.Client
	fs       storage.Filesystem
	fetcher  catalog.Fetcher
	backup   *backup.Manager
	opts     Options
	log      *logrus.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	recorder Recorder
}

// New creates an installer
func New(cfg Config) (*Installer, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Host == nil {
		return nil, fmt.Errorf("host client is required")
	}
	if cfg.Filesystem == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	log := observability.OrDefault(cfg.Logger)

	return &Installer{
		catalog:  cfg.Catalog,
		host:     cfg.Host,
		fs:       cfg.Filesystem,
		fetcher:  cfg.Fetcher,
		backup:   backup.NewManager(cfg.Filesystem, cfg.Options.PluginsDir, cfg.Options.BackupDir, log),
		opts:     cfg.Options,
		log:      log,
		metrics:  cfg.Metrics,
		tracer:   tp.Tracer("pluginsync/installer"),
		recorder: cfg.Recorder,
	}, nil
}

// Install makes the requested plugins and their dependencies present, then
// handles unlisted artifacts. The returned report is never nil.
func (i *Installer) Install(ctx context.Context, requests []string) (*Report, error) {
	return i.run(ctx, OperationInstall, requests)
}

// Update brings the requested plugins and their dependencies to the catalog
// version. Unlisted artifacts are neither reported nor removed, and the host
// restarts only when something was installed.
func (i *Installer) Update(ctx context.Context, requests []string) (*Report, error) {
	return i.run(ctx, OperationUpdate, requests)
}

func (i *Installer) run(ctx context.Context, op Operation, requests []string) (report *Report, err error) {
	report = newReport(op)
	log := i.log.WithFields(logrus.Fields{
		"pass_id":   report.PassID,
		"operation": op,
	})

	ctx, span := i.tracer.Start(ctx, "Installer."+string(op),
		trace.WithAttributes(
			attribute.String("pass.id", report.PassID),
			attribute.Int("pass.requests", len(requests)),
		),
	)
	defer span.End()
	defer func() {
		i.finish(ctx, span, log, report, err)
	}()

	log.Infof("Starting plugins %s pass", op)

	partition, err := i.plan(ctx, requests, report)
	if err != nil {
		return report, err
	}

	handle, err := i.mutate(ctx, op, partition, report, log)
	if err != nil {
		return report, err
	}

	discardErr := i.backup.Discard(handle)
	if discardErr != nil {
		log.WithError(discardErr).Error("Failed to discard backup")
	}

	report.RestartRequired = report.Changed()
	if op == OperationUpdate {
		report.RestartRequired = len(report.Installed) > 0
	}

	switch {
	case !report.RestartRequired:
		log.Info("No plugins changed, restart not needed")
	case i.opts.NoRestart:
		log.Warn("Plugins changed, restart skipped by policy")
	default:
		if err := i.host.Restart(ctx); err != nil {
			return report, fmt.Errorf("restart host: %w", err)
		}
		report.Restarted = true
	}

	if discardErr != nil {
		return report, fmt.Errorf("pass succeeded but the backup could not be removed: %w", discardErr)
	}
	return report, nil
}

// plan resolves and partitions the requests. Nothing on disk changes here.
func (i *Installer) plan(ctx context.Context, requests []string, report *Report) (compatibility.Partition, error) {
	ctx, span := i.tracer.Start(ctx, "Installer.plan")
	defer span.End()

	resolved, err := dependencies.NewResolver(i.catalog, i.log).Resolve(requests, i.opts.IncludeOptional)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return compatibility.Partition{}, fmt.Errorf("resolve plugins: %w", err)
	}
	report.Resolved = resolved.Sorted()

	core, err := i.host.CoreVersion(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "core version unavailable")
		return compatibility.Partition{}, fmt.Errorf("query core version: %w", err)
	}
	report.CoreVersion = core

	partition, err := compatibility.NewFilter(i.catalog, i.log).Partition(resolved, core)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "partition failed")
		return compatibility.Partition{}, err
	}
	report.Excluded = partition.Excluded

	span.SetAttributes(
		attribute.String("core.version", core),
		attribute.Int("plugins.resolved", resolved.Len()),
		attribute.Int("plugins.excluded", len(partition.Excluded)),
	)
	if i.metrics != nil {
		i.metrics.PluginsExcluded.Set(float64(len(partition.Excluded)))
	}
	return partition, nil
}

// mutate applies the partition to disk under a snapshot and returns the
// snapshot of a good pass for the caller to discard
func (i *Installer) mutate(ctx context.Context, op Operation, partition compatibility.Partition, report *Report, log *logrus.Entry) (*backup.Handle, error) {
	if err := i.fs.MkdirAll(i.opts.PluginsDir, 0o755, i.opts.Owner); err != nil {
		return nil, err
	}

	handle, err := i.backup.Snapshot()
	if err != nil {
		return nil, err
	}

	if err := i.apply(ctx, op, partition, report, log); err != nil {
		return nil, i.rollback(ctx, handle, err, report, log)
	}
	return handle, nil
}

func (i *Installer) apply(ctx context.Context, op Operation, partition compatibility.Partition, report *Report, log *logrus.Entry) (err error) {
	defer observability.RecoverToError(i.log, "plugins "+string(op), &err)

	names := partition.Installable.Sorted()
	log.Infof("Installing plugins (%d)", len(names))

	for _, name := range names {
		if err := i.installPlugin(ctx, name, report, log); err != nil {
			return err
		}
	}

	if op == OperationInstall {
		if err := i.handleUnlisted(partition.Installable, report, log); err != nil {
			return err
		}
	}
	return nil
}

// rollback restores the snapshot and restarts the host on the restored state
func (i *Installer) rollback(ctx context.Context, handle *backup.Handle, cause error, report *Report, log *logrus.Entry) error {
	ctx, span := i.tracer.Start(ctx, "Installer.rollback")
	defer span.End()

	log.WithError(cause).Error("Plugin pass failed, restoring plugins directory from backup")
	recErr := &RecoveryError{Cause: cause}

	outcome := "restored"
	if err := i.backup.Restore(handle); err != nil {
		recErr.RestoreErr = err
		outcome = "restore_failed"
		log.WithError(err).Error("Failed to restore plugins directory")
	} else {
		report.RolledBack = true
		report.RestartRequired = true
		if err := i.host.Restart(ctx); err != nil {
			recErr.RestartErr = err
			outcome = "restart_failed"
			log.WithError(err).Error("Failed to restart host after restore")
		} else {
			report.Restarted = true
		}
	}

	span.RecordError(recErr)
	span.SetStatus(codes.Error, outcome)
	if i.metrics != nil {
		i.metrics.RecoveriesTotal.WithLabelValues(outcome).Inc()
	}
	return recErr
}

func (i *Installer) finish(ctx context.Context, span trace.Span, log *logrus.Entry, report *Report, err error) {
	report.Duration = time.Since(report.StartedAt)
	pass := report.Pass(err)

	if i.metrics != nil {
		i.metrics.PassesTotal.WithLabelValues(string(report.Operation), string(pass.Status)).Inc()
		i.metrics.PassDuration.WithLabelValues(string(report.Operation)).Observe(report.Duration.Seconds())
	}

	span.SetAttributes(
		attribute.String("pass.status", string(pass.Status)),
		attribute.Int("plugins.installed", len(report.Installed)),
		attribute.Int("plugins.failed", len(report.Failed)),
	)

	fields := logrus.Fields{
		"installed": len(report.Installed),
		"skipped":   len(report.Skipped),
		"failed":    len(report.Failed),
		"excluded":  len(report.Excluded),
		"unlisted":  len(report.Unlisted),
		"removed":   len(report.Removed),
		"duration":  report.Duration,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(pass.Status))
		log.WithFields(fields).WithError(err).Errorf("Plugins %s pass failed", report.Operation)
	} else {
		span.SetStatus(codes.Ok, "pass completed")
		log.WithFields(fields).Infof("Plugins %s pass completed", report.Operation)
	}

	if i.recorder != nil {
		// the pass context may already be cancelled
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if rerr := i.recorder.Record(recordCtx, pass); rerr != nil {
			log.WithError(rerr).Warn("Failed to record pass history")
		}
	}
}

// IsRecovered reports whether err came from a pass that was rolled back
func IsRecovered(err error) bool {
	var recErr *RecoveryError
	return errors.As(err, &recErr) && recErr.Restored()
}
