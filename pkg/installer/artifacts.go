package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/dependencies"
	"github.com/platinummonkey/pluginsync/pkg/integrity"
)

// ArtifactExt is the extension of plugin artifacts on disk
const ArtifactExt = ".jpi"

const artifactPerm = 0o744

// ArtifactPath returns where entry is written
func (i *Installer) ArtifactPath(entry *catalog.Entry) string {
	name := entry.Name
	if i.opts.VersionedFilenames {
		name = entry.Name + "-" + entry.Version
	}
	return filepath.Join(i.opts.PluginsDir, name+ArtifactExt)
}

// installPlugin skips, installs or records a failure for one plugin. Only
// structural failures are returned.
func (i *Installer) installPlugin(ctx context.Context, name string, report *Report, log *logrus.Entry) error {
	entry, ok := i.catalog.Entry(name)
	if !ok {
		return &catalog.InvalidPluginError{Name: name}
	}

	ctx, span := i.tracer.Start(ctx, "Installer.plugin",
		trace.WithAttributes(
			attribute.String("plugin.name", entry.Name),
			attribute.String("plugin.version", entry.Version),
		),
	)
	defer span.End()

	plog := log.WithField("plugin", name)
	path := i.ArtifactPath(entry)

	current, installed, err := i.host.PluginVersion(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "installed version unavailable")
		return fmt.Errorf("query installed version of %s: %w", name, err)
	}

	exists, err := i.fs.Exists(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stat failed")
		return err
	}

	if installed && current == entry.Version && exists && !i.opts.ForceUpdate {
		plog.Infof("Plugin %s-%s already installed", name, current)
		report.Skipped = append(report.Skipped, name)
		span.SetAttributes(attribute.Bool("plugin.skipped", true))
		return nil
	}

	plog.Infof("Installing plugin %s-%s", name, entry.Version)

	data, err := i.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		plog.WithError(err).Errorf("Failed to download plugin %s", name)
		i.fail(report, span, PluginFailure{
			Name: name, Version: entry.Version, URL: entry.URL,
			Reason: ReasonDownload, Err: err,
		})
		return nil
	}

	if !integrity.Verify(data, entry.SHA256) {
		expected, _ := integrity.ExpectedHex(entry.SHA256)
		plog.WithFields(logrus.Fields{
			"found":    integrity.Sum(data),
			"expected": expected,
		}).Errorf("Checksum mismatch for plugin %s", name)
		i.fail(report, span, PluginFailure{
			Name: name, Version: entry.Version, URL: entry.URL,
			Reason: ReasonChecksum, Err: &ChecksumMismatchError{Name: name, URL: entry.URL},
		})
		return nil
	}

	if err := i.fs.WriteFile(path, data, artifactPerm, i.opts.Owner); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return err
	}

	report.Installed = append(report.Installed, name)
	span.SetAttributes(attribute.Int("plugin.size", len(data)))
	span.SetStatus(codes.Ok, "plugin installed")
	if i.metrics != nil {
		i.metrics.PluginsInstalledTotal.Inc()
	}
	return nil
}

func (i *Installer) fail(report *Report, span trace.Span, f PluginFailure) {
	report.Failed = append(report.Failed, f)
	span.RecordError(f.Err)
	span.SetStatus(codes.Error, f.Reason)
	if i.metrics != nil {
		i.metrics.PluginFailuresTotal.WithLabelValues(f.Reason).Inc()
	}
}

// Unlisted returns the artifacts on disk that no plugin in installable maps
// to. A stale artifact of an installable plugin, such as an older versioned
// file, is unlisted unless the plugin is in retained; retained plugins keep
// their old artifacts when the new one could not be written.
func (i *Installer) Unlisted(installable, retained dependencies.Set) ([]string, error) {
	existing, err := i.fs.Glob(filepath.Join(i.opts.PluginsDir, "*"+ArtifactExt))
	if err != nil {
		return nil, err
	}

	expected := make(map[string]bool, installable.Len())
	for name := range installable {
		if entry, ok := i.catalog.Entry(name); ok {
			expected[i.ArtifactPath(entry)] = true
		}
	}

	unlisted := make([]string, 0)
	for _, path := range existing {
		if expected[path] {
			continue
		}
		if owner, ok := artifactOwner(path, installable); ok && retained.Contains(owner) {
			continue
		}
		unlisted = append(unlisted, path)
	}
	sort.Strings(unlisted)
	return unlisted, nil
}

// artifactOwner maps an artifact file to the plugin in names it belongs to,
// accepting both name.jpi and name-version.jpi. The longest matching name
// wins, so git-client-1.0.jpi belongs to git-client rather than git.
func artifactOwner(path string, names dependencies.Set) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ArtifactExt)
	if names.Contains(base) {
		return base, true
	}

	owner := ""
	for idx := strings.IndexByte(base, '-'); idx > 0; {
		name, rest := base[:idx], base[idx+1:]
		if names.Contains(name) && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			owner = name
		}
		next := strings.IndexByte(base[idx+1:], '-')
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return owner, owner != ""
}

func (i *Installer) handleUnlisted(installable dependencies.Set, report *Report, log *logrus.Entry) error {
	failed := dependencies.NewSet()
	for _, f := range report.Failed {
		failed.Add(f.Name)
	}

	unlisted, err := i.Unlisted(installable, failed)
	if err != nil {
		return err
	}
	report.Unlisted = unlisted
	if i.metrics != nil {
		i.metrics.UnlistedArtifacts.Set(float64(len(unlisted)))
	}
	if len(unlisted) == 0 {
		return nil
	}

	if !i.opts.RemoveUnlisted {
		log.Infof("Unlisted plugins: (%s) Not removed. Enable remove-unlisted to clear them away.",
			strings.Join(unlisted, ", "))
		return nil
	}

	for _, path := range unlisted {
		log.WithField("path", path).Infof("Deleting unlisted plugin '%s'", path)
		if err := i.fs.Remove(path); err != nil {
			return err
		}
		report.Removed = append(report.Removed, path)
	}
	return nil
}
