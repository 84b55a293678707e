package installer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/platinummonkey/pluginsync/pkg/backup"
	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/compatibility"
	"github.com/platinummonkey/pluginsync/pkg/dependencies"
	"github.com/platinummonkey/pluginsync/pkg/history"
	"github.com/platinummonkey/pluginsync/pkg/storage"
)

func TestNew_Validation(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)

	_, err := New(Config{Host: f.host, Filesystem: f.fs, Fetcher: f.fetcher, Options: f.opts})
	assert.Error(t, err)

	_, err = New(Config{Catalog: f.cat, Host: f.host, Filesystem: f.fs, Fetcher: f.fetcher})
	assert.EqualError(t, err, "plugins directory is required")
}

func TestInstall_Fresh(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.PassID)
	assert.Equal(t, "2.190.1", report.CoreVersion)
	assert.Equal(t, []string{"ant", "structs"}, report.Resolved)
	assert.Equal(t, []string{"ant", "structs"}, report.Installed)
	assert.Empty(t, report.Failed)
	assert.True(t, report.RestartRequired)
	assert.True(t, report.Restarted)
	assert.Equal(t, 1, f.host.Restarts())

	data, err := os.ReadFile(f.path("ant.jpi"))
	require.NoError(t, err)
	assert.Equal(t, artifact("ant", "1.10"), data)

	info, err := os.Stat(f.path("structs.jpi"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o744), info.Mode().Perm())

	info, err = os.Stat(f.dir)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm())

	_, err = os.Stat(f.dir + ".bak")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "backup is discarded after a good pass")

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.PluginsInstalledTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PassesTotal.WithLabelValues("install", "success")))
}

func TestInstall_SkipsCurrentPlugins(t *testing.T) {
	f := newFixture(t, "2.190.1", map[string]string{"ant": "1.10", "structs": "1.20"})
	f.seed(t, map[string]string{"ant.jpi": "ant", "structs.jpi": "structs"})

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ant", "structs"}, report.Skipped)
	assert.Empty(t, report.Installed)
	assert.Empty(t, f.fetcher.Calls())
	assert.False(t, report.RestartRequired)
	assert.Equal(t, 0, f.host.Restarts())
}

func TestInstall_UpgradesOutdatedPlugin(t *testing.T) {
	f := newFixture(t, "2.190.1", map[string]string{"ant": "1.10", "structs": "1.18"})
	f.seed(t, map[string]string{"ant.jpi": "ant", "structs.jpi": "old structs"})

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ant"}, report.Skipped)
	assert.Equal(t, []string{"structs"}, report.Installed)

	data, err := os.ReadFile(f.path("structs.jpi"))
	require.NoError(t, err)
	assert.Equal(t, artifact("structs", "1.20"), data)
	assert.Equal(t, 1, f.host.Restarts())
}

func TestInstall_MissingFileIsReinstalled(t *testing.T) {
	f := newFixture(t, "2.190.1", map[string]string{"structs": "1.20"})

	report, err := f.installer(t).Install(context.Background(), []string{"structs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"structs"}, report.Installed)
}

func TestInstall_ForceUpdate(t *testing.T) {
	f := newFixture(t, "2.190.1", map[string]string{"ant": "1.10", "structs": "1.20"})
	f.seed(t, map[string]string{"ant.jpi": "ant", "structs.jpi": "structs"})
	f.opts.ForceUpdate = true

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	assert.Empty(t, report.Skipped)
	assert.Equal(t, []string{"ant", "structs"}, report.Installed)
}

func TestInstall_ChecksumMismatch(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.fetcher.data["http://mirror/structs.hpi"] = []byte("tampered")

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err, "checksum mismatches are reported, not returned")

	assert.Equal(t, []string{"ant"}, report.Installed)
	require.Len(t, report.Failed, 1)
	failure := report.Failed[0]
	assert.Equal(t, "structs", failure.Name)
	assert.Equal(t, ReasonChecksum, failure.Reason)

	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, failure.Err, &mismatch)
	assert.Equal(t, "http://mirror/structs.hpi", mismatch.URL)

	_, err = os.Stat(f.path("structs.jpi"))
	assert.True(t, errors.Is(err, fs.ErrNotExist), "a mismatching artifact never reaches disk")
	assert.False(t, report.RolledBack)

	var logged bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "Checksum mismatch for plugin structs" {
			logged = true
			assert.Contains(t, e.Data, "found")
			assert.Contains(t, e.Data, "expected")
		}
	}
	assert.True(t, logged)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PluginFailuresTotal.WithLabelValues(ReasonChecksum)))
}

func TestInstall_DownloadFailure(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.fetcher.errs["http://mirror/ant.hpi"] = errors.New("connection reset")

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "ant", report.Failed[0].Name)
	assert.Equal(t, ReasonDownload, report.Failed[0].Reason)
	assert.Equal(t, []string{"structs"}, report.Installed)
}

func TestInstall_ExcludesIncompatiblePlugins(t *testing.T) {
	f := newFixture(t, "2.150", nil)

	report, err := f.installer(t).Install(context.Background(), []string{"ansicolor", "ant"})
	require.NoError(t, err)

	assert.Equal(t, []compatibility.Exclusion{{Name: "ansicolor", RequiredCore: "2.190.1"}}, report.Excluded)
	assert.Equal(t, []string{"ant", "structs"}, report.Installed)
	assert.NotContains(t, f.fetcher.Calls(), "http://mirror/ansicolor.hpi")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PluginsExcluded))
}

func TestInstall_OptionalDependencies(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)

	report, err := f.installer(t).Install(context.Background(), []string{"git"})
	require.NoError(t, err)
	assert.Equal(t, []string{"git", "structs"}, report.Installed)

	f = newFixture(t, "2.190.1", nil)
	f.opts.IncludeOptional = true
	report, err = f.installer(t).Install(context.Background(), []string{"git"})
	require.NoError(t, err)
	assert.Equal(t, []string{"credentials", "git", "structs"}, report.Installed)
}

func TestInstall_UnlistedReportedNotRemoved(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.seed(t, map[string]string{"old.jpi": "old", "notes.txt": "keep"})

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	assert.Equal(t, []string{f.path("old.jpi")}, report.Unlisted)
	assert.Empty(t, report.Removed)

	_, err = os.Stat(f.path("old.jpi"))
	assert.NoError(t, err, "unlisted artifacts stay without the removal policy")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.UnlistedArtifacts))
}

func TestInstall_RemoveUnlisted(t *testing.T) {
	f := newFixture(t, "2.150", map[string]string{"structs": "1.20"})
	f.seed(t, map[string]string{"old.jpi": "old", "ansicolor.jpi": "excluded", "structs.jpi": "structs", "notes.txt": "keep"})
	f.opts.RemoveUnlisted = true

	report, err := f.installer(t).Install(context.Background(), []string{"structs", "ansicolor"})
	require.NoError(t, err)

	assert.Equal(t, []string{f.path("ansicolor.jpi"), f.path("old.jpi")}, report.Removed)
	assert.Equal(t, []string{"structs"}, report.Skipped)
	assert.True(t, report.Restarted, "removals change the plugin set")

	for _, name := range []string{"old.jpi", "ansicolor.jpi"} {
		_, err = os.Stat(f.path(name))
		assert.True(t, errors.Is(err, fs.ErrNotExist), name)
	}
	_, err = os.Stat(f.path("notes.txt"))
	assert.NoError(t, err)
}

func TestInstall_VersionedFilenames(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.seed(t, map[string]string{"structs-1.18.jpi": "old structs"})
	f.opts.VersionedFilenames = true

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	_, err = os.Stat(f.path("ant-1.10.jpi"))
	assert.NoError(t, err)
	_, err = os.Stat(f.path("structs-1.20.jpi"))
	assert.NoError(t, err)
	assert.Equal(t, []string{f.path("structs-1.18.jpi")}, report.Unlisted)
}

func TestInstall_VersionedFailedUpgradeKeepsOldArtifact(t *testing.T) {
	f := newFixture(t, "2.190.1", map[string]string{"structs": "1.18"})
	f.seed(t, map[string]string{"structs-1.18.jpi": "old structs", "git-client-3.0.jpi": "other"})
	f.opts.VersionedFilenames = true
	f.opts.RemoveUnlisted = true
	f.fetcher.data["http://mirror/structs.hpi"] = []byte("tampered")

	report, err := f.installer(t).Install(context.Background(), []string{"structs"})
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, ReasonChecksum, report.Failed[0].Reason)
	assert.Equal(t, []string{f.path("git-client-3.0.jpi")}, report.Removed)

	data, err := os.ReadFile(f.path("structs-1.18.jpi"))
	require.NoError(t, err)
	assert.Equal(t, "old structs", string(data))
	_, err = os.Stat(f.path("structs-1.20.jpi"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestArtifactOwner(t *testing.T) {
	names := dependencies.NewSet("git", "git-client", "structs")

	cases := map[string]string{
		"/p/git.jpi":              "git",
		"/p/git-4.0.jpi":          "git",
		"/p/git-client.jpi":       "git-client",
		"/p/git-client-3.0.jpi":   "git-client",
		"/p/structs-1.20-rc1.jpi": "structs",
	}
	for path, want := range cases {
		owner, ok := artifactOwner(path, names)
		assert.True(t, ok, path)
		assert.Equal(t, want, owner, path)
	}

	for _, path := range []string{"/p/old.jpi", "/p/git-extras.jpi", "/p/ant-1.10.jpi"} {
		_, ok := artifactOwner(path, names)
		assert.False(t, ok, path)
	}
}

func TestInstall_IOFailureRestoresDirectory(t *testing.T) {
	f := newFixture(t, "2.190.1", map[string]string{"ant": "1.9"})
	f.seed(t, map[string]string{"ant.jpi": "ant 1.9", "old.jpi": "old"})
	f.opts.RemoveUnlisted = true
	f.fs = &faultyFS{Filesystem: storage.NewLocalFS(), failWrite: "structs.jpi"}
	before := treeState(t, f.dir)

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.Error(t, err)

	var recErr *RecoveryError
	require.ErrorAs(t, err, &recErr)
	assert.True(t, recErr.Restored())
	assert.True(t, IsRecovered(err))

	var ioErr *storage.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)

	assert.Equal(t, before, treeState(t, f.dir), "the directory is back to its pre-pass state")
	_, statErr := os.Stat(f.dir + ".bak")
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))

	assert.True(t, report.RolledBack)
	assert.True(t, report.Restarted)
	assert.Equal(t, 1, f.host.Restarts())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RecoveriesTotal.WithLabelValues("restored")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PassesTotal.WithLabelValues("install", "recovered")))
}

func TestInstall_PanicRestoresDirectory(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.seed(t, map[string]string{"old.jpi": "old"})
	f.fetcher.panics["http://mirror/structs.hpi"] = true
	before := treeState(t, f.dir)

	_, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.Error(t, err)
	assert.True(t, IsRecovered(err))
	assert.Contains(t, err.Error(), "fetcher exploded")
	assert.Equal(t, before, treeState(t, f.dir))
}

func TestInstall_RestartFailureAfterRestore(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.seed(t, map[string]string{})
	f.fs = &faultyFS{Filesystem: storage.NewLocalFS(), failWrite: "ant.jpi"}
	f.host.RestartErr = errors.New("host down")

	_, err := f.installer(t).Install(context.Background(), []string{"ant"})

	var recErr *RecoveryError
	require.ErrorAs(t, err, &recErr)
	assert.True(t, recErr.Restored())
	assert.ErrorIs(t, err, f.host.RestartErr)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RecoveriesTotal.WithLabelValues("restart_failed")))
}

func TestInstall_ResolutionFailureTouchesNothing(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)

	report, err := f.installer(t).Install(context.Background(), []string{"ant", "no-such-plugin"})

	var invalid *catalog.InvalidPluginError
	require.ErrorAs(t, err, &invalid)
	assert.False(t, IsRecovered(err))
	assert.Empty(t, report.Installed)
	assert.Equal(t, 0, f.host.Restarts())

	_, statErr := os.Stat(f.dir)
	assert.True(t, errors.Is(statErr, fs.ErrNotExist), "nothing is created before planning succeeds")

	require.Len(t, f.recorder.passes, 1)
	assert.Equal(t, history.StatusFailed, f.recorder.passes[0].Status)
}

func TestInstall_VersionTooNew(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)

	_, err := f.installer(t).Install(context.Background(), []string{"ant:2.0"})
	var invalid *catalog.InvalidVersionError
	require.ErrorAs(t, err, &invalid)
}

func TestInstall_CoreVersionUnavailable(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.host.CoreErr = errors.New("connection refused")

	_, err := f.installer(t).Install(context.Background(), []string{"ant"})
	require.Error(t, err)
	assert.ErrorIs(t, err, f.host.CoreErr)
	assert.Empty(t, f.fetcher.Calls())
}

func TestInstall_BackupAlreadyExists(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.seed(t, nil)
	require.NoError(t, os.MkdirAll(f.dir+".bak", 0o755))

	report, err := f.installer(t).Install(context.Background(), []string{"ant"})
	assert.ErrorIs(t, err, backup.ErrBackupExists)
	assert.Empty(t, report.Installed)
	assert.Empty(t, f.fetcher.Calls())
	assert.Equal(t, 0, f.host.Restarts())
}

func TestInstall_NoRestartPolicy(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.opts.NoRestart = true

	report, err := f.installer(t).Install(context.Background(), []string{"structs"})
	require.NoError(t, err)
	assert.True(t, report.RestartRequired)
	assert.False(t, report.Restarted)
	assert.Equal(t, 0, f.host.Restarts())
}

func TestInstall_RestartFailure(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	f.host.RestartErr = errors.New("busy")

	report, err := f.installer(t).Install(context.Background(), []string{"structs"})
	assert.ErrorIs(t, err, f.host.RestartErr)
	assert.False(t, IsRecovered(err))
	assert.Equal(t, []string{"structs"}, report.Installed)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, "2.190.1", map[string]string{"ant": "1.9"})
	f.seed(t, map[string]string{"ant.jpi": "ant 1.9", "old.jpi": "old"})
	f.opts.RemoveUnlisted = true
	inst := f.installer(t)

	report, err := inst.Update(context.Background(), []string{"ant"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ant", "structs"}, report.Installed)
	assert.Nil(t, report.Unlisted, "update does not look for unlisted artifacts")
	assert.True(t, report.Restarted)

	_, err = os.Stat(f.path("old.jpi"))
	assert.NoError(t, err)

	f.host.SetPlugin("ant", "1.10")
	f.host.SetPlugin("structs", "1.20")

	report, err = inst.Update(context.Background(), []string{"ant"})
	require.NoError(t, err)
	assert.Empty(t, report.Installed)
	assert.False(t, report.RestartRequired)
	assert.Equal(t, 1, f.host.Restarts())
}

func TestInstall_RecordsHistory(t *testing.T) {
	f := newFixture(t, "2.150", nil)
	f.fetcher.data["http://mirror/structs.hpi"] = []byte("tampered")

	report, err := f.installer(t).Install(context.Background(), []string{"ant", "ansicolor"})
	require.NoError(t, err)

	require.Len(t, f.recorder.passes, 1)
	pass := f.recorder.passes[0]
	assert.Equal(t, report.PassID, pass.ID)
	assert.Equal(t, "install", pass.Operation)
	assert.Equal(t, history.StatusSuccess, pass.Status)
	assert.Equal(t, 1, pass.Installed)
	assert.Equal(t, 1, pass.Failed)
	assert.Equal(t, 1, pass.Excluded)
	assert.Equal(t, map[string]string{"structs": ReasonChecksum}, pass.Details.Failed)
	assert.Equal(t, map[string]string{"ansicolor": "2.190.1"}, pass.Details.Excluded)
	assert.True(t, pass.Restarted)
}

func TestInstall_Spans(t *testing.T) {
	f := newFixture(t, "2.190.1", nil)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	inst, err := New(Config{
		Catalog:        f.cat,
		Host:           f.host,
		Filesystem:     f.fs,
		Fetcher:        f.fetcher,
		Options:        f.opts,
		Logger:         f.log,
		TracerProvider: tp,
	})
	require.NoError(t, err)

	_, err = inst.Install(context.Background(), []string{"ant"})
	require.NoError(t, err)

	names := make(map[string]int)
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}
	assert.Equal(t, 1, names["Installer.install"])
	assert.Equal(t, 1, names["Installer.plan"])
	assert.Equal(t, 2, names["Installer.plugin"])
}
