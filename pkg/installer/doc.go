// Package installer drives install and update passes over the plugin directory.
//
// # Overview
//
// A pass runs in two phases.
//
// Planning resolves the requested plugins to their dependency closure, asks the
// host for its core version and drops plugins that need a newer core. Any error
// here (unknown plugin, version newer than the catalog, host unreachable) ends
// the pass before the disk is touched.
//
// Mutation snapshots the plugin directory, then for every installable plugin
// either skips it (already at the catalog version) or downloads, verifies and
// writes it. A failed download or a checksum mismatch is recorded for that
// plugin and the pass goes on. Any other error, a filesystem failure or a
// panic, restores the snapshot, restarts the host and is returned as a
// *RecoveryError.
//
// Install also looks for unlisted artifacts, files on disk that no
// installable plugin maps to. They are deleted when RemoveUnlisted is set and
// only reported otherwise. Update leaves them alone.
//
// The host is restarted when the pass changed the plugin directory.
//
// # Usage Example
//
//	inst, err := installer.New(installer.Config{
//		Catalog:    cat,
//		Host:       hostClient,
//		Filesystem: storage.NewLocalFS(),
//		Fetcher:    fetcher,
//		Options: installer.Options{
//			PluginsDir:     "/var/lib/jenkins/plugins",
//			Owner:          storage.Owner{User: "jenkins", Group: "jenkins"},
//			RemoveUnlisted: true,
//		},
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//
//	report, err := inst.Install(ctx, []string{"git", "docker-workflow:1.20"})
//
// # Related Packages
//
//   - pkg/dependencies: closure computation
//   - pkg/compatibility: core version filter
//   - pkg/integrity: checksum verification
//   - pkg/backup: snapshot and restore
//   - pkg/history: pass records
package installer
