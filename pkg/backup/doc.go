// Package backup snapshots the plugin directory around a mutating pass.
//
// Snapshot copies the whole directory tree to a sibling location, Discard
// drops the copy after a good pass, and Restore puts the copy back after a
// failed one. At most one snapshot exists at a time: finding one already on
// disk means an earlier recovery never finished, and Snapshot refuses with
// ErrBackupExists instead of overwriting it.
//
//	mgr := backup.NewManager(fsys, pluginsDir, "", logger)
//	handle, err := mgr.Snapshot()
//	if err != nil {
//		return err
//	}
//	if err := mutate(); err != nil {
//		return mgr.Restore(handle)
//	}
//	return mgr.Discard(handle)
package backup
