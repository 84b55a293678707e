// Package storage provides the filesystem capability used to materialize plugins.
//
// # Overview
//
// Filesystem abstracts the disk operations of an install pass: directory
// creation with ownership and permissions, artifact writes and removal, and the
// recursive copy/remove needed for snapshots. LocalFS implements it on the
// local disk; tests wrap it to inject failures.
//
// Every LocalFS failure is an *IOError carrying the operation and path. The
// underlying error stays reachable with errors.Is:
//
//	exists, err := fsys.Exists(path)
//	if err != nil {
//		var ioErr *storage.IOError
//		if errors.As(err, &ioErr) {
//			log.Errorf("%s failed on %s", ioErr.Op, ioErr.Path)
//		}
//	}
//
// # Ownership
//
// Owner names a user and group. They are resolved with os/user and applied
// with chown after each MkdirAll and WriteFile. A zero Owner leaves ownership
// alone, which is what tests and non-root runs use.
//
// # Usage Example
//
//	fsys := storage.NewLocalFS()
//	owner := storage.Owner{User: "jenkins", Group: "jenkins"}
//
//	if err := fsys.MkdirAll("/var/lib/jenkins/plugins", 0o755, owner); err != nil {
//		return err
//	}
//	if err := fsys.WriteFile("/var/lib/jenkins/plugins/git.jpi", data, 0o744, owner); err != nil {
//		return err
//	}
package storage
