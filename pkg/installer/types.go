package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/pluginsync/pkg/compatibility"
	"github.com/platinummonkey/pluginsync/pkg/history"
	"github.com/platinummonkey/pluginsync/pkg/storage"
)

// Operation is the kind of pass
type Operation string

const (
	OperationInstall Operation = "install"
	OperationUpdate  Operation = "update"
)

// Failure reasons for a single plugin
const (
	ReasonDownload = "download"
	ReasonChecksum = "checksum"
)

// Options are the per-deployment policies of a pass
type Options struct {
	PluginsDir string
	// BackupDir defaults to "<PluginsDir>.bak"
	BackupDir string
	Owner     storage.Owner

	// RemoveUnlisted deletes artifacts no installable plugin maps to
	RemoveUnlisted bool
	// ForceUpdate reinstalls plugins already at the catalog version
	ForceUpdate bool
	// IncludeOptional follows optional dependencies
	IncludeOptional bool
	// VersionedFilenames writes <name>-<version>.jpi instead of <name>.jpi
	VersionedFilenames bool
	// NoRestart reports a needed restart without performing it
	NoRestart bool
}

// Validate checks the options
func (o Options) Validate() error {
	if o.PluginsDir == "" {
		return fmt.Errorf("plugins directory is required")
	}
	return nil
}

// Recorder stores finished passes
type Recorder interface {
	Record(ctx context.Context, p history.Pass) error
}

// ChecksumMismatchError means a downloaded artifact did not match the catalog digest
type ChecksumMismatchError struct {
	Name string
	URL  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for plugin %s downloaded from %s", e.Name, e.URL)
}

// RecoveryError is returned when a pass failed after the snapshot and the
// plugin directory was restored
type RecoveryError struct {
	Cause      error
	RestoreErr error
	RestartErr error
}

func (e *RecoveryError) Error() string {
	var b strings.Builder
	b.WriteString("plugin pass failed: ")
	b.WriteString(e.Cause.Error())
	if e.RestoreErr != nil {
		b.WriteString("; restore failed: ")
		b.WriteString(e.RestoreErr.Error())
	} else {
		b.WriteString("; plugins directory restored")
	}
	if e.RestartErr != nil {
		b.WriteString("; restart failed: ")
		b.WriteString(e.RestartErr.Error())
	}
	return b.String()
}

func (e *RecoveryError) Unwrap() []error {
	errs := []error{e.Cause}
	if e.RestoreErr != nil {
		errs = append(errs, e.RestoreErr)
	}
	if e.RestartErr != nil {
		errs = append(errs, e.RestartErr)
	}
	return errs
}

// Restored reports whether the directory is back at its pre-pass state
func (e *RecoveryError) Restored() bool {
	return e.RestoreErr == nil
}

// PluginFailure is a plugin that could not be installed in an otherwise
// successful pass
type PluginFailure struct {
	Name    string
	Version string
	URL     string
	Reason  string
	Err     error
}

// Report describes what a pass did
type Report struct {
	PassID      string
	Operation   Operation
	StartedAt   time.Time
	Duration    time.Duration
	CoreVersion string

	Resolved  []string
	Installed []string
	Skipped   []string
	Failed    []PluginFailure
	Excluded  []compatibility.Exclusion
	// Unlisted and Removed hold artifact paths
	Unlisted []string
	Removed  []string

	RestartRequired bool
	Restarted       bool
	RolledBack      bool
}

func newReport(op Operation) *Report {
	return &Report{
		PassID:    uuid.NewString(),
		Operation: op,
		StartedAt: time.Now(),
	}
}

// Changed reports whether the pass wrote or removed artifacts
func (r *Report) Changed() bool {
	return len(r.Installed) > 0 || len(r.Removed) > 0
}

// Pass converts the report to a history record
func (r *Report) Pass(err error) history.Pass {
	status := history.StatusSuccess
	var recErr *RecoveryError
	switch {
	case errors.As(err, &recErr):
		status = history.StatusRecovered
	case err != nil:
		status = history.StatusFailed
	}

	p := history.Pass{
		ID:        r.PassID,
		Operation: string(r.Operation),
		Status:    status,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Installed: len(r.Installed),
		Skipped:   len(r.Skipped),
		Failed:    len(r.Failed),
		Excluded:  len(r.Excluded),
		Unlisted:  len(r.Unlisted),
		Removed:   len(r.Removed),
		Restarted: r.Restarted,
		Details: history.Details{
			Installed: r.Installed,
			Skipped:   r.Skipped,
			Unlisted:  r.Unlisted,
			Removed:   r.Removed,
		},
	}
	if err != nil {
		p.Error = err.Error()
	}

	if len(r.Failed) > 0 {
		p.Details.Failed = make(map[string]string, len(r.Failed))
		for _, f := range r.Failed {
			p.Details.Failed[f.Name] = f.Reason
		}
	}
	if len(r.Excluded) > 0 {
		p.Details.Excluded = make(map[string]string, len(r.Excluded))
		for _, e := range r.Excluded {
			p.Details.Excluded[e.Name] = e.RequiredCore
		}
	}
	return p
}
