package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/platinummonkey/pluginsync/pkg/compatibility"
	"github.com/platinummonkey/pluginsync/pkg/dependencies"
)

func (a *app) newCheckCommand() *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Show which resolved plugins can run on a core version",
		Flags:       flag.NewFlagSet("check", flag.ContinueOnError),
		Run:         a.runCheck,
	}
	bindCheckFlags(cmd.Flags, false)
	return cmd
}

type checkFlags struct {
	catalogURL *string
	core       *string
	optional   *bool
}

func bindCheckFlags(fs *flag.FlagSet, optional bool) checkFlags {
	return checkFlags{
		catalogURL: fs.String("catalog", "", "Catalog URL (overrides configuration)"),
		core:       fs.String("core", "", "Core version (default: ask the host)"),
		optional:   fs.Bool("optional", optional, "Follow optional dependencies"),
	}
}

func (a *app) runCheck(args []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	opts := bindCheckFlags(flags, s.cfg.Plugins.IncludeOptional)
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

	if *opts.core == "" {
		v, err := s.host().CoreVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to get core version (use -core to set it): %w", err)
		}
		*opts.core = v
	}

	fetcher, err := s.fetcher(ctx)
	if err != nil {
		return err
	}
	cat, err := s.loadCatalog(ctx, fetcher, *opts.catalogURL)
	if err != nil {
		return err
	}

	resolved, err := dependencies.NewResolver(cat, s.log).Resolve(requests, *opts.optional)
	if err != nil {
		return err
	}
	partition, err := compatibility.NewFilter(cat, s.log).Partition(resolved, *opts.core)
	if err != nil {
		return err
	}

	a.printf("Core %s: %d installable, %d excluded\n", *opts.core, partition.Installable.Len(), len(partition.Excluded))
	a.printf("  installable: %s\n", strings.Join(partition.Installable.Sorted(), ", "))
	for _, e := range partition.Excluded {
		a.printf("  excluded: %s (requires core %s)\n", e.Name, e.RequiredCore)
	}
	return nil
}
