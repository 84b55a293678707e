package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/pluginsync/pkg/catalog"
	"github.com/platinummonkey/pluginsync/pkg/dependencies"
)

func (a *app) newResolveCommand() *Command {
	cmd := &Command{
		Name:        "resolve",
		Description: "Print the dependency closure of the requested plugins",
		Flags:       flag.NewFlagSet("resolve", flag.ContinueOnError),
		Run:         a.runResolve,
	}
	bindResolveFlags(cmd.Flags, false)
	return cmd
}

type resolveFlags struct {
	catalogURL *string
	optional   *bool
	lock       *string
	validate   *string
	why        *string
	graph      *bool
}

func bindResolveFlags(fs *flag.FlagSet, optional bool) resolveFlags {
	return resolveFlags{
		catalogURL: fs.String("catalog", "", "Catalog URL (overrides configuration)"),
		optional:   fs.Bool("optional", optional, "Follow optional dependencies"),
		lock:       fs.String("lock", "", "Write a YAML lockfile to this path (- for stdout)"),
		validate:   fs.String("validate", "", "Compare a lockfile against the current catalog"),
		why:        fs.String("why", "", "Explain why this plugin is resolved and what it pulls in"),
		graph:      fs.Bool("graph", false, "Print the dependency graph as Cytoscape.js JSON"),
	}
}

func (a *app) runResolve(args []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	flags := flag.NewFlagSet("resolve", flag.ContinueOnError)
	opts := bindResolveFlags(flags, s.cfg.Plugins.IncludeOptional)
	if err := flags.Parse(args); err != nil {
		return err
	}

	fetcher, err := s.fetcher(ctx)
	if err != nil {
		return err
	}
	cat, err := s.loadCatalog(ctx, fetcher, *opts.catalogURL)
	if err != nil {
		return err
	}
	resolver := dependencies.NewResolver(cat, s.log)

	if *opts.validate != "" {
		return a.validateLockfile(resolver, *opts.validate)
	}

	requests := flags.Args()
	if len(requests) == 0 {
		requests = s.cfg.Plugins.Requested
	}
	if len(requests) == 0 {
		return fmt.Errorf("no plugins requested")
	}

	if *opts.lock != "" {
		return a.writeLockfile(resolver, requests, *opts.optional, *opts.lock)
	}

	resolved, err := resolver.Resolve(requests, *opts.optional)
	if err != nil {
		return err
	}

	if *opts.why == "" && !*opts.graph {
		for _, name := range resolved.Sorted() {
			entry, _ := cat.Entry(name)
			a.printf("%s %s\n", name, entry.Version)
		}
		return nil
	}

	graph, err := resolver.Graph(resolved)
	if err != nil {
		return err
	}

	requested := dependencies.NewSet()
	for _, token := range requests {
		requested.Add(catalog.ParseRequest(token).Name)
	}

	if *opts.graph {
		data, err := json.MarshalIndent(graph.ToCytoscape(requested), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode graph: %w", err)
		}
		a.printf("%s\n", data)
		return nil
	}

	name := *opts.why
	if !resolved.Contains(name) {
		return fmt.Errorf("%s is not part of the resolved set", name)
	}
	a.printf("%s", explain(graph, requested, name))
	return nil
}

// explain describes why name is in the resolved set and what it brings along
func explain(graph *dependencies.DependencyGraph, requested dependencies.Set, name string) string {
	var b strings.Builder

	if node := graph.GetNode(name); node != nil {
		fmt.Fprintf(&b, "%s %s\n", name, node.Version)
	}
	if requested.Contains(name) {
		fmt.Fprintf(&b, "%s was requested\n", name)
	}
	if dependents := graph.GetDependents(name); len(dependents) > 0 {
		fmt.Fprintf(&b, "%s is required by: %s\n", name, strings.Join(dependents, ", "))
	}

	roots := make([]string, 0)
	for _, root := range graph.Roots() {
		if root == name {
			continue
		}
		for _, dep := range graph.GetTransitiveDependencies(root) {
			if dep == name {
				roots = append(roots, root)
				break
			}
		}
	}
	if len(roots) > 0 {
		fmt.Fprintf(&b, "%s is reached from: %s\n", name, strings.Join(roots, ", "))
	}

	direct := graph.GetDependencies(name)
	if len(direct) > 0 {
		deps := make([]string, 0, len(direct))
		for _, dep := range direct {
			if dep.Optional {
				deps = append(deps, dep.Name+" (optional)")
				continue
			}
			deps = append(deps, dep.Name)
		}
		fmt.Fprintf(&b, "%s depends on: %s\n", name, strings.Join(deps, ", "))
	}
	if transitive := graph.GetTransitiveDependencies(name); len(transitive) > len(direct) {
		fmt.Fprintf(&b, "%s pulls in: %s\n", name, strings.Join(transitive, ", "))
	}

	if cycle := graph.FindCycle(name); len(cycle) > 0 {
		fmt.Fprintf(&b, "dependency cycle: %s\n", strings.Join(cycle, " -> "))
	}
	return b.String()
}

func (a *app) writeLockfile(resolver *dependencies.Resolver, requests []string, optional bool, path string) error {
	lockfile, err := resolver.Lock(requests, optional)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(lockfile)
	if err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}

	if path == "-" {
		_, err = a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	a.printf("Wrote %d plugins to %s\n", len(lockfile.Plugins), path)
	return nil
}

func (a *app) validateLockfile(resolver *dependencies.Resolver, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read lockfile: %w", err)
	}
	var lockfile dependencies.Lockfile
	if err := yaml.Unmarshal(data, &lockfile); err != nil {
		return fmt.Errorf("failed to parse lockfile %s: %w", path, err)
	}

	ok, differences, err := resolver.ValidateLockfile(&lockfile)
	if err != nil {
		return err
	}
	if ok {
		a.printf("Lockfile %s is up to date\n", path)
		return nil
	}
	for _, d := range differences {
		a.printf("  %s\n", d)
	}
	return fmt.Errorf("lockfile %s is out of date (%d differences)", path, len(differences))
}
