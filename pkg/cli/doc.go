// Package cli implements the pluginsync command-line interface.
//
// # Overview
//
// Every command loads configuration through pkg/config, builds a logrus
// logger, a Prometheus registry (pushed to a Pushgateway when configured)
// and, when enabled, an OpenTelemetry tracer provider. Flags override the
// configuration for a single run.
//
// # Commands
//
// install: Install plugins and their dependencies, then handle unlisted artifacts
//
//	pluginsync install -remove-unlisted git ansicolor ant:1.10
//
// update: Bring plugins to the catalog version
//
//	pluginsync update git
//
// resolve: Print the dependency closure, a lockfile, or the dependency graph
//
//	pluginsync resolve git
//	pluginsync resolve -lock plugins.lock.yaml git
//	pluginsync resolve -validate plugins.lock.yaml
//	pluginsync resolve -why structs git
//	pluginsync resolve -graph git > graph.json
//
// check: Partition the closure by core compatibility
//
//	pluginsync check -core 2.150 git ansicolor
//
// verify: Check artifacts on disk
//
//	pluginsync verify -plugin git
//	pluginsync verify -file git.jpi -sha256 <base64 digest>
//
// history: List recent passes
//
//	pluginsync history -limit 10
//
// # Locking
//
// install and update take a Redis lock when PLUGINSYNC_REDIS_URL is set, so
// two runs never work on the same plugins directory at once.
package cli
