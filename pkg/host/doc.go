// Package host talks to the application the plugins are installed into.
//
// # Overview
//
// Client is the narrow capability the installer needs from the host: the
// installed version of a plugin, the running core version, and a restart.
// HTTPClient implements it against the host's JSON API:
//
//	GET  /api/json                         core version in the X-Jenkins header
//	GET  /pluginManager/api/json?depth=1   installed plugins (shortName, version)
//	POST /safeRestart                      restart once running builds finish
//
// Requests authenticate with HTTP basic auth using a user name and API token.
//
// # Waiting for the host
//
// A freshly (re)started host refuses connections for a while. Wait polls
// /api/json with exponential backoff, 7 attempts from a 5s base delay by
// default, which covers a little over two minutes of start-up.
//
// # Testing
//
// Package hosttest provides an in-memory Fake and an HTTP Server that serves
// the same API from a Fake.
package host
