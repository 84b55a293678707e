// Package catalog fetches and queries the remote plugin catalog.
//
// # Overview
//
// The catalog is published as a JSON document wrapped in a JavaScript callback:
//
//	updateCenter.post(
//	{"plugins": {"git": {"name": "git", "version": "4.11.0", ...}}}
//	);
//
// Client.Load fetches it, strips the envelope, and returns an immutable Catalog.
// A fetch either yields a whole catalog or an error; callers keep their previous
// catalog on failure.
//
// # Requests
//
// Plugins are requested as "name", "name:latest" or "name:version". The catalog
// only serves the latest published version of each plugin: asking for an older
// version returns the latest entry and logs a note, asking for a newer one fails
// with InvalidVersionError.
//
// # Fetchers
//
// HTTPFetcher: http and https URLs
// FileFetcher: file:// URLs for local mirrors
// S3Fetcher: s3://bucket/key URLs for mirrors kept in object storage
// Router: dispatches on the URL scheme
//
// # Usage Example
//
//	client := catalog.NewClient(catalog.Options{
//		Fetcher: catalog.NewRouter(catalog.NewHTTPFetcher(30 * time.Second)),
//		Logger:  logger,
//	})
//
//	cat, err := client.Load(ctx, catalog.DefaultURL)
//	if err != nil {
//		return err
//	}
//
//	entry, err := cat.Get("docker-workflow:1.20")
//
// # Related Packages
//
//   - pkg/dependencies: resolves the transitive closure over a Catalog
//   - pkg/compatibility: filters resolved plugins by core version
package catalog
