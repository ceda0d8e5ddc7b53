// Package ruleset fetches, validates, and caches trigger rule sets.
//
// Rule sets arrive as JSON over the network or as JSON/YAML files on disk.
// Every copy is validated against the embedded CUE schema (#RuleSet in
// schema.cue) before it reaches the trigger engine: trigger kinds are an
// enum, click rules must carry a selector, event names must be non-empty.
//
// The fetcher reuses the persistence adapter as its cache with a 24-hour
// freshness window and conditional HTTP re-validation: the cached record's
// marker carries the server's Last-Modified value, sent back as
// If-Modified-Since. A 304 restarts the freshness window without
// re-downloading. Fetch failures fall back to the last cached copy, however
// stale; with no cache at all the engine runs disabled.
package ruleset
