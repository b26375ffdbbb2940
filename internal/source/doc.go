// Package source fetches raw text from the configured harvest URLs and
// extracts candidate IPv4 addresses with a permissive dotted-quad
// pattern. Each source produces an independent Extraction; a failing
// source is reported, not fatal.
package source
