// Package resolver is the single entry point extractors use to obtain a wiki
// page: it consults the cache index, optionally revalidates against the wiki
// with a conditional GET, keeps the index and blob store in step, and always
// returns the content read back from the blob store.
package resolver
