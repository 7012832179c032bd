// Package cache owns the flat on-disk blob store that holds downloaded wiki
// pages. Blobs live directly inside the cache directory, next to the index
// file, and are addressed by a filename derived from the page URL. Writes go
// through a temp file + rename so a crash never leaves a half-written page
// behind; reads surface ErrNotFound so callers can treat a missing blob as an
// index/store desync instead of an empty page.
package cache
