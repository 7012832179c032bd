// Package index keeps the persistent cache index: an ordered list of entries
// stored as a semicolon-delimited file inside the cache directory. The file is
// always read and rewritten in full; the original URL is the lookup key.
package index
