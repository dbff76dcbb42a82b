package libraryfs

import "hash/fnv"

// inoFromString derives a stable inode number from a path-like key so the
// same logical entry gets the same inode across lookups. Grounded on
// internal/vodfs/ino.go's inoFromString.
func inoFromString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
