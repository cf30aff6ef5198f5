package chunk

// NeedsSplit reports whether a file of size bytes exceeds maxBytes. A file
// exactly at the threshold is transcribed whole.
func NeedsSplit(size, maxBytes int64) bool {
	return size > maxBytes
}
