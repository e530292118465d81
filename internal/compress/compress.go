package compress

// Compress encodes and decodes byte payloads. Implementations are used for
// the manifest cache entries and for archiving artifact folders before
// garbage collection.
type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}
