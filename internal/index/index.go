package index

// CanvasIndex defines the interface for canvas indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type CanvasIndex interface {
	UpsertCanvas(c CanvasRow, cards []CardRow, conns []ConnectionRow) error
	DeleteCanvas(id string) error
	GetChecksum(id string) (string, error)
	ListCanvases(limit, offset int, sort string) ([]CanvasRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Neighbors(canvasID, cardID string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies CanvasIndex at compile time.
var _ CanvasIndex = (*DB)(nil)
