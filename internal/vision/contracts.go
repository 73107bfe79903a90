package vision

import (
	"context"

	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

// Request carries everything one validation call needs. The page image is
// referenced by AssetRef only; bytes were uploaded once before round 1 and
// are never resent.
type Request struct {
	AssetRef   string
	Record     record.Record
	Schema     *schema.Schema
	RoundIndex int

	// Strict requests a machine-parseable re-answer after a malformed
	// response. The prompt drops all prose allowances.
	Strict bool

	// History holds prior rounds' applied corrections so the model does not
	// re-propose or revert them.
	History []HistoryEntry
}

// HistoryEntry is one prior round's applied corrections.
type HistoryEntry struct {
	Round int
	Ops   []correction.Op
}

// Model is the vision collaborator: given a page image reference and the
// current record, it returns the raw response text for the parser.
type Model interface {
	ValidateAndCorrect(ctx context.Context, req Request) (string, error)
}

// AssetStore uploads page images ahead of the validation loop and releases
// them afterward. Upload returns the stable reference rounds reuse.
type AssetStore interface {
	Upload(ctx context.Context, image []byte, name string) (string, error)
	Release(ctx context.Context, ref string) error
}
