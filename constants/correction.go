package constants

// ChangeAction classifies an atomic correction operation.
type ChangeAction string

const (
	ActionValueReplaced ChangeAction = "value_replaced"
	ActionValueMoved    ChangeAction = "value_moved" // carries source and target columns
	ActionValueInserted ChangeAction = "value_inserted"
	ActionValueDeleted  ChangeAction = "value_deleted"
)

// Valid reports whether a is one of the recognized actions.
func (a ChangeAction) Valid() bool {
	switch a {
	case ActionValueReplaced, ActionValueMoved, ActionValueInserted, ActionValueDeleted:
		return true
	}
	return false
}

// OpSource records which component proposed a correction. Heuristic ops win
// confidence ties because they are deterministic and reproducible.
type OpSource string

const (
	SourceModel     OpSource = "model"
	SourceHeuristic OpSource = "heuristic"
)
