package constants

// ShiftPattern classifies how table column values are misaligned relative to
// their declared schema position.
type ShiftPattern string

const (
	ShiftNone           ShiftPattern = "none"
	ShiftSingleColumn   ShiftPattern = "single_column_shift"   // one column off, uniform offset
	ShiftMultipleColumn ShiftPattern = "multiple_column_shift" // non-uniform offsets within a row
	ShiftCascade        ShiftPattern = "cascade_shift"         // one error propagates through subsequent columns/rows
	ShiftPartialRow     ShiftPattern = "partial_row_shift"     // only some rows in the table affected
)

// Complexity grades how hard a detected misalignment is to repair.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)
