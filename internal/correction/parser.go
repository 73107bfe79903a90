package correction

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/common"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

// Parser turns a model's free-form validation response into a typed Report.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// envelope is the delimited structured segment the prompt mandates.
type envelope struct {
	ValidationStatus string   `json:"validation_status"`
	AccuracyEstimate *float64 `json:"accuracy_estimate"`
	CorrectionsMade  *bool    `json:"corrections_made"`
	ShiftPattern     string   `json:"shift_pattern,omitempty"`
	Corrections      []rawOp  `json:"corrections_applied"`
	Details          any      `json:"validation_details,omitempty"`
}

type rawOp struct {
	Field        string  `json:"field"`
	ChangeType   string  `json:"change_type"`
	BeforeValue  any     `json:"before_value"`
	AfterValue   any     `json:"after_value"`
	SourceColumn string  `json:"source_column,omitempty"`
	TargetColumn string  `json:"target_column,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Parse extracts the structured segment, validates every field path against
// the schema (unknown paths are dropped with a warning, not fatal) and
// coerces values to declared types. Per-op coercion failures skip that op
// only; a missing or undecodable segment fails the whole parse with
// ErrMalformedResponse.
func (p *Parser) Parse(raw string, s *schema.Schema) (Report, error) {
	segment, err := ExtractJSONSegment(raw)
	if err != nil {
		return Report{}, common.WrapError(common.ErrMalformedResponse, err.Error())
	}

	var env envelope
	if err := json.Unmarshal([]byte(segment), &env); err != nil {
		return Report{}, fmt.Errorf("decode validation envelope: %w", common.ErrMalformedResponse)
	}
	if env.ValidationStatus == "" || env.AccuracyEstimate == nil || env.CorrectionsMade == nil {
		return Report{}, fmt.Errorf("envelope missing required fields: %w", common.ErrMalformedResponse)
	}

	rep := Report{ShiftPatternHint: parseShiftHint(env.ShiftPattern)}

	// Numeric accuracy must lie in [0,1]; out-of-range values are clamped
	// and flagged.
	acc := *env.AccuracyEstimate
	switch {
	case acc < 0:
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("accuracy_estimate %.3f clamped to 0", acc))
		acc = 0
	case acc > 1:
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("accuracy_estimate %.3f clamped to 1", acc))
		acc = 1
	}
	rep.AccuracyEstimate = float32(acc)

	for _, ro := range env.Corrections {
		op, warn, ok := p.convertOp(ro, s)
		if warn != "" {
			rep.Warnings = append(rep.Warnings, warn)
			p.logger.Warn("correction.parse.op_dropped", "field", ro.Field, "reason", warn)
		}
		if ok {
			rep.Ops = append(rep.Ops, op)
		}
	}
	return rep, nil
}

func (p *Parser) convertOp(ro rawOp, s *schema.Schema) (Op, string, bool) {
	action := normalizeAction(ro.ChangeType)
	if !action.Valid() {
		return Op{}, fmt.Sprintf("unknown change_type %q on %q", ro.ChangeType, ro.Field), false
	}

	fieldPath := strings.TrimSpace(ro.Field)
	if action == constants.ActionValueMoved {
		if ro.SourceColumn == "" || ro.TargetColumn == "" {
			return Op{}, fmt.Sprintf("value_moved op on %q missing source/target column", ro.Field), false
		}
		if fieldPath == "" {
			fieldPath = ro.TargetColumn
		}
	}

	field, known := s.Lookup(fieldPath)
	if !known {
		return Op{}, fmt.Sprintf("unknown field path %q", fieldPath), false
	}
	if action == constants.ActionValueMoved {
		if _, ok := s.Lookup(ro.SourceColumn); !ok {
			return Op{}, fmt.Sprintf("value_moved op references unknown source column %q", ro.SourceColumn), false
		}
	}

	conf := float32(ro.Confidence)
	if conf <= 0 {
		conf = defaultModelConfidence
	}

	op := Op{
		FieldPath:  fieldPath,
		Action:     action,
		OldValue:   ro.BeforeValue,
		Confidence: conf,
		Source:     constants.SourceModel,
		Reason:     ro.Reason,
	}
	if action == constants.ActionValueMoved {
		op.SourceColumn = ro.SourceColumn
		op.TargetColumn = ro.TargetColumn
	}

	if action != constants.ActionValueDeleted {
		coerced, err := coerceValue(ro.AfterValue, field.Type)
		if err != nil {
			return Op{}, fmt.Sprintf("field %q: %v", fieldPath, err), false
		}
		op.NewValue = coerced
	}
	return op, "", true
}

// defaultModelConfidence applies when the model omits a per-op confidence.
const defaultModelConfidence = 0.75

// normalizeAction maps the change_type vocabulary (including the looser
// labels older prompts produced) onto the four canonical actions.
func normalizeAction(changeType string) constants.ChangeAction {
	switch strings.TrimSpace(strings.ToLower(changeType)) {
	case "value_replaced", "value_corrected", "column_shift_fix", "key_value_reassociation":
		return constants.ActionValueReplaced
	case "value_moved", "column_realigned", "column_realignment":
		return constants.ActionValueMoved
	case "value_inserted", "field_added", "row_added", "missing_table_extracted":
		return constants.ActionValueInserted
	case "value_deleted", "field_removed":
		return constants.ActionValueDeleted
	default:
		return constants.ChangeAction(changeType)
	}
}

func parseShiftHint(s string) constants.ShiftPattern {
	switch constants.ShiftPattern(strings.TrimSpace(s)) {
	case constants.ShiftSingleColumn, constants.ShiftMultipleColumn,
		constants.ShiftCascade, constants.ShiftPartialRow:
		return constants.ShiftPattern(strings.TrimSpace(s))
	default:
		return constants.ShiftNone
	}
}

// coerceValue converts a raw JSON value to the field's declared type.
// Currency and percent markers are preserved on strings; numbers tolerate
// "$1,250.00"-style formatting.
func coerceValue(v any, ft schema.FieldType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch ft {
	case schema.TypeNumber:
		if s, ok := v.(string); ok {
			cleaned := strings.TrimSpace(s)
			cleaned = strings.NewReplacer("$", "", ",", "", "%", "").Replace(cleaned)
			f, err := cast.ToFloat64E(cleaned)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not numeric", common.ErrTypeCoercion, s)
			}
			return f, nil
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrTypeCoercion, err)
		}
		return f, nil
	case schema.TypeBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrTypeCoercion, err)
		}
		return b, nil
	case schema.TypeString:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrTypeCoercion, err)
		}
		return s, nil
	default:
		// object / array-of-object targets take the value as-is; structure
		// is enforced by the applicator.
		return v, nil
	}
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// ExtractJSONSegment slices a model response between the first '{' and the
// last '}', then repairs the common failure modes: trailing commas, an
// unterminated string, and unclosed braces/brackets (closed in nesting
// order, so truncated responses stay decodable).
func ExtractJSONSegment(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndexByte(raw, '}')
	if end < start {
		// Truncated before any object closed; take the rest and close below.
		end = len(raw) - 1
	}
	segment := raw[start : end+1]
	segment = trailingCommaRe.ReplaceAllString(segment, "$1")

	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(segment); i++ {
		ch := segment[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == ch {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		segment += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		segment += string(stack[i])
	}
	return segment, nil
}
