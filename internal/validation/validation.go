// Package validation provides composable validator chains used by the
// entity layer before every mutating operation, in the style of the
// teacher's internal/validation/issue.go.
package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

// NoteValidator checks one aspect of a Note mutation.
type NoteValidator func(op string, n *types.Note) error

// ChainNote combines validators, stopping at the first error.
func ChainNote(validators ...NoteValidator) NoteValidator {
	return func(op string, n *types.Note) error {
		for _, v := range validators {
			if err := v(op, n); err != nil {
				return err
			}
		}
		return nil
	}
}

// ImportanceInRange rejects any importance outside {1,2,3}.
func ImportanceInRange(op string, n *types.Note) error {
	switch n.Importance {
	case types.ImportanceLow, types.ImportanceMedium, types.ImportanceHigh:
		return nil
	default:
		return synapseerr.Wrap(op, synapseerr.KindValidation,
			fmt.Errorf("importance must be 1, 2, or 3, got %d", n.Importance))
	}
}

// BodyNonEmpty rejects a note whose body is empty after trimming is the
// caller's responsibility; this only checks for the zero-length case a
// caller failed to trim.
func BodyNonEmpty(op string, n *types.Note) error {
	if n.Body == "" {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("body must not be empty"))
	}
	return nil
}

// RelationValidator checks one aspect of a Relation mutation.
type RelationValidator func(op string, r *types.Relation) error

func ChainRelation(validators ...RelationValidator) RelationValidator {
	return func(op string, r *types.Relation) error {
		for _, v := range validators {
			if err := v(op, r); err != nil {
				return err
			}
		}
		return nil
	}
}

// NoSelfRelation rejects from == to.
func NoSelfRelation(op string, r *types.Relation) error {
	if r.FromNoteID == r.ToNoteID {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("from_note_id and to_note_id must differ"))
	}
	return nil
}

// ValidRelationType rejects any relation_type outside the enum.
func ValidRelationType(op string, r *types.Relation) error {
	switch r.RelationType {
	case types.RelationRelated, types.RelationParentChild, types.RelationSimilar, types.RelationCustom:
		return nil
	default:
		return synapseerr.Wrap(op, synapseerr.KindValidation,
			fmt.Errorf("unrecognized relation_type %q", r.RelationType))
	}
}

var dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date validates the literal "YYYY-MM-DD" format with calendar
// correctness (time.Parse rejects 2025-02-30 outright).
func Date(op, date string) error {
	if !dateRE.MatchString(date) {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("date %q must match YYYY-MM-DD", date))
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("date %q is not a valid calendar date: %w", date, err))
	}
	if parsed.Format("2006-01-02") != date {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("date %q is not a valid calendar date", date))
	}
	return nil
}

// WeekKey validates the literal "YYYY-WW" format with WW in [1,53].
var weekKeyRE = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

func WeekKey(op, weekKey string) (year, week int, err error) {
	m := weekKeyRE.FindStringSubmatch(weekKey)
	if m == nil {
		return 0, 0, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("weekKey %q must match YYYY-WW", weekKey))
	}
	fmt.Sscanf(m[1], "%d", &year)
	fmt.Sscanf(m[2], "%d", &week)
	if week < 1 || week > 53 {
		return 0, 0, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("weekKey %q week component out of range [1,53]", weekKey))
	}
	return year, week, nil
}

// NonEmptyString is a small shared guard for required string fields
// like change_log entity_type/entity_id.
func NonEmptyString(op, field, value string) error {
	if value == "" {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("%s must not be empty", field))
	}
	return nil
}
