// Package clock supplies an injectable time source so tests can pin
// "now" instead of racing the wall clock.
package clock

import "time"

// Clock returns the current instant. The production implementation
// wraps time.Now; tests substitute Fixed or Sequence.
type Clock interface {
	Now() time.Time
}

// System is the production Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant. Useful for deterministic
// create/update round-trip tests.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// Sequence returns successive instants from a predetermined slice,
// repeating the final entry once exhausted. Useful for asserting that
// updated_at strictly increases across a sequence of calls.
type Sequence struct {
	Instants []time.Time
	i        int
}

func (s *Sequence) Now() time.Time {
	if len(s.Instants) == 0 {
		return time.Time{}
	}
	if s.i >= len(s.Instants) {
		return s.Instants[len(s.Instants)-1]
	}
	t := s.Instants[s.i]
	s.i++
	return t
}

// ISO8601Milli formats t as an ISO-8601 UTC string to millisecond
// precision, the wire/storage format used throughout the data model.
func ISO8601Milli(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseISO8601 parses the format produced by ISO8601Milli (and, with
// reduced precision, other common ISO-8601 UTC forms produced by a
// remote server).
func ParseISO8601(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339Nano,
		time.RFC3339,
	}
	var err error
	for _, layout := range layouts {
		var t time.Time
		t, err = time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
