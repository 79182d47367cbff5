// Package order provides orderings over file entries. Callers use them to
// arrange file lists, e.g. to pick the oldest backups to remove; the tree
// engine itself never sorts.
package order

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"treekeeper/internal/filter"
	"treekeeper/internal/tree"
)

// Ordering compares two entries: negative when a sorts first, positive when b does
type Ordering interface {
	Compare(a, b tree.Entry) int
}

// OrderingFunc adapts a plain function to Ordering
type OrderingFunc func(a, b tree.Entry) int

func (f OrderingFunc) Compare(a, b tree.Entry) int {
	return f(a, b)
}

// ByModTime orders entries newest first
func ByModTime() Ordering {
	return OrderingFunc(func(a, b tree.Entry) int {
		return b.ModTime.Compare(a.ModTime)
	})
}

// Sequence orders entries by a decimal number embedded in the file name
type Sequence struct {
	Shift      int
	Length     int
	Decreasing bool
}

// BySequence orders by the number of length digits found at shift (see filter.NameField)
func BySequence(shift, length int, decreasing bool) *Sequence {
	return &Sequence{Shift: shift, Length: length, Decreasing: decreasing}
}

// Number extracts the sequence number from e's name
func (s *Sequence) Number(e tree.Entry) (int, error) {
	field, ok := filter.NameField(e.Name, s.Shift, s.Length)
	if !ok {
		return 0, fmt.Errorf("no sequence number at shift %d in %s", s.Shift, e.Path)
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("sequence number in %s: %w", e.Path, err)
	}
	return n, nil
}

func (s *Sequence) Compare(a, b tree.Entry) int {
	na, erra := s.Number(a)
	nb, errb := s.Number(b)
	return compareWithErrors(erra, errb, func() int {
		if s.Decreasing {
			return cmpInt(nb, na)
		}
		return cmpInt(na, nb)
	})
}

// Timestamp orders entries by a timestamp embedded in the file name
type Timestamp struct {
	Layout string
	Shift  int
	LIFO   bool
}

// ByTimestamp orders oldest first by the timestamp written with layout at
// shift; lifo reverses it to newest first. The field is as long as layout.
func ByTimestamp(layout string, shift int, lifo bool) *Timestamp {
	return &Timestamp{Layout: layout, Shift: shift, LIFO: lifo}
}

// Time parses the embedded timestamp from e's name
func (t *Timestamp) Time(e tree.Entry) (time.Time, error) {
	field, ok := filter.NameField(e.Name, t.Shift, len(t.Layout))
	if !ok {
		return time.Time{}, fmt.Errorf("no timestamp at shift %d in %s", t.Shift, e.Path)
	}
	ts, err := time.Parse(t.Layout, field)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp in %s: %w", e.Path, err)
	}
	return ts, nil
}

func (t *Timestamp) Compare(a, b tree.Entry) int {
	ta, erra := t.Time(a)
	tb, errb := t.Time(b)
	return compareWithErrors(erra, errb, func() int {
		if t.LIFO {
			return tb.Compare(ta)
		}
		return ta.Compare(tb)
	})
}

// Sort orders entries in place. The sort is stable so entries that compare
// equal keep their listing order.
func Sort(entries []tree.Entry, o Ordering) {
	sort.SliceStable(entries, func(i, j int) bool {
		return o.Compare(entries[i], entries[j]) < 0
	})
}

// compareWithErrors places entries whose key cannot be extracted after all
// others, whatever the direction of cmp, so a single stray file never breaks a sort.
func compareWithErrors(erra, errb error, cmp func() int) int {
	switch {
	case erra != nil && errb != nil:
		return 0
	case erra != nil:
		return 1
	case errb != nil:
		return -1
	}
	return cmp()
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
