package batch

import (
	"github.com/backmassage/framevault/internal/errors"
)

// Renumber sets every Sequence from list order.
func Renumber(items []*MediaFile) {
	for i, m := range items {
		m.Sequence = i + 1
	}
}

// Move moves the item at index from to index to and renumbers.
func Move(items []*MediaFile, from, to int) ([]*MediaFile, error) {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return items, errors.NewValidationError("move", "index out of range").WithValue([2]int{from, to})
	}
	m := items[from]
	out := append(items[:from:from], items[from+1:]...)
	out = append(out[:to], append([]*MediaFile{m}, out[to:]...)...)
	Renumber(out)
	return out, nil
}

// Find returns the item with sequence seq.
func Find(items []*MediaFile, seq int) (*MediaFile, error) {
	for _, m := range items {
		if m.Sequence == seq {
			return m, nil
		}
	}
	return nil, errors.NewValidationError("sequence", "no item with this sequence").WithValue(seq)
}

// SetEnabled toggles whether the item with sequence seq is processed.
func SetEnabled(items []*MediaFile, seq int, enabled bool) error {
	m, err := Find(items, seq)
	if err != nil {
		return err
	}
	m.Enabled = enabled
	return nil
}

// AssignTemplate sets the template of the item with sequence seq. known
// reports whether a template id exists.
func AssignTemplate(items []*MediaFile, seq int, id string, known func(string) bool) error {
	if known != nil && !known(id) {
		return errors.NewValidationError("template", "unknown template").WithValue(id)
	}
	m, err := Find(items, seq)
	if err != nil {
		return err
	}
	m.Template = id
	return nil
}

// Enabled returns the enabled items in list order.
func Enabled(items []*MediaFile) []*MediaFile {
	var out []*MediaFile
	for _, m := range items {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}
