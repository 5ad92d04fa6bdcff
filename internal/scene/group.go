package scene

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/media"
)

// Group is an ordered set of two or more scenes exported as one clip.
type Group struct {
	Scenes []int `json:"scenes"`
}

// NewGroup validates numbers against scenes and returns the group. The
// order given is the order of the concatenated clip.
func NewGroup(numbers []int, scenes []Scene) (Group, error) {
	if len(numbers) < 2 {
		return Group{}, errors.NewValidationError("group", "a group needs at least two scenes").WithValue(numbers)
	}
	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > len(scenes) {
			return Group{}, errors.NewValidationError("group", "unknown scene number").WithValue(n)
		}
		if seen[n] {
			return Group{}, errors.NewValidationError("group", "scene listed twice").WithValue(n)
		}
		seen[n] = true
	}
	return Group{Scenes: append([]int(nil), numbers...)}, nil
}

// Segments returns the encoder segments of the group in clip order.
func (g Group) Segments(scenes []Scene) []media.Segment {
	segs := make([]media.Segment, 0, len(g.Scenes))
	for _, n := range g.Scenes {
		segs = append(segs, scenes[n-1].Segment())
	}
	return segs
}

// Duration is the summed length of the member scenes.
func (g Group) Duration(scenes []Scene) float64 {
	var d float64
	for _, n := range g.Scenes {
		d += scenes[n-1].Duration
	}
	return d
}

func (g Group) String() string {
	parts := make([]string, len(g.Scenes))
	for i, n := range g.Scenes {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "+")
}

// Selection is what the user picked at the selection stage.
type Selection struct {
	Individual []int   `json:"selected_scenes"`
	Groups     []Group `json:"grouped_scenes"`
}

// Empty reports whether nothing was picked.
func (s Selection) Empty() bool {
	return len(s.Individual) == 0 && len(s.Groups) == 0
}

// ClipCount is the number of clips the selection produces.
func (s Selection) ClipCount() int {
	return len(s.Individual) + len(s.Groups)
}

// Validate checks every number against scenes and that each scene is
// used at most once: either on its own or inside a single group.
func (s Selection) Validate(scenes []Scene) error {
	owner := make(map[int]string)
	claim := func(n int, by string) error {
		if n < 1 || n > len(scenes) {
			return errors.NewValidationError("selection", "unknown scene number").WithValue(n)
		}
		if prev, ok := owner[n]; ok {
			return errors.NewValidationError("selection",
				fmt.Sprintf("scene %d is used by %s and %s", n, prev, by)).WithValue(n)
		}
		owner[n] = by
		return nil
	}

	for _, n := range s.Individual {
		if err := claim(n, "the individual selection"); err != nil {
			return err
		}
	}
	for i, g := range s.Groups {
		if len(g.Scenes) < 2 {
			return errors.NewValidationError("group", "a group needs at least two scenes").WithValue(g.Scenes)
		}
		for _, n := range g.Scenes {
			if err := claim(n, fmt.Sprintf("group %d", i+1)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Normalize sorts the individual picks. Group order is kept since it is
// the clip order.
func (s Selection) Normalize() Selection {
	out := Selection{
		Individual: append([]int(nil), s.Individual...),
		Groups:     append([]Group(nil), s.Groups...),
	}
	sort.Ints(out.Individual)
	return out
}

// MarshalSelection encodes s for storage in a session.
func MarshalSelection(s Selection) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSelection is the inverse of MarshalSelection.
func UnmarshalSelection(data []byte) (Selection, error) {
	var s Selection
	if err := json.Unmarshal(data, &s); err != nil {
		return Selection{}, fmt.Errorf("decode selection: %w", err)
	}
	return s, nil
}

// ParseGroup parses "2+3" style group notation.
func ParseGroup(s string) ([]int, error) {
	var nums []int
	for _, p := range strings.Split(s, "+") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.NewValidationError("group", "expected scene numbers joined by '+'").WithValue(s)
		}
		nums = append(nums, n)
	}
	return nums, nil
}
