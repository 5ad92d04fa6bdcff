package selector

import (
	"context"
	"strconv"
	"strings"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/pipeline"
	"github.com/backmassage/framevault/internal/scene"
)

// Static answers the selection stage from pre-set numbers, for scripted
// runs. With nothing set it falls back to the saved selection, and with
// neither it cancels so that the session pauses until a selection is
// given on resume.
type Static struct {
	Individual []int
	Groups     [][]int
}

// ParseStatic builds a Static from "--select 1,4" and "--group 2+3" values.
func ParseStatic(selected []string, groups []string) (Static, error) {
	var s Static
	for _, v := range selected {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return Static{}, errors.NewValidationError("select", "expected comma-separated scene numbers").WithValue(v)
			}
			s.Individual = append(s.Individual, n)
		}
	}
	for _, g := range groups {
		nums, err := scene.ParseGroup(g)
		if err != nil {
			return Static{}, err
		}
		s.Groups = append(s.Groups, nums)
	}
	return s, nil
}

// Empty reports whether no numbers were given.
func (s Static) Empty() bool {
	return len(s.Individual) == 0 && len(s.Groups) == 0
}

func (s Static) Select(_ context.Context, req pipeline.SelectionRequest) (scene.Selection, error) {
	if s.Empty() {
		if req.Previous != nil && !req.Previous.Empty() {
			return *req.Previous, nil
		}
		return scene.Selection{}, errors.ErrCancelled
	}
	sel := scene.Selection{Individual: append([]int(nil), s.Individual...)}
	for _, nums := range s.Groups {
		g, err := scene.NewGroup(nums, req.Scenes)
		if err != nil {
			return scene.Selection{}, err
		}
		sel.Groups = append(sel.Groups, g)
	}
	return sel, nil
}
