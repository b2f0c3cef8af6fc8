package staff

import (
	"errors"
	"strings"
)

var (
	ErrUnknownRank    = errors.New("unknown rank")
	ErrSelfUpdate     = errors.New("cannot change your own rank")
	ErrTargetOutranks = errors.New("target rank is equal to or above yours")
	ErrRankTooHigh    = errors.New("requested rank is equal to or above yours")
	ErrSameRank       = errors.New("member already holds that rank")
)

type Direction int

const (
	Promotion Direction = iota + 1
	Demotion
)

func (d Direction) String() string {
	if d == Promotion {
		return "promotion"
	}
	return "demotion"
}

// Hierarchy is an ordered list of rank names, lowest first. The first rank
// is the baseline every member holds.
type Hierarchy struct {
	ranks []string
	index map[string]int
}

func NewHierarchy(ranks []string) Hierarchy {
	h := Hierarchy{ranks: append([]string(nil), ranks...), index: make(map[string]int, len(ranks))}
	for i, name := range ranks {
		h.index[strings.ToLower(name)] = i
	}
	return h
}

func (h Hierarchy) Baseline() string {
	if len(h.ranks) == 0 {
		return ""
	}
	return h.ranks[0]
}

func (h Hierarchy) Names() []string {
	return append([]string(nil), h.ranks...)
}

// Lookup returns the canonical rank name and its position, case-insensitively.
func (h Hierarchy) Lookup(name string) (string, int, bool) {
	i, ok := h.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", 0, false
	}
	return h.ranks[i], i, true
}

func (h Hierarchy) Contains(name string) bool {
	_, _, ok := h.Lookup(name)
	return ok
}

// Suggest returns up to limit rank names starting with prefix.
func (h Hierarchy) Suggest(prefix string, limit int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	var out []string
	for _, name := range h.ranks {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			out = append(out, name)
		}
	}
	return out
}

type Change struct {
	ActorID      string
	TargetID     string
	ActorRank    string
	TargetRank   string
	NewRank      string
	ActorIsOwner bool
}

// Decide applies the rank-change guards and reports whether the change is a
// promotion or a demotion. Empty ranks are treated as the baseline.
func (h Hierarchy) Decide(c Change) (Direction, error) {
	_, next, ok := h.Lookup(c.NewRank)
	if !ok {
		return 0, ErrUnknownRank
	}
	_, actor, ok := h.Lookup(h.orBaseline(c.ActorRank))
	if !ok {
		actor = 0
	}
	_, current, ok := h.Lookup(h.orBaseline(c.TargetRank))
	if !ok {
		current = 0
	}

	if c.ActorID == c.TargetID {
		return 0, ErrSelfUpdate
	}
	if current >= actor && !c.ActorIsOwner {
		return 0, ErrTargetOutranks
	}
	if next >= actor && !c.ActorIsOwner {
		return 0, ErrRankTooHigh
	}
	if next == current {
		return 0, ErrSameRank
	}
	if next > current {
		return Promotion, nil
	}
	return Demotion, nil
}

func (h Hierarchy) orBaseline(rank string) string {
	if rank == "" {
		return h.Baseline()
	}
	return rank
}

// RolePlan lists role names to remove and add so a member mirrors a rank.
type RolePlan struct {
	Remove []string
	Add    []string
}

func (p RolePlan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Add) == 0
}

// Plan computes the role changes for a member currently holding the given
// role names. The staff team role is dropped when the new rank is the baseline.
func (h Hierarchy) Plan(newRank string, current []string, staffTeamRole string) RolePlan {
	canonical, _, ok := h.Lookup(newRank)
	if !ok {
		return RolePlan{}
	}
	baseline := h.Baseline()
	held := make(map[string]struct{}, len(current))
	for _, name := range current {
		held[name] = struct{}{}
	}

	var plan RolePlan
	for _, name := range h.ranks {
		if name == baseline || name == canonical {
			continue
		}
		if _, ok := held[name]; ok {
			plan.Remove = append(plan.Remove, name)
		}
	}
	if canonical == baseline && staffTeamRole != "" {
		if _, ok := held[staffTeamRole]; ok {
			plan.Remove = append(plan.Remove, staffTeamRole)
		}
	}
	if _, ok := held[baseline]; !ok {
		plan.Add = append(plan.Add, baseline)
	}
	if canonical != baseline {
		if _, ok := held[canonical]; !ok {
			plan.Add = append(plan.Add, canonical)
		}
	}
	return plan
}
