package cli

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/aretw0/stepbnb/pkg/domain"
)

// Policy picks a node from the action set. Nil declines to select.
type Policy func(set domain.ActionSet) *domain.NodeID

// Policies lists the names accepted by ParsePolicy.
var Policies = []string{"depth", "breadth", "random", "decline"}

// ParsePolicy returns the named built-in policy. seed only matters for "random".
func ParsePolicy(name string, seed uint64) (Policy, error) {
	switch name {
	case "depth":
		return DepthFirst, nil
	case "breadth":
		return BreadthFirst, nil
	case "random":
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		return func(set domain.ActionSet) *domain.NodeID {
			all := set.All()
			if len(all) == 0 {
				return nil
			}
			return &all[rng.IntN(len(all))]
		}, nil
	case "decline":
		return func(domain.ActionSet) *domain.NodeID { return nil }, nil
	}
	return nil, fmt.Errorf("unknown policy %q (want one of %v)", name, Policies)
}

// DepthFirst prefers the children of the last node, then its siblings.
func DepthFirst(set domain.ActionSet) *domain.NodeID {
	for _, group := range [][]domain.NodeID{set.Children, set.Siblings, set.Leaves} {
		if len(group) > 0 {
			id := group[0]
			return &id
		}
	}
	return nil
}

// BreadthFirst picks the oldest open node.
func BreadthFirst(set domain.ActionSet) *domain.NodeID {
	all := set.All()
	if len(all) == 0 {
		return nil
	}
	id := slices.Min(all)
	return &id
}
