package dag

import (
	"os"
	"sort"

	"weave/internal/core"
)

// Kind classifies a resolved graph node.
type Kind int

const (
	KindFile Kind = iota
	KindPhony
	KindSource
)

// Node is one member of a resolved subgraph.
type Node struct {
	Name string
	Kind Kind

	File  *core.FileTarget  // set iff Kind == KindFile
	Phony *core.PhonyTarget // set iff Kind == KindPhony

	// Deps is the ordered list of dependency names, exactly as declared at
	// registration. Empty for source leaves.
	Deps []string
}

// Graph is the resolved subgraph reachable from a goal set: a topologically
// ordered node sequence plus, for each node, its concrete predecessor list
// (Deps, already present on Node).
type Graph struct {
	Nodes map[string]*Node
	// Order is a deterministic topological ordering (dependencies appear
	// before dependents).
	Order []string
	Goals []string
}

// Successors returns, for every node, the set of nodes that depend on it
// directly (the reverse of Deps), each list sorted by name. The executor
// does not use it; it builds its own successor map over its runtime units.
func (g *Graph) Successors() map[string][]string {
	out := make(map[string][]string, len(g.Nodes))
	for _, name := range g.Order {
		for _, d := range g.Nodes[name].Deps {
			out[d] = append(out[d], name)
		}
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// ApplyUseHashOverride sets the freshness policy to use for every file
// target in g whose UseHash was never explicitly set at registration,
// leaving targets with an explicit per-target override untouched. It is how
// the driver's --use_hash flag reaches the resolved graph after
// construction-time defaults have already been filled in. Each overridden
// node gets its own copy of the target, so the registry's entries are left
// unchanged.
func (g *Graph) ApplyUseHashOverride(use bool) {
	for _, n := range g.Nodes {
		if n.Kind != KindFile || n.File.UseHashExplicit {
			continue
		}
		v := use
		cp := *n.File
		cp.UseHash = &v
		n.File = &cp
	}
}

const colorWhite, colorGray, colorBlack = 0, 1, 2

// Resolve computes the reachable subgraph for the requested goal names. An
// empty goals slice resolves to the single default goal "all"; if "all" is
// not registered, resolution fails with *UnknownGoalError. A requested goal
// that is neither registered nor present on disk also fails with
// *UnknownGoalError.
//
// Resolution is depth-first with three-color marking: encountering an
// on-stack node signals a cycle, reported as *CycleError with the on-stack
// path. A dependency name that is not registered is treated as a source
// leaf when it exists on disk, and fails with *MissingInputError otherwise.
func Resolve(reg *core.Registry, goals []string) (*Graph, error) {
	if len(goals) == 0 {
		lr := reg.Lookup("all")
		if !lr.Found {
			return nil, &UnknownGoalError{Name: "all"}
		}
		goals = []string{"all"}
	}

	g := &Graph{Nodes: make(map[string]*Node), Goals: goals}
	color := make(map[string]int)
	stack := make([]string, 0, 8)

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case colorBlack:
			return nil
		case colorGray:
			path := append(append([]string(nil), stack...), name)
			return &CycleError{Path: path}
		}

		color[name] = colorGray
		stack = append(stack, name)
		defer func() {
			stack = stack[:len(stack)-1]
			color[name] = colorBlack
		}()

		lr := reg.Lookup(name)
		node := &Node{Name: name}
		switch {
		case lr.Found && lr.File != nil:
			node.Kind = KindFile
			node.File = lr.File
			node.Deps = lr.File.Inputs
		case lr.Found && lr.Phony != nil:
			node.Kind = KindPhony
			node.Phony = lr.Phony
			node.Deps = lr.Phony.Inputs
		default:
			if _, err := os.Stat(name); err != nil {
				return &MissingInputError{Name: name}
			}
			node.Kind = KindSource
		}

		for _, d := range node.Deps {
			if err := visit(d); err != nil {
				return err
			}
		}

		if _, already := g.Nodes[name]; !already {
			g.Nodes[name] = node
			g.Order = append(g.Order, name)
		}
		return nil
	}

	for _, goal := range goals {
		if !reg.Lookup(goal).Found {
			if _, err := os.Stat(goal); err != nil {
				return nil, &UnknownGoalError{Name: goal}
			}
		}
		if err := visit(goal); err != nil {
			return nil, err
		}
	}

	return g, nil
}
