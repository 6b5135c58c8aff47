package dag

import "weave/internal/shell"

// Clean unlinks every file output named by a file target in g, ignoring
// absent files. Source leaves and phony targets are left untouched, and
// the digest store is never touched here — purging it is a separate,
// explicit operation.
func Clean(g *Graph) error {
	var paths []string
	for _, name := range g.Order {
		n := g.Nodes[name]
		if n.Kind != KindFile {
			continue
		}
		paths = append(paths, n.File.Outputs...)
	}
	return shell.Rm(paths)
}
