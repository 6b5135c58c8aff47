package dag

import (
	"fmt"
	"io"
)

// PrintPlan writes the deterministic dry-run plan for g to w: for each
// non-source node in g.Order (dependencies before dependents), the primary
// output name on its own line, followed by each dependency indented by one
// tab, followed by a blank line. Source leaves get no block of their own;
// they only ever appear as an indented dependency line under the target
// that names them. A multi-output target gets a single block, under its
// primary output, even when it was reached through a secondary output.
func PrintPlan(w io.Writer, g *Graph) error {
	printed := make(map[string]struct{})
	for _, name := range g.Order {
		n := g.Nodes[name]
		if n.Kind == KindSource {
			continue
		}
		label := name
		if n.Kind == KindFile {
			label = n.File.Primary()
		}
		if _, done := printed[label]; done {
			continue
		}
		printed[label] = struct{}{}
		if _, err := fmt.Fprintf(w, "%s\n", label); err != nil {
			return err
		}
		for _, d := range n.Deps {
			if _, err := fmt.Fprintf(w, "\t%s\n", d); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
