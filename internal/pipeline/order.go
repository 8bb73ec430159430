package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"iljit/internal/image"
)

// graph is the import graph over loaded images. edges[from] lists the
// images that import from.
type graph struct {
	names []string
	index map[string]int
	edges [][]int
	indeg []int
}

func buildGraph(imgs []*image.Image) (*graph, error) {
	g := &graph{index: make(map[string]int, len(imgs))}
	for i, img := range imgs {
		if prev, dup := g.index[img.Name]; dup {
			return nil, fmt.Errorf("image name %q used twice (entries %d and %d)", img.Name, prev, i)
		}
		g.index[img.Name] = i
		g.names = append(g.names, img.Name)
	}
	g.edges = make([][]int, len(imgs))
	g.indeg = make([]int, len(imgs))
	for to, img := range imgs {
		for _, dep := range img.Imports {
			from, ok := g.index[dep]
			if !ok {
				return nil, fmt.Errorf("image %s imports %q, which is not among the inputs", img.Name, dep)
			}
			g.edges[from] = append(g.edges[from], to)
			g.indeg[to]++
		}
	}
	return g, nil
}

// batches orders images with Kahn's algorithm. Images within one batch do
// not depend on each other.
func (g *graph) batches() ([][]int, error) {
	indeg := slices.Clone(g.indeg)
	var current []int
	for i, d := range indeg {
		if d == 0 {
			current = append(current, i)
		}
	}

	var out [][]int
	visited := 0
	for len(current) > 0 {
		batch := slices.Clone(current)
		out = append(out, batch)
		var next []int
		for _, id := range batch {
			visited++
			for _, to := range g.edges[id] {
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if visited != len(g.names) {
		var cyc []string
		for i, d := range indeg {
			if d > 0 {
				cyc = append(cyc, g.names[i])
			}
		}
		slices.Sort(cyc)
		return nil, fmt.Errorf("import cycle among images: %s", strings.Join(cyc, ", "))
	}
	return out, nil
}
