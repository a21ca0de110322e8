// SPDX-License-Identifier: MIT

package snn

// walker encapsulates mutable BFS state for component labelling.
type walker struct {
	graph     *Graph
	minWeight float64
	queue     []int
	label     []int // -1 until visited
}

// flood labels every cell reachable from start with id.
func (w *walker) flood(start, id int) {
	w.queue = append(w.queue[:0], start)
	w.label[start] = id
	for len(w.queue) > 0 {
		cur := w.queue[0]
		w.queue = w.queue[1:]
		for _, e := range w.graph.adj[cur] {
			if e.Weight < w.minWeight || w.label[e.To] >= 0 {
				continue
			}
			w.label[e.To] = id
			w.queue = append(w.queue, e.To)
		}
	}
}
