package dnmf

// componentGroups partitions the descriptions into connectivity classes: two
// components end up in the same group iff a chain of pairwise-overlapping
// bounding boxes connects them. The groups are the connected components of
// the pairwise intersection graph, found by BFS. Pure function of the input
// geometry; an empty input yields zero groups.
func componentGroups(descriptions []ComponentDescription) [][]ComponentDescription {
	n := len(descriptions)
	if n == 0 {
		return nil
	}

	adjacency := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if descriptions[i].BoundingBox.Intersects(descriptions[j].BoundingBox) {
				adjacency[i] = append(adjacency[i], j)
				adjacency[j] = append(adjacency[j], i)
			}
		}
	}

	visited := make([]bool, n)
	var groups [][]ComponentDescription
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		var members []ComponentDescription
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			members = append(members, descriptions[current])
			for _, neighbor := range adjacency[current] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
		groups = append(groups, members)
	}
	return groups
}
