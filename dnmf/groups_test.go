package dnmf

import (
	"testing"
)

func TestComponentGroupsChain(t *testing.T) {
	// A overlaps B, B overlaps C, A does not overlap C: one group of three.
	// D is far away: its own group.
	boxes := []BoundingBox{
		mustBox(t, []int{0, 0}, []int{4, 4}),
		mustBox(t, []int{3, 3}, []int{4, 4}),
		mustBox(t, []int{6, 6}, []int{4, 4}),
		mustBox(t, []int{20, 20}, []int{4, 4}),
	}
	groups := componentGroups(NewComponentDescriptions(boxes))

	if len(groups) != 2 {
		t.Fatalf("wrong number of groups: %d, expected: %d", len(groups), 2)
	}

	sizes := map[int]int{}
	seen := map[int]int{}
	for _, group := range groups {
		sizes[len(group)]++
		for _, description := range group {
			seen[description.Index]++
		}
	}
	if sizes[3] != 1 || sizes[1] != 1 {
		t.Errorf("wrong group sizes: %v, expected one group of 3 and one of 1", sizes)
	}
	for index := 0; index < len(boxes); index++ {
		if seen[index] != 1 {
			t.Errorf("component %d appears %d times across groups, expected exactly once", index, seen[index])
		}
	}
}

func TestComponentGroupsDisjoint(t *testing.T) {
	boxes := []BoundingBox{
		mustBox(t, []int{0, 0}, []int{2, 2}),
		mustBox(t, []int{10, 0}, []int{2, 2}),
		mustBox(t, []int{0, 10}, []int{2, 2}),
	}
	groups := componentGroups(NewComponentDescriptions(boxes))
	if len(groups) != 3 {
		t.Errorf("wrong number of groups: %d, expected: %d", len(groups), 3)
	}
	for _, group := range groups {
		if len(group) != 1 {
			t.Errorf("wrong group size: %d, expected: %d", len(group), 1)
		}
	}
}

func TestComponentGroupsEmpty(t *testing.T) {
	groups := componentGroups(nil)
	if len(groups) != 0 {
		t.Errorf("wrong number of groups: %d, expected: %d", len(groups), 0)
	}
}

func TestComponentGroupsIdempotent(t *testing.T) {
	boxes := []BoundingBox{
		mustBox(t, []int{0, 0}, []int{4, 4}),
		mustBox(t, []int{2, 2}, []int{4, 4}),
		mustBox(t, []int{12, 12}, []int{4, 4}),
	}
	descriptions := NewComponentDescriptions(boxes)
	first := componentGroups(descriptions)
	second := componentGroups(descriptions)
	if len(first) != len(second) {
		t.Fatalf("group counts differ between runs: %d vs %d", len(first), len(second))
	}
	for g := range first {
		if len(first[g]) != len(second[g]) {
			t.Errorf("group %d sizes differ between runs: %d vs %d", g, len(first[g]), len(second[g]))
		}
	}
}
