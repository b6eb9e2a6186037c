package dedup

// unionFind merges items into connected components with path compression
// and union by rank. Components come back in the order their first member
// was added, so grouping is reproducible.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
	order  []string
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// add registers id as its own component. Adding an id twice is a no-op.
func (uf *unionFind) add(id string) {
	if _, ok := uf.parent[id]; ok {
		return
	}
	uf.parent[id] = id
	uf.order = append(uf.order, id)
}

func (uf *unionFind) find(id string) string {
	parent, ok := uf.parent[id]
	if !ok {
		return id
	}
	if parent != id {
		root := uf.find(parent)
		uf.parent[id] = root
		return root
	}
	return id
}

// union merges the components of a and b. Returns true if they were separate.
func (uf *unionFind) union(a, b string) bool {
	uf.add(a)
	uf.add(b)
	rootA, rootB := uf.find(a), uf.find(b)
	if rootA == rootB {
		return false
	}
	switch {
	case uf.rank[rootA] < uf.rank[rootB]:
		uf.parent[rootA] = rootB
	case uf.rank[rootA] > uf.rank[rootB]:
		uf.parent[rootB] = rootA
	default:
		uf.parent[rootB] = rootA
		uf.rank[rootA]++
	}
	return true
}

// components returns every component with members in insertion order.
// Components are ordered by their earliest member.
func (uf *unionFind) components() [][]string {
	index := make(map[string]int)
	var result [][]string
	for _, id := range uf.order {
		root := uf.find(id)
		i, ok := index[root]
		if !ok {
			i = len(result)
			index[root] = i
			result = append(result, nil)
		}
		result[i] = append(result[i], id)
	}
	return result
}
