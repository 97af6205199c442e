// Package clustering groups message embeddings into topic clusters using
// density-based hierarchical clustering (HDBSCAN) with excess-of-mass
// cluster selection. Topic count in a transcript is unknown a priori, and
// density-based selection yields a natural noise bucket for outlier
// messages instead of forcing every message into a topic.
package clustering

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// NoiseLabel is the reserved label for points assigned to no cluster.
const NoiseLabel = -1

// maxLambda caps 1/distance for zero-distance merges (duplicate points).
const maxLambda = 1e12

// Cluster runs HDBSCAN over the vectors under unweighted euclidean
// distance and returns one label per vector: NoiseLabel for unclustered
// points, 0..k for cluster members.
//
// Degenerate inputs: zero vectors yields an empty label list; fewer than
// two vectors yields a single cluster (label 0), since the hierarchy
// needs at least two points.
func Cluster(vectors [][]float32, minClusterSize, minSamples int) []int {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if n < 2 {
		return []int{0}
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if minSamples < 1 {
		minSamples = 1
	}

	dist := distanceMatrix(vectors)
	core := coreDistances(dist, minSamples)
	edges := mutualReachabilityMST(dist, core)
	tree := buildHierarchy(n, edges)
	cond := condenseTree(tree, minClusterSize)
	selected := selectExcessOfMass(cond)
	return flatLabels(n, cond, selected)
}

// distanceMatrix computes pairwise euclidean distances.
func distanceMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	pts := make([][]float64, n)
	for i, v := range vectors {
		pts[i] = make([]float64, len(v))
		for j, x := range v {
			pts[i][j] = float64(x)
		}
	}
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(pts[i], pts[j], 2)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// coreDistances returns, per point, the distance to its minSamples-th
// nearest neighbor (excluding the point itself).
func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	core := make([]float64, n)
	buf := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		buf = buf[:0]
		for j := 0; j < n; j++ {
			if j != i {
				buf = append(buf, dist[i][j])
			}
		}
		sort.Float64s(buf)
		k := minSamples
		if k > len(buf) {
			k = len(buf)
		}
		core[i] = buf[k-1]
	}
	return core
}

// mstEdge is one edge of the minimum spanning tree over the mutual
// reachability graph.
type mstEdge struct {
	a, b   int
	weight float64
}

// mutualReachabilityMST builds the MST under the mutual reachability
// distance max(core(a), core(b), d(a,b)) using Prim's algorithm.
func mutualReachabilityMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	minDist := make([]float64, n)
	minFrom := make([]int, n)
	for i := range minDist {
		minDist[i] = math.Inf(1)
		minFrom[i] = -1
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := math.Max(dist[current][j], math.Max(core[current], core[j]))
			if w < minDist[j] {
				minDist[j] = w
				minFrom[j] = current
			}
		}

		next, best := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && minDist[j] < best {
				next, best = j, minDist[j]
			}
		}
		edges = append(edges, mstEdge{a: minFrom[next], b: next, weight: best})
		inTree[next] = true
		current = next
	}

	sort.Slice(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	return edges
}

// hierNode is one node of the single-linkage dendrogram. Ids 0..n-1 are
// leaves holding a single point; merge nodes follow in merge order.
type hierNode struct {
	left, right int     // child ids, -1 for leaves
	lambda      float64 // 1/merge-distance at which the children join
	size        int
	point       int // only meaningful for leaves
}

// buildHierarchy turns the sorted MST edges into a dendrogram via
// union-find.
func buildHierarchy(n int, edges []mstEdge) []hierNode {
	nodes := make([]hierNode, n, 2*n-1)
	for i := 0; i < n; i++ {
		nodes[i] = hierNode{left: -1, right: -1, size: 1, point: i}
	}

	root := make([]int, 2*n-1)
	for i := range root {
		root[i] = i
	}
	find := func(x int) int {
		for root[x] != x {
			root[x] = root[root[x]]
			x = root[x]
		}
		return x
	}

	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		if ra == rb {
			continue
		}
		lambda := maxLambda
		if e.weight > 0 {
			lambda = math.Min(1.0/e.weight, maxLambda)
		}
		id := len(nodes)
		nodes = append(nodes, hierNode{
			left:   ra,
			right:  rb,
			lambda: lambda,
			size:   nodes[ra].size + nodes[rb].size,
		})
		root[ra] = id
		root[rb] = id
		root[id] = id
	}
	return nodes
}

// condCluster is one cluster of the condensed tree.
type condCluster struct {
	parent   int // condensed parent id, -1 for the root
	birth    float64
	children []int

	// pointLeaves maps point index to the lambda at which the point left
	// this cluster, either by falling out with an undersized child or at
	// the split into condensed children.
	pointLeaves map[int]float64

	// fellOut lists points whose final departure from the hierarchy
	// happened in this cluster (they did not transfer into a child).
	fellOut []int
}

// condenseTree walks the dendrogram top-down. A merge is a true split
// only when both sides carry at least minClusterSize points; otherwise
// the small side falls out of the current condensed cluster.
func condenseTree(nodes []hierNode, minClusterSize int) []condCluster {
	rootID := len(nodes) - 1
	cond := []condCluster{{parent: -1, birth: 0, pointLeaves: map[int]float64{}}}

	// subtreePoints collects the leaf points under a hierarchy node.
	var subtreePoints func(id int, out *[]int)
	subtreePoints = func(id int, out *[]int) {
		nd := nodes[id]
		if nd.left == -1 {
			*out = append(*out, nd.point)
			return
		}
		subtreePoints(nd.left, out)
		subtreePoints(nd.right, out)
	}

	var walk func(hierID, condID int)
	walk = func(hierID, condID int) {
		nd := nodes[hierID]
		if nd.left == -1 {
			// A bare leaf only becomes the current cluster's point; its
			// departure is recorded by the caller.
			return
		}
		leftSize, rightSize := nodes[nd.left].size, nodes[nd.right].size
		bigLeft := leftSize >= minClusterSize
		bigRight := rightSize >= minClusterSize

		switch {
		case bigLeft && bigRight:
			// True split: all current points leave condID here and the
			// children start their own condensed clusters.
			var pts []int
			subtreePoints(hierID, &pts)
			for _, p := range pts {
				cond[condID].pointLeaves[p] = nd.lambda
			}
			for _, child := range []int{nd.left, nd.right} {
				childID := len(cond)
				cond = append(cond, condCluster{
					parent:      condID,
					birth:       nd.lambda,
					pointLeaves: map[int]float64{},
				})
				cond[condID].children = append(cond[condID].children, childID)
				walk(child, childID)
			}
		case bigLeft || bigRight:
			small, big := nd.left, nd.right
			if bigLeft {
				small, big = nd.right, nd.left
			}
			var pts []int
			subtreePoints(small, &pts)
			for _, p := range pts {
				cond[condID].pointLeaves[p] = nd.lambda
				cond[condID].fellOut = append(cond[condID].fellOut, p)
			}
			walk(big, condID)
		default:
			// Both sides undersized: every point falls out and the
			// cluster ends here.
			var pts []int
			subtreePoints(hierID, &pts)
			for _, p := range pts {
				cond[condID].pointLeaves[p] = nd.lambda
				cond[condID].fellOut = append(cond[condID].fellOut, p)
			}
		}
	}
	walk(rootID, 0)
	return cond
}

// stability computes the excess-of-mass stability of one condensed
// cluster: the sum over member points of how long (in lambda) each point
// persisted past the cluster's birth.
func stability(c condCluster) float64 {
	s := 0.0
	for _, leave := range c.pointLeaves {
		s += leave - c.birth
	}
	return s
}

// selectExcessOfMass picks flat clusters bottom-up: a parent replaces its
// children when its own stability exceeds their combined subtree
// stability. The root cluster is never selected, so a fully merged
// hierarchy yields only the noise bucket.
func selectExcessOfMass(cond []condCluster) map[int]bool {
	selected := make(map[int]bool, len(cond))
	subtree := make([]float64, len(cond))

	// Children always have larger ids than their parent; descending id
	// order visits children first.
	for id := len(cond) - 1; id >= 0; id-- {
		own := stability(cond[id])
		if len(cond[id].children) == 0 {
			subtree[id] = own
			if id != 0 {
				selected[id] = true
			}
			continue
		}
		childSum := 0.0
		for _, c := range cond[id].children {
			childSum += subtree[c]
		}
		if own > childSum && id != 0 {
			selected[id] = true
			deselectDescendants(cond, id, selected)
			subtree[id] = own
		} else {
			subtree[id] = childSum
		}
	}
	return selected
}

func deselectDescendants(cond []condCluster, id int, selected map[int]bool) {
	for _, c := range cond[id].children {
		delete(selected, c)
		deselectDescendants(cond, c, selected)
	}
}

// flatLabels assigns each point to its deepest selected ancestor cluster,
// or NoiseLabel when none of the clusters it passed through was selected.
// Selected clusters are numbered in birth order.
func flatLabels(n int, cond []condCluster, selected map[int]bool) []int {
	labelOf := make(map[int]int, len(selected))
	next := 0
	for id := range cond {
		if selected[id] {
			labelOf[id] = next
			next++
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}
	for id, c := range cond {
		for _, p := range c.fellOut {
			// Walk from the cluster where the point finally fell out up
			// to the root, looking for a selected cluster.
			for cur := id; cur != -1; cur = cond[cur].parent {
				if selected[cur] {
					labels[p] = labelOf[cur]
					break
				}
			}
		}
	}
	return labels
}
