package classifier

import "sort"

// treeNode is one node of a fitted CART-style decision tree. Internal nodes
// route on feature <= threshold; leaves carry the majority label and the
// fraction of training samples agreeing with it.
type treeNode struct {
	feature    int
	threshold  float64
	left       *treeNode
	right      *treeNode
	leaf       bool
	label      Label
	confidence float64
}

const (
	maxTreeDepth    = 12
	minSplitSamples = 2
)

// fitTree grows a decision tree on the samples using Gini impurity.
// Features and candidate thresholds are scanned in fixed order, so fitting
// the same dataset always produces the same tree.
func fitTree(samples []Sample, depth int) *treeNode {
	dga, total := countDGA(samples)

	if depth >= maxTreeDepth || total < minSplitSamples || dga == 0 || dga == total {
		return leafNode(dga, total)
	}

	feature, threshold, ok := bestSplit(samples)
	if !ok {
		return leafNode(dga, total)
	}

	var left, right []Sample
	for _, s := range samples {
		if s.Features[feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leafNode(dga, total)
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      fitTree(left, depth+1),
		right:     fitTree(right, depth+1),
	}
}

// bestSplit scans every feature and every midpoint between adjacent distinct
// values, keeping the split with the strictly lowest weighted Gini impurity.
func bestSplit(samples []Sample) (feature int, threshold float64, ok bool) {
	nFeatures := len(samples[0].Features)
	best := giniOf(samples)

	values := make([]float64, 0, len(samples))
	for f := 0; f < nFeatures; f++ {
		values = values[:0]
		for _, s := range samples {
			values = append(values, s.Features[f])
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			t := (values[i] + values[i-1]) / 2

			var lDGA, lTotal, rDGA, rTotal int
			for _, s := range samples {
				if s.Features[f] <= t {
					lTotal++
					if s.Label == LabelDGA {
						lDGA++
					}
				} else {
					rTotal++
					if s.Label == LabelDGA {
						rDGA++
					}
				}
			}
			if lTotal == 0 || rTotal == 0 {
				continue
			}

			n := float64(lTotal + rTotal)
			weighted := float64(lTotal)/n*gini(lDGA, lTotal) + float64(rTotal)/n*gini(rDGA, rTotal)
			if weighted < best {
				best = weighted
				feature = f
				threshold = t
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func leafNode(dga, total int) *treeNode {
	label := LabelNotDGA
	agree := total - dga
	if dga*2 >= total {
		label = LabelDGA
		agree = dga
	}
	confidence := 1.0
	if total > 0 {
		confidence = float64(agree) / float64(total)
	}
	return &treeNode{leaf: true, label: label, confidence: confidence}
}

// predict walks the tree and returns the leaf label and confidence.
func (n *treeNode) predict(vec []float64) (Label, float64) {
	for !n.leaf {
		if vec[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.label, n.confidence
}

func countDGA(samples []Sample) (dga, total int) {
	for _, s := range samples {
		if s.Label == LabelDGA {
			dga++
		}
	}
	return dga, len(samples)
}

func giniOf(samples []Sample) float64 {
	dga, total := countDGA(samples)
	return gini(dga, total)
}

func gini(dga, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(dga) / float64(total)
	return 1 - p*p - (1-p)*(1-p)
}
