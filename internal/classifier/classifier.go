package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/abhijithsuren/dga-lab-v2/internal/features"
	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
)

// Label is the classifier's two-way output. The UNKNOWN verdict is not a
// classifier label; it is produced upstream when classification fails.
type Label int

const (
	LabelNotDGA Label = iota
	LabelDGA
)

func (l Label) String() string {
	switch l {
	case LabelDGA:
		return "DGA"
	case LabelNotDGA:
		return "NOT_DGA"
	default:
		return "unknown"
	}
}

// ErrModelUnavailable is returned by Load when the training dataset cannot
// be read. The classifier still works in that state, using the rule-based
// fallback, with Degraded reporting true.
var ErrModelUnavailable = errors.New("classifier: model unavailable")

// ErrUndecidable is returned by Classify when neither the model nor the
// fallback rule can score the vector.
var ErrUndecidable = errors.New("classifier: vector undecidable")

// FallbackThresholds parameterize the rule used when no model is loaded:
// a label is DGA when its entropy or digit ratio reaches the threshold.
type FallbackThresholds struct {
	Entropy    float64
	DigitRatio float64
}

// DefaultFallbackThresholds separate the seeded DGA labels (entropy near
// log2 of their distinct character count, well above 3) from common benign
// labels, which stay below 3 bits.
func DefaultFallbackThresholds() FallbackThresholds {
	return FallbackThresholds{Entropy: 3.0, DigitRatio: 0.3}
}

const (
	fallbackDGAConfidence    = 0.9
	fallbackNotDGAConfidence = 0.7
)

// Classifier wraps a decision tree fitted once at startup. All methods are
// safe for concurrent use after Load: the tree is never mutated again, so
// classification is deterministic for the process lifetime.
type Classifier struct {
	tree       *treeNode
	degraded   bool
	thresholds FallbackThresholds
}

// Load trains a classifier from the labeled dataset at path. On any load or
// fit error it returns a degraded classifier together with
// ErrModelUnavailable; callers keep the classifier and run on the fallback
// rule.
func Load(path string, thresholds FallbackThresholds) (*Classifier, error) {
	c := &Classifier{degraded: true, thresholds: thresholds}

	if path == "" {
		return c, fmt.Errorf("%w: no dataset configured", ErrModelUnavailable)
	}

	samples, err := LoadDataset(path)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	c.tree = fitTree(samples, 0)
	c.degraded = false
	logging.Info("classifier trained on %d samples from %s", len(samples), path)
	return c, nil
}

// Classify scores a feature vector. With a loaded model it walks the tree;
// without one it applies the fallback thresholds. ErrUndecidable is
// returned when the vector cannot be scored at all.
func (c *Classifier) Classify(v features.Vector) (Label, float64, error) {
	if v.Length <= 0 || math.IsNaN(v.Entropy) || math.IsInf(v.Entropy, 0) {
		return LabelNotDGA, 0, ErrUndecidable
	}

	if c.tree != nil {
		label, confidence := c.tree.predict(v.Values())
		return label, confidence, nil
	}

	if v.Entropy >= c.thresholds.Entropy || v.DigitRatio >= c.thresholds.DigitRatio {
		return LabelDGA, fallbackDGAConfidence, nil
	}
	return LabelNotDGA, fallbackNotDGAConfidence, nil
}

// Degraded reports whether the classifier is running on the fallback rule
// because the model failed to load.
func (c *Classifier) Degraded() bool {
	return c.degraded
}

// Loaded reports whether the decision tree model is in memory.
func (c *Classifier) Loaded() bool {
	return c.tree != nil
}
