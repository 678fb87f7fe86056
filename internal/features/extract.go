package features

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Vector holds the numeric features derived from a single domain name.
// Field order matches the column order of the training dataset.
type Vector struct {
	Length      float64 `json:"length"`
	Digits      float64 `json:"digits"`
	Letters     float64 `json:"letters"`
	UniqueChars float64 `json:"unique_chars"`
	Vowels      float64 `json:"vowels"`
	Consonants  float64 `json:"consonants"`
	DigitRatio  float64 `json:"digit_ratio"`
	Entropy     float64 `json:"entropy"`
}

// Values returns the vector in dataset column order.
func (v Vector) Values() []float64 {
	return []float64{
		v.Length,
		v.Digits,
		v.Letters,
		v.UniqueChars,
		v.Vowels,
		v.Consonants,
		v.DigitRatio,
		v.Entropy,
	}
}

// ColumnNames lists the dataset columns Vector maps onto, in order.
func ColumnNames() []string {
	return []string{
		"length", "digits", "letters", "unique_chars",
		"vowels", "consonants", "digit_ratio", "entropy",
	}
}

// InvalidDomainError reports a domain that is empty after normalization or
// has no extractable characters left of its public suffix.
type InvalidDomainError struct {
	Domain string
}

func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid domain %q: nothing to extract", e.Domain)
}

// Normalize lowercases a raw domain and strips surrounding whitespace and a
// trailing dot. An empty result means the input is not a usable domain.
func Normalize(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimSuffix(d, ".")
	return strings.ToLower(d)
}

// Label returns the part of a normalized domain left of its public suffix,
// which is what the features are computed over. A dotless name is its own
// label; when the PSL cannot shorten the name, a plain last-dot split is
// used instead.
func Label(domain string) string {
	if !strings.Contains(domain, ".") {
		return domain
	}
	suffix, _ := publicsuffix.PublicSuffix(domain)
	if suffix != "" && len(domain) > len(suffix) {
		return strings.TrimSuffix(domain[:len(domain)-len(suffix)], ".")
	}
	if i := strings.LastIndex(domain, "."); i >= 0 {
		return domain[:i]
	}
	return domain
}

// Extract computes the feature vector for a domain. It is deterministic:
// the same input always yields a bit-identical vector.
func Extract(domain string) (Vector, error) {
	d := Normalize(domain)
	if d == "" {
		return Vector{}, &InvalidDomainError{Domain: domain}
	}

	label := Label(d)
	if label == "" {
		return Vector{}, &InvalidDomainError{Domain: domain}
	}

	var digits, letters, vowels int
	seen := make(map[rune]struct{}, len(label))
	for _, r := range label {
		seen[r] = struct{}{}
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z':
			letters++
			if r == 'a' || r == 'e' || r == 'i' || r == 'o' || r == 'u' {
				vowels++
			}
		}
	}

	length := len([]rune(label))
	return Vector{
		Length:      float64(length),
		Digits:      float64(digits),
		Letters:     float64(letters),
		UniqueChars: float64(len(seen)),
		Vowels:      float64(vowels),
		Consonants:  float64(letters - vowels),
		DigitRatio:  float64(digits) / float64(length),
		Entropy:     shannonEntropy(label),
	}, nil
}

// shannonEntropy computes base-2 Shannon entropy over the byte frequency
// distribution of s.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}

	var entropy float64
	total := float64(len(s))
	for _, count := range counts {
		if count > 0 {
			p := float64(count) / total
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}
