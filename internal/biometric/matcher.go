package biometric

import "math"

// DescriptorLength is the dimensionality of a face descriptor.
const DescriptorLength = 128

// DefaultThreshold is the euclidean distance under which two descriptors match.
const DefaultThreshold = 0.6

// Descriptor is a face embedding produced on the capturing device.
type Descriptor []float64

// Valid reports whether d has exactly DescriptorLength finite components.
func (d Descriptor) Valid() bool {
	if len(d) != DescriptorLength {
		return false
	}
	for _, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Candidate is one enrolled descriptor in a search pool.
type Candidate struct {
	ID         string
	Descriptor Descriptor
}

// Match is the nearest candidate found under the threshold.
type Match struct {
	ID       string
	Distance float64
}

// Matcher runs nearest-neighbour search over a candidate pool.
// It holds no state besides its threshold and never retains descriptors.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a matcher, falling back to DefaultThreshold for non-positive values.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// FindBestMatch returns the candidate closest to probe with a distance strictly
// below the threshold. Candidates with malformed descriptors are skipped. Equal
// distances resolve to the lowest id so the result does not depend on pool order.
func (m Matcher) FindBestMatch(probe Descriptor, candidates []Candidate) (Match, bool) {
	if !probe.Valid() {
		return Match{}, false
	}

	var best Match
	found := false
	for _, c := range candidates {
		if !c.Descriptor.Valid() {
			continue
		}
		d := Distance(probe, c.Descriptor)
		if d >= m.Threshold {
			continue
		}
		if !found || d < best.Distance || (d == best.Distance && c.ID < best.ID) {
			best = Match{ID: c.ID, Distance: d}
			found = true
		}
	}
	return best, found
}

// Distance is the euclidean distance between two descriptors of equal length.
// Mismatched lengths yield +Inf.
func Distance(a, b Descriptor) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
