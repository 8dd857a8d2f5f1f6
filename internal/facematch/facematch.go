// Package facematch assigns detected face embeddings to enrolled
// students by Euclidean distance over the embedding vectors.
package facematch

import "math"

// DefaultTolerance is the maximum embedding distance accepted as a
// positive match. 0.6 is the conventional threshold for 128-dimensional
// dlib-style face embeddings.
const DefaultTolerance = 0.6

// Embedding is a fixed-length numeric face descriptor.
type Embedding []float64

// Distance returns the Euclidean distance between two embeddings.
// Mismatched or empty vectors compare as infinitely far apart.
func Distance(a, b Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Confidence derives the reported [0,1] match quality from a distance.
func Confidence(distance float64) float64 {
	return math.Max(0, 1-distance)
}
