package facematch

// Known is one stored (student, embedding) pair. A student with several
// stored embeddings contributes one Known per embedding.
type Known struct {
	StudentID int
	Embedding Embedding
}

// Match records which detected face a student was matched from.
type Match struct {
	FaceIndex  int
	Distance   float64
	Confidence float64
}

// Assign greedily maps detected faces to students. Faces are processed
// in detection order; for each face the closest known embedding within
// tolerance becomes its candidate. When two faces pick the same student
// the one with the strictly smaller raw distance keeps the assignment
// and the other face ends up unmatched. Distances, not confidences, are
// the conflict rule; confidence is derived only for reporting.
//
// The result holds at most one entry per student, each from a distinct
// face. A face that loses its student to a later, closer face is not
// reassigned to its second-best candidate.
func Assign(faces []Embedding, known []Known, tolerance float64) map[int]Match {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	assigned := make(map[int]Match)
	for faceIdx, face := range faces {
		best := -1
		bestDist := 0.0
		for i, k := range known {
			d := Distance(face, k.Embedding)
			if d > tolerance {
				continue
			}
			if best == -1 || d < bestDist {
				best = i
				bestDist = d
			}
		}
		if best == -1 {
			continue
		}
		studentID := known[best].StudentID
		if prev, ok := assigned[studentID]; ok && prev.Distance <= bestDist {
			continue
		}
		assigned[studentID] = Match{
			FaceIndex:  faceIdx,
			Distance:   bestDist,
			Confidence: Confidence(bestDist),
		}
	}
	return assigned
}
