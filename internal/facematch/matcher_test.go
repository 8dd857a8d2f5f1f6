package facematch

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Embedding
		want float64
	}{
		{"identical", Embedding{1, 2, 3}, Embedding{1, 2, 3}, 0},
		{"unit apart", Embedding{0, 0}, Embedding{1, 0}, 1},
		{"pythagorean", Embedding{0, 0}, Embedding{3, 4}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDistanceInvalidInput(t *testing.T) {
	if d := Distance(Embedding{1, 2}, Embedding{1}); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for mismatched lengths, got %v", d)
	}
	if d := Distance(nil, nil); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for empty vectors, got %v", d)
	}
}

func TestConfidenceBounds(t *testing.T) {
	if c := Confidence(0.3); math.Abs(c-0.7) > 1e-9 {
		t.Errorf("Confidence(0.3) = %v, want 0.7", c)
	}
	if c := Confidence(1.8); c != 0 {
		t.Errorf("Confidence(1.8) = %v, want 0", c)
	}
}

func TestAssignSimpleMatch(t *testing.T) {
	faces := []Embedding{{0.1}}
	known := []Known{{StudentID: 5, Embedding: Embedding{0.0}}}

	got := Assign(faces, known, 0.6)

	m, ok := got[5]
	if !ok {
		t.Fatal("expected student 5 matched")
	}
	if m.FaceIndex != 0 {
		t.Errorf("expected face index 0, got %d", m.FaceIndex)
	}
	if math.Abs(m.Confidence-0.9) > 1e-9 {
		t.Errorf("expected confidence 0.9, got %v", m.Confidence)
	}
}

func TestAssignRespectsTolerance(t *testing.T) {
	faces := []Embedding{{0.7}}
	known := []Known{{StudentID: 1, Embedding: Embedding{0.0}}}

	if got := Assign(faces, known, 0.6); len(got) != 0 {
		t.Errorf("expected no matches beyond tolerance, got %v", got)
	}

	// Distance exactly equal to the tolerance is still eligible.
	faces = []Embedding{{0.6}}
	if got := Assign(faces, known, 0.6); len(got) != 1 {
		t.Errorf("expected boundary distance to match, got %v", got)
	}
}

func TestAssignZeroKnownEmbeddings(t *testing.T) {
	faces := []Embedding{{0.1}, {0.2}}
	if got := Assign(faces, nil, 0.6); len(got) != 0 {
		t.Errorf("expected every face unmatched, got %v", got)
	}
}

func TestAssignLaterCloserFaceStealsStudent(t *testing.T) {
	// Face A matches S1 at distance 0.3, face B matches S1 at 0.2.
	// B must end up with S1, A unmatched, and S2/S3 stay unmatched.
	faces := []Embedding{{0.3}, {0.2}}
	known := []Known{
		{StudentID: 1, Embedding: Embedding{0.0}},
		{StudentID: 2, Embedding: Embedding{5.0}},
		{StudentID: 3, Embedding: Embedding{9.0}},
	}

	got := Assign(faces, known, 0.6)

	if len(got) != 1 {
		t.Fatalf("expected exactly one assignment, got %v", got)
	}
	m := got[1]
	if m.FaceIndex != 1 {
		t.Errorf("expected face 1 to win the conflict, got face %d", m.FaceIndex)
	}
	if math.Abs(m.Confidence-0.8) > 1e-9 {
		t.Errorf("expected confidence 0.8, got %v", m.Confidence)
	}
}

func TestAssignEarlierFaceKeptOnTie(t *testing.T) {
	// Equal distances: the earlier face keeps the student.
	faces := []Embedding{{0.2}, {-0.2}}
	known := []Known{{StudentID: 1, Embedding: Embedding{0.0}}}

	got := Assign(faces, known, 0.6)

	if m := got[1]; m.FaceIndex != 0 {
		t.Errorf("expected earlier face kept on a tie, got face %d", m.FaceIndex)
	}
}

func TestAssignMultipleEmbeddingsPerStudent(t *testing.T) {
	// The student is matched via whichever of their embeddings is closest.
	faces := []Embedding{{0.5}}
	known := []Known{
		{StudentID: 1, Embedding: Embedding{0.0}},
		{StudentID: 1, Embedding: Embedding{0.45}},
	}

	got := Assign(faces, known, 0.6)

	m, ok := got[1]
	if !ok {
		t.Fatal("expected student 1 matched")
	}
	if math.Abs(m.Distance-0.05) > 1e-9 {
		t.Errorf("expected distance 0.05 via closest embedding, got %v", m.Distance)
	}
}

func TestAssignNoDuplicateFaces(t *testing.T) {
	// Two students, two faces, each face closest to its own student:
	// no face index may appear twice in the output.
	faces := []Embedding{{0.0}, {1.0}}
	known := []Known{
		{StudentID: 1, Embedding: Embedding{0.1}},
		{StudentID: 2, Embedding: Embedding{0.9}},
	}

	got := Assign(faces, known, 0.6)

	if len(got) != 2 {
		t.Fatalf("expected two assignments, got %v", got)
	}
	seen := make(map[int]bool)
	for studentID, m := range got {
		if seen[m.FaceIndex] {
			t.Errorf("face %d assigned to more than one student", m.FaceIndex)
		}
		seen[m.FaceIndex] = true
		if m.Confidence < 0 || m.Confidence > 1 {
			t.Errorf("student %d: confidence %v out of [0,1]", studentID, m.Confidence)
		}
	}
}

func TestAssignLosingFaceNotReassigned(t *testing.T) {
	// Face 0 loses S1 to face 1, and even though S2 would be within
	// tolerance for face 0, the greedy pass does not revisit it.
	faces := []Embedding{{0.3}, {0.25}}
	known := []Known{
		{StudentID: 1, Embedding: Embedding{0.0}},
		{StudentID: 2, Embedding: Embedding{0.7}},
	}

	got := Assign(faces, known, 0.6)

	if m, ok := got[1]; !ok || m.FaceIndex != 1 {
		t.Fatalf("expected face 1 to hold student 1, got %v", got)
	}
	if _, ok := got[2]; ok {
		t.Errorf("losing face must stay unmatched, got %v", got)
	}
}
