package facematch

import (
	"encoding/json"
	"fmt"
)

// EncodeEmbeddings serializes a student's stored embeddings to the
// transportable string form kept on the student record: a JSON array of
// numeric arrays. An empty list encodes as the empty string.
func EncodeEmbeddings(embeddings []Embedding) (string, error) {
	if len(embeddings) == 0 {
		return "", nil
	}
	data, err := json.Marshal(embeddings)
	if err != nil {
		return "", fmt.Errorf("encode embeddings: %w", err)
	}
	return string(data), nil
}

// DecodeEmbeddings parses the stored string form back into embeddings.
// The empty string decodes as no embeddings.
func DecodeEmbeddings(s string) ([]Embedding, error) {
	if s == "" {
		return nil, nil
	}
	var embeddings []Embedding
	if err := json.Unmarshal([]byte(s), &embeddings); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	return embeddings, nil
}
