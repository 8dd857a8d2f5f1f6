// Package faceclient calls the external face-analysis microservice for
// detection, embedding extraction, and age/gender/emotion estimation.
// The algorithms themselves live in that service; this client treats
// them as black boxes.
package faceclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/muhammetmertkus/face-recognition-backend/internal/facematch"
)

// Box is a detected face location in image pixel coordinates, in the
// (top, right, bottom, left) order the detection service reports.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Attributes is an age/gender/emotion estimate for one face. Fields the
// estimator could not produce stay nil.
type Attributes struct {
	Age     *int    `json:"age,omitempty"`
	Gender  *string `json:"gender,omitempty"`
	Emotion *string `json:"emotion,omitempty"`
}

// Detector locates faces and extracts their embeddings.
type Detector interface {
	DetectFaces(ctx context.Context, image []byte) ([]Box, error)
	Embeddings(ctx context.Context, image []byte, boxes []Box) ([]facematch.Embedding, error)
}

// Analyzer estimates attributes for a single detected face. A nil
// result with nil error means the estimator had nothing to report.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, box Box) (*Attributes, error)
}

// Client calls the face service over HTTP. With Skip set it returns
// deterministic stub results instead, so the rest of the system can run
// without the service (dev mode).
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with a generous timeout; face processing is slow.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks service availability.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

// DetectFaces returns the bounding box of every face in the image.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]Box, error) {
	if c.Skip {
		return []Box{{Top: 10, Right: 110, Bottom: 110, Left: 10}}, nil
	}
	var out struct {
		Faces []Box `json:"faces"`
	}
	if err := c.post(ctx, "/detect", map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
	}, &out); err != nil {
		return nil, err
	}
	return out.Faces, nil
}

// Embeddings extracts one embedding per detected box, in box order.
func (c *Client) Embeddings(ctx context.Context, image []byte, boxes []Box) ([]facematch.Embedding, error) {
	if c.Skip {
		embeddings := make([]facematch.Embedding, len(boxes))
		for i := range boxes {
			embeddings[i] = facematch.Embedding{0.1, 0.2, 0.3}
		}
		return embeddings, nil
	}
	var out struct {
		Embeddings []facematch.Embedding `json:"embeddings"`
	}
	if err := c.post(ctx, "/embed", map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
		"faces": boxes,
	}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(boxes) {
		return nil, fmt.Errorf("face service returned %d embeddings for %d faces", len(out.Embeddings), len(boxes))
	}
	return out.Embeddings, nil
}

// Analyze estimates age, gender, and emotion for one face crop.
func (c *Client) Analyze(ctx context.Context, image []byte, box Box) (*Attributes, error) {
	if c.Skip {
		age, gender, emotion := 21, "Man", "happy"
		return &Attributes{Age: &age, Gender: &gender, Emotion: &emotion}, nil
	}
	var out Attributes
	if err := c.post(ctx, "/analyze", map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
		"face":  box,
	}, &out); err != nil {
		return nil, err
	}
	if out.Age == nil && out.Gender == nil && out.Emotion == nil {
		return nil, nil
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(respBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
