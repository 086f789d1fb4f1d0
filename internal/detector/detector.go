// Package detector talks to a face-landmark sidecar over HTTP.
//
// The sidecar receives a JPEG frame and answers with MediaPipe face-mesh
// landmarks in normalized image coordinates:
//
//	POST /v1/landmarks  (Content-Type: image/jpeg)
//	{"faces":[{"landmarks":[[0.41,0.37],...]}]}
//
// Only the first face is used.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gazewatch/gazewatch/internal/vision"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// Response is the sidecar answer.
type Response struct {
	Faces []Face `json:"faces"`
}

// Face is one detected face.
type Face struct {
	Landmarks [][2]float64 `json:"landmarks"`
	Score     float64      `json:"score,omitempty"`
}

// Client is an HTTP landmark detector.
type Client struct {
	baseURL    string
	quality    int
	httpClient *http.Client
}

// New creates a detector client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		quality:    85,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Healthcheck checks if the sidecar is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Detect implements vision.Detector. Landmarks are scaled to pixel coordinates
// of the submitted frame.
func (c *Client) Detect(ctx context.Context, f vision.Frame) (core.LandmarkSet, bool, error) {
	if f.Image == nil {
		return nil, false, fmt.Errorf("frame %d has no image", f.Seq)
	}

	var body bytes.Buffer
	if err := jpeg.Encode(&body, f.Image, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, false, fmt.Errorf("failed to encode frame %d: %w", f.Seq, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/landmarks", &body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("landmark request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("landmark request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("failed to decode landmarks: %w", err)
	}
	if len(out.Faces) == 0 || len(out.Faces[0].Landmarks) == 0 {
		return nil, false, nil
	}

	w, h := f.Width, f.Height
	if w == 0 || h == 0 {
		b := f.Image.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	return core.ScaleNormalized(out.Faces[0].Landmarks, w, h), true, nil
}
