package faceid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MrWong99/roomguard/pkg/capture"
	"github.com/MrWong99/roomguard/pkg/provider/vision"
)

// defaultTimeout bounds one encode round trip.
const defaultTimeout = 10 * time.Second

// Compile-time assertion that *Client satisfies Encoder.
var _ Encoder = (*Client)(nil)

// Client is the HTTP implementation of [Encoder]. It posts raw frame bytes
// to the encoder service's /encode endpoint and decodes the face list from
// the JSON response.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpc = c }
}

// NewClient creates a Client for the encoder service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("faceid: encoder base URL must not be empty")
	}
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// encodeResponse is the wire format of the encoder service.
type encodeResponse struct {
	Faces []struct {
		Box struct {
			X      int `json:"x"`
			Y      int `json:"y"`
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"box"`
		Encoding []float32 `json:"encoding"`
	} `json:"faces"`
}

// Encode implements [Encoder].
func (c *Client) Encode(ctx context.Context, frame capture.Frame) ([]EncodedFace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/encode", bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("faceid: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if frame.Width > 0 {
		req.Header.Set("X-Frame-Width", strconv.Itoa(frame.Width))
		req.Header.Set("X-Frame-Height", strconv.Itoa(frame.Height))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("faceid: encode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("faceid: encoder returned %d: %s", resp.StatusCode, body)
	}

	var decoded encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("faceid: decode response: %w", err)
	}

	faces := make([]EncodedFace, 0, len(decoded.Faces))
	for _, f := range decoded.Faces {
		faces = append(faces, EncodedFace{
			Location: vision.Region{X: f.Box.X, Y: f.Box.Y, Width: f.Box.Width, Height: f.Box.Height},
			Encoding: f.Encoding,
		})
	}
	return faces, nil
}
