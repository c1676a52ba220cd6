// Package faceid implements the vision.Service collaborator by pairing an
// external face detection/encoding service with the enrolled-identity
// store. The encoder finds faces in a frame and returns their encoding
// vectors; matching happens here as a nearest-encoding lookup.
package faceid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/roomguard/internal/identity"
	"github.com/MrWong99/roomguard/pkg/capture"
	"github.com/MrWong99/roomguard/pkg/provider/vision"
)

// EncodedFace is one face found by the encoder backend.
type EncodedFace struct {
	// Location is the bounding box in frame pixel coordinates.
	Location vision.Region

	// Encoding is the face encoding vector.
	Encoding []float32
}

// Encoder detects faces in a frame and produces their encodings. The
// backend is external; see [Client] for the HTTP implementation.
type Encoder interface {
	Encode(ctx context.Context, frame capture.Frame) ([]EncodedFace, error)
}

// Compile-time assertion that *Service satisfies vision.Service.
var _ vision.Service = (*Service)(nil)

// Service matches encoder output against enrolled identities.
type Service struct {
	encoder Encoder
	store   identity.Store
}

// NewService creates a Service. Both collaborators are required.
func NewService(encoder Encoder, store identity.Store) (*Service, error) {
	if encoder == nil {
		return nil, fmt.Errorf("faceid: encoder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("faceid: identity store must not be nil")
	}
	return &Service{encoder: encoder, store: store}, nil
}

// DetectAndIdentify implements vision.Service. Each detected face is
// matched against the enrolled encodings; confidence is 1 minus the cosine
// distance to the closest match, clamped to [0, 1]. Faces with no enrolled
// candidate come back with an empty identity and zero confidence.
func (s *Service) DetectAndIdentify(ctx context.Context, frame capture.Frame) ([]vision.Detection, error) {
	faces, err := s.encoder.Encode(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("faceid: encode frame: %w", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}

	detections := make([]vision.Detection, 0, len(faces))
	for _, face := range faces {
		det := vision.Detection{Location: face.Location}

		match, err := s.store.Nearest(ctx, face.Encoding)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			// Nobody enrolled; the face stays unknown.
		case err != nil:
			slog.Error("nearest-encoding lookup failed", "error", err)
		default:
			det.IdentityID = match.Identity.ID
			det.Name = match.Identity.Name
			det.Confidence = confidence(match.Distance)
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// confidence converts a cosine distance into a [0, 1] match confidence.
func confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
