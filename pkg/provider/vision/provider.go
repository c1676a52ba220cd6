// Package vision defines the Service interface for face detection and
// identification.
//
// The matching algorithm itself (detection, encoding, nearest-neighbour
// lookup) lives behind this interface; the guard core only consumes the
// per-face identity/confidence pairs and turns them into trust updates or
// escalation sessions.
//
// Implementations must be safe for concurrent use.
package vision

import (
	"context"

	"github.com/MrWong99/roomguard/pkg/capture"
)

// Region is a face bounding box in frame pixel coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Detection is one face found in a frame.
type Detection struct {
	// Location is where the face was found.
	Location Region

	// IdentityID is the matched enrolled identity, or "" when the face
	// did not match anyone.
	IdentityID string

	// Name is the matched identity's display name, when known.
	Name string

	// Confidence is the match confidence in [0, 1]. For unmatched faces
	// this is the best (still insufficient) candidate score, which the
	// core logs but does not act on.
	Confidence float64
}

// Service is the abstraction over any face detection/identification
// backend.
type Service interface {
	// DetectAndIdentify finds all faces in frame and attempts to match
	// each against the enrolled identities. An empty slice with a nil
	// error means no faces were present. A non-nil error means the backend
	// failed; the caller skips the frame and retries with the next one.
	DetectAndIdentify(ctx context.Context, frame capture.Frame) ([]Detection, error)
}
