// Package vision prepares user photos for the vision completion endpoint:
// it bounds their dimensions, re-encodes them as JPEG, and wraps the result
// in a self-contained data URL.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

const (
	// maxEdge caps the long edge before upload; larger photos only add
	// tokens, not signal.
	maxEdge = 1280
	// jpegQuality balances payload size against legibility.
	jpegQuality = 85
	// maxConcurrentEncodes bounds decode+resize memory usage.
	maxConcurrentEncodes = 3
)

// Encoder converts raw image bytes into embedded data-URL payloads.
type Encoder struct {
	sem *semaphore.Weighted
}

// NewEncoder creates an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{
		sem: semaphore.NewWeighted(maxConcurrentEncodes),
	}
}

// DataURL decodes raw, downscales it so neither edge exceeds maxEdge, and
// returns a "data:image/jpeg;base64,..." payload.
func (e *Encoder) DataURL(ctx context.Context, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("empty image payload")
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", errors.Wrap(err, "failed to acquire encode slot")
	}
	defer e.sem.Release(1)

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", errors.Wrap(err, "failed to decode image")
	}

	img = bound(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", errors.Wrap(err, "failed to encode image")
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func bound(img image.Image) image.Image {
	size := img.Bounds().Size()
	if size.X <= maxEdge && size.Y <= maxEdge {
		return img
	}
	if size.X >= size.Y {
		return imaging.Resize(img, maxEdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxEdge, imaging.Lanczos)
}
