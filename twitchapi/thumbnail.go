package twitchapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

const (
	defaultThumbnailWidth  = 1920
	defaultThumbnailHeight = 1080

	// Preview images top out around a few hundred KB; anything past this is
	// not a thumbnail.
	maxThumbnailBytes = 8 << 20
)

// semaphore limits concurrent thumbnail downloads separately from metadata
// calls. Image fetches are larger and slower and must not starve polling.
type semaphore struct {
	once  sync.Once
	slots chan struct{}
	size  int
}

func (s *semaphore) init(n int) {
	if n > 0 {
		s.size = n
	}
}

func (s *semaphore) lazy() chan struct{} {
	s.once.Do(func() {
		n := s.size
		if n <= 0 {
			n = 2
		}
		s.slots = make(chan struct{}, n)
	})
	return s.slots
}

// acquire blocks until a slot is available or ctx is canceled.
func (s *semaphore) acquire(ctx context.Context) bool {
	select {
	case s.lazy() <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *semaphore) release() {
	select {
	case <-s.lazy():
	default:
	}
}

// GetThumbnail substitutes width/height into the stream's thumbnail URL
// template and downloads the image in full. The caller gets complete bytes or
// an error, never a partial read: the notification layer attaches the image
// as a single payload.
func (c *Client) GetThumbnail(ctx context.Context, s *Stream, width, height int) ([]byte, error) {
	if s == nil || s.ThumbnailURL == "" {
		return nil, fmt.Errorf("stream has no thumbnail url")
	}
	if width <= 0 {
		width = defaultThumbnailWidth
	}
	if height <= 0 {
		height = defaultThumbnailHeight
	}
	u := strings.NewReplacer(
		"{width}", strconv.Itoa(width),
		"{height}", strconv.Itoa(height),
	).Replace(s.ThumbnailURL)

	if !c.thumbnails.acquire(ctx) {
		return nil, &TransportError{Op: "thumbnail slot", Err: ctx.Err()}
	}
	defer c.thumbnails.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, &TransportError{Op: "get thumbnail", Err: err}
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	img, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return nil, &TransportError{Op: "read thumbnail", Err: err}
	}
	return img, nil
}
