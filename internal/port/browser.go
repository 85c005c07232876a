package port

import "context"

// ScreenshotCapturer abstracts an optional browser-automation capability.
// Used only by the multi-agent workflow's capture stage; a nil capturer
// disables the stage entirely.
type ScreenshotCapturer interface {
	// Initialize opens a browser session pointed at the given URL.
	Initialize(ctx context.Context, url string) error

	// Screenshot captures the current page as image bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Cleanup releases the browser session.
	Cleanup(ctx context.Context) error
}
