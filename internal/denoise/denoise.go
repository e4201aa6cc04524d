package denoise

import "context"

// Enhancer is the external enhancement service. It takes the assembled
// audio and returns the cleaned-up artifact bytes. Opaque: nothing here
// knows or cares how the cleanup works.
type Enhancer interface {
	Enhance(ctx context.Context, sessionID string, audio []byte) ([]byte, error)
}
