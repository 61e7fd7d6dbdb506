package client

import "context"

// VisionClient sends one image plus a prompt to a vision-language model and
// returns the raw text reply.
type VisionClient interface {
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
