package vision

import "context"

// DetectResult is the raw vision-model payload handed to the catalog parser.
// Description is free text for the operator; RawResponse carries the
// structured document when the model produced one.
type DetectResult struct {
	Description string `json:"description"`
	RawResponse string `json:"raw_response"`
	Status      string `json:"status"`
}

type Client interface {
	DetectItems(ctx context.Context, image []byte, mimeType string) (*DetectResult, error)
}
