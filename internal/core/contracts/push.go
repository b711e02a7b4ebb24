package contracts

import (
	"context"
	"time"
)

// PushAction is a suggested client-side action attached to a push.
type PushAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

type PushMetadata struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Critical  bool      `json:"critical"`
}

// PushPayload is the batch request sent to the external push gateway. One
// call covers the whole contractor id set; per-contractor failures inside the
// gateway are the gateway's concern.
type PushPayload struct {
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Priority      string         `json:"priority"`
	Data          map[string]any `json:"data"`
	ContractorIDs []string       `json:"contractorIds"`
	Actions       []PushAction   `json:"actions,omitempty"`
	Metadata      PushMetadata   `json:"metadata"`
}

// PushGateway delivers notifications to contractors regardless of their live
// connection state.
type PushGateway interface {
	Send(ctx context.Context, payload PushPayload) error
}
