package wstransport

// Frame operations. Requests and cancels flow client to server; results
// flow back tagged with the request id.
const (
	OpMutate      = "mutate"
	OpQuery       = "query"
	OpWatch       = "watch"
	OpCancelQuery = "cancel_query"
	OpCancelWatch = "cancel_watch"
	OpResult      = "result"
)

// Frame is the JSON message exchanged over the socket. Payload carries the
// encoded request or result, or the failure detail of an error result.
type Frame struct {
	Op      string `json:"op"`
	ID      string `json:"id"`
	Status  string `json:"status,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}
