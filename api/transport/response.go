package transport

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every agent response.
type Envelope struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  any    `json:"error,omitempty"`
	Meta   any    `json:"meta,omitempty"`
}

func NewSuccess(data, meta any) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Meta: meta}
}

// NewError carries a domain error code and a user-facing message. The
// health check uses data to report which dependency is down.
func NewError(code string, message, data any) Envelope {
	return Envelope{Status: StatusError, Code: code, Error: message, Data: data}
}
