package fetch

import "time"

// Status classifies the outcome of fetching one URL. Failures are recorded
// here instead of being returned as errors so a bad source never aborts the
// surrounding run.
type Status string

const (
	StatusOK        Status = "ok"
	StatusTimeout   Status = "timeout"
	StatusHTTPError Status = "http-error"
	StatusBlocked   Status = "blocked"
)

// Document is the result of fetching one URL. Body and ContentType are only
// meaningful when Status is StatusOK. HTTPStatus is zero when the request
// never reached the HTTP exchange. Err carries a short diagnostic for logs
// and the run trace.
type Document struct {
	URL         string
	Body        []byte
	ContentType string
	Status      Status
	HTTPStatus  int
	FetchedAt   time.Time
	Err         string
}

// OK reports whether the document carries usable content.
func (d Document) OK() bool {
	return d.Status == StatusOK
}
