package riot

import (
	"fmt"
	"net/http"
)

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// RequestClass decides what happens when the network stays unreachable after the retry.
type RequestClass int

const (
	// ClassPrerequisite covers identity and history lookups; exhaustion aborts the run.
	ClassPrerequisite RequestClass = iota
	// ClassDetail covers single match detail fetches; exhaustion skips that match.
	ClassDetail
)

func (c RequestClass) String() string {
	if c == ClassDetail {
		return "detail"
	}
	return "prerequisite"
}

// OutcomeKind tags a FetchOutcome. Callers switch on it.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	// OutcomeRejected means a response arrived with a non-200 status.
	OutcomeRejected
	// OutcomeSkip means a detail request never got a response.
	OutcomeSkip
	// OutcomeFatal means a prerequisite request never got a response.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSkip:
		return "skip"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Rejection categorizes non-200 responses for logging.
type Rejection string

const (
	RejectNotFound    Rejection = "not_found"
	RejectForbidden   Rejection = "forbidden"
	RejectRateLimited Rejection = "rate_limited"
	RejectOther       Rejection = "other"
)

// CategorizeStatus maps an HTTP status onto a Rejection.
func CategorizeStatus(status int) Rejection {
	switch status {
	case http.StatusNotFound:
		return RejectNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return RejectForbidden
	case http.StatusTooManyRequests:
		return RejectRateLimited
	default:
		return RejectOther
	}
}

// Describe returns the operator-facing explanation of a rejection.
func (r Rejection) Describe() string {
	switch r {
	case RejectNotFound:
		return "not found"
	case RejectForbidden:
		return "invalid or expired API key"
	case RejectRateLimited:
		return "rate limited, slow down requests"
	default:
		return "unexpected response"
	}
}

// FetchOutcome is the result of one Fetch call.
type FetchOutcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       []byte
	Rejection  Rejection
	// Err holds the last transport error for OutcomeSkip and OutcomeFatal.
	Err error
}

// OK reports whether a 200 response was received.
func (o FetchOutcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Snippet returns a short prefix of the body for log lines.
func (o FetchOutcome) Snippet() string {
	const max = 200
	if len(o.Body) <= max {
		return string(o.Body)
	}
	return string(o.Body[:max]) + "..."
}
