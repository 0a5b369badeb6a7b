package riot

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// statusEndpoint is the cheapest platform call that still requires a key.
	statusEndpoint = "/lol/status/v4/platform-data"

	defaultPreflightTimeout = 10 * time.Second
)

// ErrInvalidKey is returned by Preflight when the platform rejects the key.
var ErrInvalidKey = errors.New("riot API key is invalid or expired")

// KeyStatus is what one status request says about a key.
type KeyStatus int

const (
	KeyUnknown KeyStatus = iota
	KeyAccepted
	KeyRejected
)

func (s KeyStatus) String() string {
	switch s {
	case KeyAccepted:
		return "accepted"
	case KeyRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// KeyValidator checks a key against the platform status endpoint before a run
// spends its rate budget.
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
}

type KeyValidatorOption func(*KeyValidator)

// WithBaseURL points the validator at a platform host (or a test server).
func WithBaseURL(url string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = url
	}
}

func WithTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

func NewKeyValidator(opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{Timeout: defaultPreflightTimeout},
		baseURL:    na1BaseURL,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check makes one status request. A 200 is KeyAccepted and a 401/403 is KeyRejected.
// Anything else, including a transport failure, is KeyUnknown with an error.
func (v *KeyValidator) Check(ctx context.Context, apiKey string) (KeyStatus, error) {
	if apiKey == "" {
		return KeyRejected, errors.New("API key cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+statusEndpoint, nil)
	if err != nil {
		return KeyUnknown, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-Riot-Token", apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return KeyUnknown, errors.Wrap(err, "status request failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return KeyAccepted, nil
	}
	if CategorizeStatus(resp.StatusCode) == RejectForbidden {
		return KeyRejected, nil
	}
	return KeyUnknown, errors.Newf("unexpected status code: %d", resp.StatusCode)
}

// Preflight returns ErrInvalidKey when the key is definitely rejected, nil when it
// is accepted, and the underlying error when the check was inconclusive.
func (v *KeyValidator) Preflight(ctx context.Context, apiKey string) error {
	status, err := v.Check(ctx, apiKey)
	switch {
	case status == KeyRejected:
		if err != nil {
			return errors.Mark(err, ErrInvalidKey)
		}
		return ErrInvalidKey
	case err != nil:
		return err
	default:
		return nil
	}
}
