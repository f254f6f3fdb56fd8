package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
)

// Verifier delegates authorization decisions to an external verifier service
// speaking a small JSON protocol:
//
//	POST {base}/v1/authorizations/resources  -- single yes/no check
//	POST {base}/v1/authorizations/queries    -- batched check
//
// Transient transport failures are retried with exponential backoff; denials
// are never retried.
type Verifier struct {
	base    string
	client  *http.Client
	backoff func() backoff.BackOff
}

var _ auth.Verifier = &Verifier{}

type Option func(*Verifier) *Verifier

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Verifier) *Verifier {
		v.client = client
		return v
	}
}

// WithBackOff replaces the retry policy for transport errors.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(v *Verifier) *Verifier {
		v.backoff = factory
		return v
	}
}

func New(baseURL string, options ...Option) *Verifier {
	v := &Verifier{
		base:   baseURL,
		client: &http.Client{},
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
	for _, opt := range options {
		v = opt(v)
	}
	return v
}

type coordinate struct {
	Project string `json:"project"`
	Name    string `json:"name"`
}

type checkRequest struct {
	ResourceKind string     `json:"resource_kind"`
	Action       string     `json:"action"`
	Username     string     `json:"username"`
	Resource     coordinate `json:"resource"`
}

type queryRequest struct {
	ResourceKind string       `json:"resource_kind"`
	Action       string       `json:"action"`
	Username     string       `json:"username"`
	Resources    []coordinate `json:"resources"`
}

type queryResponse struct {
	Allowed []bool `json:"allowed"`
}

func (v *Verifier) CheckResourcePermission(
	ctx context.Context,
	kind domain.ResourceKind,
	coord auth.Coordinate,
	action auth.Action,
	info auth.AuthInfo,
) error {
	return v.check(ctx, checkRequest{
		ResourceKind: string(kind),
		Action:       string(action),
		Username:     info.Username,
		Resource:     coordinate{Project: coord.Project, Name: coord.Name},
	}, info)
}

func (v *Verifier) CheckProjectPermission(
	ctx context.Context, project string, action auth.Action, info auth.AuthInfo,
) error {
	return v.check(ctx, checkRequest{
		ResourceKind: "project",
		Action:       string(action),
		Username:     info.Username,
		Resource:     coordinate{Project: project, Name: project},
	}, info)
}

func (v *Verifier) check(ctx context.Context, req checkRequest, info auth.AuthInfo) error {
	var status int
	if err := v.roundTrip(ctx, "/v1/authorizations/resources", req, info, func(resp *http.Response) error {
		status = resp.StatusCode
		return nil
	}); err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusForbidden:
		return forbidden{
			kind: req.ResourceKind, project: req.Resource.Project,
			name: req.Resource.Name, action: req.Action,
		}
	default:
		return errors.Errorf("authorization verifier answered unexpected status %d", status)
	}
}

func (v *Verifier) QueryPermissions(
	ctx context.Context,
	kind domain.ResourceKind,
	coords []auth.Coordinate,
	action auth.Action,
	info auth.AuthInfo,
) (map[auth.Coordinate]bool, error) {
	if len(coords) == 0 {
		return map[auth.Coordinate]bool{}, nil
	}

	req := queryRequest{
		ResourceKind: string(kind),
		Action:       string(action),
		Username:     info.Username,
		Resources:    make([]coordinate, len(coords)),
	}
	for nth, c := range coords {
		req.Resources[nth] = coordinate{Project: c.Project, Name: c.Name}
	}

	var parsed queryResponse
	if err := v.roundTrip(ctx, "/v1/authorizations/queries", req, info, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("authorization verifier answered unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &parsed)
	}); err != nil {
		return nil, err
	}

	if len(parsed.Allowed) != len(coords) {
		return nil, errors.Errorf(
			"authorization verifier answered %d decisions for %d resources",
			len(parsed.Allowed), len(coords),
		)
	}

	decisions := make(map[auth.Coordinate]bool, len(coords))
	for nth, c := range coords {
		decisions[c] = decisions[c] || parsed.Allowed[nth]
	}
	return decisions, nil
}

// roundTrip POSTs payload and hands the response to consume, retrying
// transport errors with the configured backoff. HTTP statuses are not
// retried; they are decisions, not failures.
func (v *Verifier) roundTrip(
	ctx context.Context,
	path string,
	payload any,
	info auth.AuthInfo,
	consume func(*http.Response) error,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshalling authorization query")
	}

	return backoff.Retry(
		func() error {
			req, err := http.NewRequestWithContext(
				ctx, http.MethodPost, v.base+path, bytes.NewReader(body),
			)
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			if info.Token != "" {
				req.Header.Set("Authorization", "Bearer "+info.Token)
			}

			resp, err := v.client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err // transient: retry
			}
			defer resp.Body.Close()

			if err := consume(resp); err != nil {
				return backoff.Permanent(err)
			}
			return nil
		},
		backoff.WithContext(v.backoff(), ctx),
	)
}

type forbidden struct {
	kind    string
	project string
	name    string
	action  string
}

func (f forbidden) Error() string {
	return fmt.Sprintf(
		"%s on %s %s/%s is not allowed", f.action, f.kind, f.project, f.name,
	)
}

func (f forbidden) Unwrap() error {
	return domain.ErrForbidden
}
