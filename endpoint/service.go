package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/signature"
)

const (
	maxAttemptsLimit = 20
	maxTimeout       = 5 * time.Minute
)

// Service provides endpoint management operations. Definitions are
// validated here, before any delivery references them.
type Service struct {
	store    Store
	open     OpenDeliveries
	defaults Defaults
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaults sets the values applied to zero Input fields.
func WithDefaults(d Defaults) ServiceOption {
	return func(s *Service) { s.defaults = d }
}

// WithOpenDeliveries enables the "no delete while referenced" guard.
func WithOpenDeliveries(o OpenDeliveries) ServiceOption {
	return func(s *Service) { s.open = o }
}

// NewService creates a new endpoint service.
func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		store:    store,
		defaults: DefaultDefaults(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create validates and registers a new endpoint.
func (svc *Service) Create(ctx context.Context, in Input) (*Endpoint, error) {
	ep := &Endpoint{
		Entity:             entity.New(),
		ID:                 id.NewEndpointID(),
		URL:                strings.TrimSpace(in.URL),
		Description:        in.Description,
		Method:             strings.ToUpper(in.Method),
		Secret:             in.Secret,
		EventTypes:         in.EventTypes,
		Filters:            in.Filters,
		Headers:            in.Headers,
		Timeout:            in.Timeout,
		MaxAttempts:        in.MaxAttempts,
		BackoffBase:        in.BackoffBase,
		RateLimitPerMinute: in.RateLimitPerMinute,
		Active:             !in.Inactive,
		Metadata:           in.Metadata,
	}
	if ep.Method == "" {
		ep.Method = http.MethodPost
	}
	if ep.Timeout == 0 {
		ep.Timeout = svc.defaults.Timeout
	}
	if ep.MaxAttempts == 0 {
		ep.MaxAttempts = svc.defaults.MaxAttempts
	}
	if ep.BackoffBase == 0 {
		ep.BackoffBase = svc.defaults.BackoffBase
	}
	if ep.Secret == "" && in.GenerateSecret {
		ep.Secret = signature.GenerateSecret()
	}

	if err := Validate(ep); err != nil {
		return nil, err
	}
	if len(ep.EventTypes) == 0 {
		svc.logger.WarnContext(ctx, "endpoint subscribes to no event types and will receive nothing",
			"endpoint_id", ep.ID,
		)
	}

	if err := svc.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, fmt.Errorf("beacon: create endpoint: %w", err)
	}

	svc.logger.InfoContext(ctx, "endpoint registered",
		"endpoint_id", ep.ID,
		"url", ep.URL,
		"event_types", ep.EventTypes,
	)
	return ep, nil
}

// Get returns an endpoint by ID.
func (svc *Service) Get(ctx context.Context, epID id.ID) (*Endpoint, error) {
	return svc.store.GetEndpoint(ctx, epID)
}

// Update applies a partial modification and revalidates the result.
func (svc *Service) Update(ctx context.Context, epID id.ID, in Update) (*Endpoint, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return nil, err
	}

	if in.URL != nil {
		ep.URL = strings.TrimSpace(*in.URL)
	}
	if in.Description != nil {
		ep.Description = *in.Description
	}
	if in.Method != nil {
		ep.Method = strings.ToUpper(*in.Method)
	}
	if in.EventTypes != nil {
		ep.EventTypes = in.EventTypes
	}
	if in.Filters != nil {
		ep.Filters = in.Filters
	}
	if in.Headers != nil {
		ep.Headers = in.Headers
	}
	if in.Timeout != nil {
		ep.Timeout = *in.Timeout
	}
	if in.MaxAttempts != nil {
		ep.MaxAttempts = *in.MaxAttempts
	}
	if in.BackoffBase != nil {
		ep.BackoffBase = *in.BackoffBase
	}
	if in.RateLimitPerMinute != nil {
		ep.RateLimitPerMinute = *in.RateLimitPerMinute
	}
	if in.Metadata != nil {
		ep.Metadata = in.Metadata
	}

	if err := Validate(ep); err != nil {
		return nil, err
	}

	ep.Touch(time.Now())
	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, fmt.Errorf("beacon: update endpoint: %w", err)
	}
	return ep, nil
}

// Delete removes an endpoint. It fails with ErrEndpointInUse while any
// delivery to it is pending, processing or waiting for a retry.
func (svc *Service) Delete(ctx context.Context, epID id.ID) error {
	if svc.open != nil {
		n, err := svc.open.CountOpenDeliveries(ctx, epID)
		if err != nil {
			return fmt.Errorf("beacon: count open deliveries: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d open", errs.ErrEndpointInUse, n)
		}
	}
	return svc.store.DeleteEndpoint(ctx, epID)
}

// List returns endpoints.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Endpoint, error) {
	return svc.store.ListEndpoints(ctx, opts)
}

// SetActive activates or deactivates an endpoint.
func (svc *Service) SetActive(ctx context.Context, epID id.ID, active bool) error {
	if err := svc.store.SetActive(ctx, epID, active); err != nil {
		return err
	}
	svc.logger.InfoContext(ctx, "endpoint active flag changed",
		"endpoint_id", epID,
		"active", active,
	)
	return nil
}

// RotateSecret replaces the signing secret and returns the new one.
func (svc *Service) RotateSecret(ctx context.Context, epID id.ID) (string, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return "", err
	}

	ep.Secret = signature.GenerateSecret()
	ep.Touch(time.Now())
	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return "", fmt.Errorf("beacon: rotate secret: %w", err)
	}
	return ep.Secret, nil
}

// Validate checks an endpoint definition.
func Validate(ep *Endpoint) error {
	u, err := url.ParseRequestURI(ep.URL)
	if err != nil || u.Host == "" {
		return errs.Invalid("url", "must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errs.Invalid("url", "scheme %q is not http or https", u.Scheme)
	}

	switch ep.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return errs.Invalid("method", "%q is not one of POST, PUT, PATCH", ep.Method)
	}

	seen := make(map[string]struct{}, len(ep.EventTypes))
	for _, t := range ep.EventTypes {
		if strings.TrimSpace(t) == "" {
			return errs.Invalid("event_types", "event type must not be empty")
		}
		if _, dup := seen[t]; dup {
			return errs.Invalid("event_types", "duplicate event type %q", t)
		}
		seen[t] = struct{}{}
	}

	for k := range ep.Filters {
		if strings.TrimSpace(k) == "" {
			return errs.Invalid("filters", "filter key must not be empty")
		}
	}
	for k := range ep.Headers {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, " :\r\n") {
			return errs.Invalid("headers", "invalid header name %q", k)
		}
	}

	if ep.Timeout <= 0 || ep.Timeout > maxTimeout {
		return errs.Invalid("timeout", "must be between 0 and %s", maxTimeout)
	}
	if ep.MaxAttempts < 1 || ep.MaxAttempts > maxAttemptsLimit {
		return errs.Invalid("max_attempts", "must be between 1 and %d", maxAttemptsLimit)
	}
	if ep.BackoffBase <= 0 {
		return errs.Invalid("backoff_base", "must be positive")
	}
	if ep.RateLimitPerMinute < 0 {
		return errs.Invalid("rate_limit_per_minute", "must not be negative")
	}
	return nil
}
