package endpoint

import "time"

// Input is the creation payload for endpoints. Zero values take the
// service defaults.
type Input struct {
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Method      string            `json:"method,omitempty"`
	Secret      string            `json:"secret,omitempty"`
	EventTypes  []string          `json:"event_types"`
	Filters     map[string]any    `json:"filters,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	MaxAttempts int               `json:"max_attempts,omitempty"`
	BackoffBase time.Duration     `json:"backoff_base,omitempty"`

	RateLimitPerMinute int               `json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`

	// GenerateSecret creates a random signing secret when Secret is empty.
	GenerateSecret bool `json:"generate_secret,omitempty"`

	// Inactive registers the endpoint without receiving deliveries.
	Inactive bool `json:"inactive,omitempty"`
}

// Update is a partial modification. Nil fields are left unchanged.
type Update struct {
	URL                *string           `json:"url,omitempty"`
	Description        *string           `json:"description,omitempty"`
	Method             *string           `json:"method,omitempty"`
	EventTypes         []string          `json:"event_types,omitempty"`
	Filters            map[string]any    `json:"filters,omitempty"`
	Headers            map[string]string `json:"headers,omitempty"`
	Timeout            *time.Duration    `json:"timeout,omitempty"`
	MaxAttempts        *int              `json:"max_attempts,omitempty"`
	BackoffBase        *time.Duration    `json:"backoff_base,omitempty"`
	RateLimitPerMinute *int              `json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for endpoint listing.
type ListOpts struct {
	Offset int
	Limit  int
	Active *bool
}

// Defaults are applied to Input fields left at their zero value.
type Defaults struct {
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultDefaults returns the built-in target defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Minute,
	}
}
