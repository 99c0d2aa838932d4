// Package beacon is an asynchronous delivery and automation engine for
// CRM-style applications.
//
// Beacon is a library, not a service. It covers two paths that share one
// shape: a trigger causes asynchronous work against an external system,
// with partial-failure handling and persisted bookkeeping.
//
//   - Webhook delivery: TriggerEvent records an event and fans it out to
//     every active endpoint subscribed to its type. Each delivery is signed
//     with HMAC-SHA256 when the endpoint has a secret, rate limited per
//     endpoint, and retried with exponential backoff until it succeeds or
//     exhausts its attempts.
//   - Workflow automation: TriggerWorkflow starts a run of a workflow for
//     one subject. Steps execute in order in the run's own goroutine; each
//     writes exactly one step log whether it succeeded, failed or was
//     skipped.
//
// Quick start:
//
//	b, err := beacon.New(
//	    beacon.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Stop(ctx)
//
//	b.RegisterEndpoint(ctx, endpoint.Input{
//	    URL:            "https://example.com/hooks",
//	    EventTypes:     []string{"contact.created"},
//	    GenerateSecret: true,
//	})
//
//	b.TriggerEvent(ctx, delivery.TriggerInput{
//	    Type: "contact.created",
//	    Data: map[string]any{"email": "ada@example.com"},
//	})
package beacon
