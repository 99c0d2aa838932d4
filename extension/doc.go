// Package extension mounts Beacon into a host application.
//
// The extension:
//   - Builds the Beacon engine over a configured store
//   - Runs database migrations on Init unless disabled
//   - Mounts the admin API under a configurable prefix, either on a Forge
//     router with OpenAPI metadata or as a plain http.Handler
//   - Starts the retry sweeper and resumes interrupted runs on Start
//   - Stops the engine gracefully on Stop
//   - Reports health via store.Ping
//
// Usage:
//
//	ext := extension.New(
//	    extension.WithStore(postgresStore),
//	    extension.WithBasePath("/beacon"),
//	)
//	if err := ext.Init(ctx); err != nil {
//	    return err
//	}
//	ext.RegisterRoutes(router, log)
//	ext.Start(ctx)
//	defer ext.Stop(ctx)
package extension
