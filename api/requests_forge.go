package api

import "github.com/xraph/beacon/delivery"

// ---------------------------------------------------------------------------
// Endpoint requests
// ---------------------------------------------------------------------------

// CreateEndpointForgeRequest binds the body for POST /endpoints.
type CreateEndpointForgeRequest struct {
	EndpointBody
}

// ListEndpointsForgeRequest binds query parameters for GET /endpoints.
type ListEndpointsForgeRequest struct {
	Active string `description:"Filter by active flag (true/false)" query:"active"`
	Offset int    `description:"Pagination offset"                  query:"offset"`
	Limit  int    `description:"Page size (default 50)"             query:"limit"`
}

// EndpointForgeRequest binds the path for single-endpoint routes.
type EndpointForgeRequest struct {
	EndpointID string `description:"Endpoint identifier" path:"endpointId"`
}

// UpdateEndpointForgeRequest binds path + body for PUT /endpoints/:endpointId.
type UpdateEndpointForgeRequest struct {
	EndpointID string `description:"Endpoint identifier" path:"endpointId"`
	EndpointPatchBody
}

// ---------------------------------------------------------------------------
// Event and delivery requests
// ---------------------------------------------------------------------------

// TriggerEventForgeRequest binds the body for POST /events.
type TriggerEventForgeRequest struct {
	delivery.TriggerInput
}

// ListEventsForgeRequest binds query parameters for GET /events.
type ListEventsForgeRequest struct {
	Type      string `description:"Filter by event type"       query:"type"`
	Processed string `description:"Filter by processed flag"   query:"processed"`
	Offset    int    `description:"Pagination offset"          query:"offset"`
	Limit     int    `description:"Page size (default 50)"     query:"limit"`
}

// EventForgeRequest binds the path for GET /events/:eventId.
type EventForgeRequest struct {
	EventID string `description:"Event identifier" path:"eventId"`
}

// ListDeliveriesForgeRequest binds query parameters for GET /deliveries.
type ListDeliveriesForgeRequest struct {
	EndpointID string `description:"Filter by endpoint"      query:"endpoint_id"`
	EventID    string `description:"Filter by event"         query:"event_id"`
	State      string `description:"Filter by state"         query:"state"`
	Offset     int    `description:"Pagination offset"       query:"offset"`
	Limit      int    `description:"Page size (default 50)"  query:"limit"`
}

// DeliveryForgeRequest binds the path for single-delivery routes.
type DeliveryForgeRequest struct {
	DeliveryID string `description:"Delivery identifier" path:"deliveryId"`
}

// ProcessRetriesForgeRequest is empty; POST /retries/process has no parameters.
type ProcessRetriesForgeRequest struct{}

// ---------------------------------------------------------------------------
// Workflow and run requests
// ---------------------------------------------------------------------------

// CreateWorkflowForgeRequest binds the body for POST /workflows.
type CreateWorkflowForgeRequest struct {
	WorkflowBody
}

// ListWorkflowsForgeRequest binds query parameters for GET /workflows.
type ListWorkflowsForgeRequest struct {
	Status string `description:"Filter by status"        query:"status"`
	Offset int    `description:"Pagination offset"       query:"offset"`
	Limit  int    `description:"Page size (default 50)"  query:"limit"`
}

// WorkflowForgeRequest binds the path for single-workflow routes.
type WorkflowForgeRequest struct {
	WorkflowID string `description:"Workflow identifier" path:"workflowId"`
}

// UpdateWorkflowForgeRequest binds path + body for PUT /workflows/:workflowId.
type UpdateWorkflowForgeRequest struct {
	WorkflowID string `description:"Workflow identifier" path:"workflowId"`
	WorkflowBody
}

// TriggerRunForgeRequest binds path + body for POST /workflows/:workflowId/runs.
type TriggerRunForgeRequest struct {
	WorkflowID string `description:"Workflow identifier" path:"workflowId"`
	TriggerRunBody
}

// ListRunsForgeRequest binds query parameters for GET /runs.
type ListRunsForgeRequest struct {
	WorkflowID string `description:"Filter by workflow"      query:"workflow_id"`
	SubjectID  string `description:"Filter by subject"       query:"subject_id"`
	Status     string `description:"Filter by status"        query:"status"`
	Offset     int    `description:"Pagination offset"       query:"offset"`
	Limit      int    `description:"Page size (default 50)"  query:"limit"`
}

// RunForgeRequest binds the path for single-run routes.
type RunForgeRequest struct {
	RunID string `description:"Run identifier" path:"runId"`
}

// ---------------------------------------------------------------------------
// Subject requests
// ---------------------------------------------------------------------------

// PutSubjectForgeRequest binds path + body for PUT /subjects/:subjectId.
type PutSubjectForgeRequest struct {
	SubjectID string `description:"Subject identifier" path:"subjectId"`
	SubjectBody
}

// SubjectForgeRequest binds the path for single-subject routes.
type SubjectForgeRequest struct {
	SubjectID string `description:"Subject identifier" path:"subjectId"`
}

// StatsForgeRequest is empty; GET /stats has no parameters.
type StatsForgeRequest struct{}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
