package api

import (
	"net/http"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/automation"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// ForgeAPI wires all Forge-style HTTP handlers together.
type ForgeAPI struct {
	beacon *beacon.Beacon
	log    forge.Logger
}

// NewForgeAPI creates a ForgeAPI over a Beacon instance.
func NewForgeAPI(b *beacon.Beacon, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{beacon: b, log: log}
}

// RegisterRoutes registers all Beacon admin API routes into the given Forge
// router with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerEndpointRoutes(router)
	a.registerEventRoutes(router)
	a.registerDeliveryRoutes(router)
	a.registerWorkflowRoutes(router)
	a.registerRunRoutes(router)
	a.registerSubjectRoutes(router)
	a.registerStatsRoutes(router)
}

// ---------------------------------------------------------------------------
// Endpoint routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEndpointRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("endpoints"))

	if err := g.POST("/endpoints", a.createEndpoint,
		forge.WithSummary("Create endpoint"),
		forge.WithDescription("Registers a delivery target that receives signed event payloads."),
		forge.WithOperationID("createEndpoint"),
		forge.WithRequestSchema(CreateEndpointForgeRequest{}),
		forge.WithCreatedResponse(endpoint.Endpoint{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createEndpoint route", forge.Error(err))
	}

	if err := g.GET("/endpoints", a.listEndpoints,
		forge.WithSummary("List endpoints"),
		forge.WithDescription("Returns a paginated list of delivery targets."),
		forge.WithOperationID("listEndpoints"),
		forge.WithRequestSchema(ListEndpointsForgeRequest{}),
		forge.WithListResponse(endpoint.Endpoint{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEndpoints route", forge.Error(err))
	}

	if err := g.GET("/endpoints/:endpointId", a.getEndpoint,
		forge.WithSummary("Get endpoint"),
		forge.WithDescription("Returns a delivery target with its counters."),
		forge.WithOperationID("getEndpoint"),
		forge.WithResponseSchema(http.StatusOK, "Endpoint details", endpoint.Endpoint{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getEndpoint route", forge.Error(err))
	}

	if err := g.PUT("/endpoints/:endpointId", a.updateEndpoint,
		forge.WithSummary("Update endpoint"),
		forge.WithDescription("Applies a partial update to a delivery target."),
		forge.WithOperationID("updateEndpoint"),
		forge.WithRequestSchema(UpdateEndpointForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated endpoint", endpoint.Endpoint{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register updateEndpoint route", forge.Error(err))
	}

	if err := g.DELETE("/endpoints/:endpointId", a.deleteEndpoint,
		forge.WithSummary("Delete endpoint"),
		forge.WithDescription("Deletes a delivery target that has no open deliveries."),
		forge.WithOperationID("deleteEndpoint"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteEndpoint route", forge.Error(err))
	}

	if err := g.PATCH("/endpoints/:endpointId/enable", a.enableEndpoint,
		forge.WithSummary("Enable endpoint"),
		forge.WithDescription("Re-activates a delivery target."),
		forge.WithOperationID("enableEndpoint"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register enableEndpoint route", forge.Error(err))
	}

	if err := g.PATCH("/endpoints/:endpointId/disable", a.disableEndpoint,
		forge.WithSummary("Disable endpoint"),
		forge.WithDescription("Deactivates a delivery target. Pending retries to it end up disabled."),
		forge.WithOperationID("disableEndpoint"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register disableEndpoint route", forge.Error(err))
	}

	if err := g.POST("/endpoints/:endpointId/rotate-secret", a.rotateSecret,
		forge.WithSummary("Rotate secret"),
		forge.WithDescription("Generates a new signing secret for the endpoint."),
		forge.WithOperationID("rotateEndpointSecret"),
		forge.WithResponseSchema(http.StatusOK, "New signing secret", SecretResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register rotateSecret route", forge.Error(err))
	}
}

func (a *ForgeAPI) createEndpoint(ctx forge.Context, req *CreateEndpointForgeRequest) (*endpoint.Endpoint, error) {
	in, err := req.Input()
	if err != nil {
		return nil, mapError(err)
	}

	ep, err := a.beacon.RegisterEndpoint(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}

	if err := ctx.JSON(http.StatusCreated, ep); err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listEndpoints(ctx forge.Context, req *ListEndpointsForgeRequest) ([]*endpoint.Endpoint, error) {
	opts := endpoint.ListOpts{
		Offset: req.Offset,
		Limit:  limitOrDefault(req.Limit),
		Active: parseBool(req.Active),
	}

	eps, err := a.beacon.Endpoints().List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return eps, nil
}

func (a *ForgeAPI) getEndpoint(ctx forge.Context, req *EndpointForgeRequest) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	ep, err := a.beacon.Endpoints().Get(ctx.Context(), epID)
	if err != nil {
		return nil, mapError(err)
	}

	return ep, nil
}

func (a *ForgeAPI) updateEndpoint(ctx forge.Context, req *UpdateEndpointForgeRequest) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}
	up, err := req.Update()
	if err != nil {
		return nil, mapError(err)
	}

	ep, err := a.beacon.UpdateEndpoint(ctx.Context(), epID, up)
	if err != nil {
		return nil, mapError(err)
	}

	return ep, nil
}

func (a *ForgeAPI) deleteEndpoint(ctx forge.Context, req *EndpointForgeRequest) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	if err := a.beacon.DeleteEndpoint(ctx.Context(), epID); err != nil {
		return nil, mapError(err)
	}

	if err := ctx.NoContent(http.StatusNoContent); err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) enableEndpoint(ctx forge.Context, req *EndpointForgeRequest) (*endpoint.Endpoint, error) {
	return a.setEndpointActive(ctx, req, true)
}

func (a *ForgeAPI) disableEndpoint(ctx forge.Context, req *EndpointForgeRequest) (*endpoint.Endpoint, error) {
	return a.setEndpointActive(ctx, req, false)
}

func (a *ForgeAPI) setEndpointActive(ctx forge.Context, req *EndpointForgeRequest, active bool) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	if active {
		err = a.beacon.ActivateEndpoint(ctx.Context(), epID)
	} else {
		err = a.beacon.DeactivateEndpoint(ctx.Context(), epID)
	}
	if err != nil {
		return nil, mapError(err)
	}

	if err := ctx.NoContent(http.StatusNoContent); err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) rotateSecret(ctx forge.Context, req *EndpointForgeRequest) (*SecretResponse, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	secret, err := a.beacon.RotateSecret(ctx.Context(), epID)
	if err != nil {
		return nil, mapError(err)
	}

	return &SecretResponse{Secret: secret}, nil
}

// ---------------------------------------------------------------------------
// Event routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEventRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("events"))

	if err := g.POST("/events", a.triggerEvent,
		forge.WithSummary("Trigger event"),
		forge.WithDescription("Records an event, delivers it to matching endpoints and starts event-triggered workflows."),
		forge.WithOperationID("triggerEvent"),
		forge.WithRequestSchema(TriggerEventForgeRequest{}),
		forge.WithCreatedResponse(beacon.EventResult{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register triggerEvent route", forge.Error(err))
	}

	if err := g.GET("/events", a.listEvents,
		forge.WithSummary("List events"),
		forge.WithDescription("Returns events, newest first."),
		forge.WithOperationID("listEvents"),
		forge.WithRequestSchema(ListEventsForgeRequest{}),
		forge.WithListResponse(event.Event{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEvents route", forge.Error(err))
	}

	if err := g.GET("/events/:eventId", a.getEvent,
		forge.WithSummary("Get event"),
		forge.WithDescription("Returns an event with its delivery totals."),
		forge.WithOperationID("getEvent"),
		forge.WithResponseSchema(http.StatusOK, "Event details", event.Event{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getEvent route", forge.Error(err))
	}
}

func (a *ForgeAPI) triggerEvent(ctx forge.Context, req *TriggerEventForgeRequest) (*beacon.EventResult, error) {
	res, err := a.beacon.TriggerEvent(ctx.Context(), req.TriggerInput)
	if err != nil {
		return nil, mapError(err)
	}
	if res.Duplicate {
		return res, nil
	}

	if err := ctx.JSON(http.StatusCreated, res); err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listEvents(ctx forge.Context, req *ListEventsForgeRequest) ([]*event.Event, error) {
	opts := event.ListOpts{
		Offset:    req.Offset,
		Limit:     limitOrDefault(req.Limit),
		Type:      req.Type,
		Processed: parseBool(req.Processed),
	}

	events, err := a.beacon.Store().ListEvents(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return events, nil
}

func (a *ForgeAPI) getEvent(ctx forge.Context, req *EventForgeRequest) (*event.Event, error) {
	evtID, err := id.ParseEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid event ID")
	}

	evt, err := a.beacon.Store().GetEvent(ctx.Context(), evtID)
	if err != nil {
		return nil, mapError(err)
	}

	return evt, nil
}

// ---------------------------------------------------------------------------
// Delivery routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerDeliveryRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("deliveries"))

	if err := g.GET("/deliveries", a.listDeliveries,
		forge.WithSummary("List deliveries"),
		forge.WithDescription("Returns deliveries, optionally filtered by endpoint, event or state."),
		forge.WithOperationID("listDeliveries"),
		forge.WithRequestSchema(ListDeliveriesForgeRequest{}),
		forge.WithListResponse(delivery.Delivery{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listDeliveries route", forge.Error(err))
	}

	if err := g.GET("/deliveries/:deliveryId", a.getDelivery,
		forge.WithSummary("Get delivery"),
		forge.WithDescription("Returns a delivery with its latest request and response."),
		forge.WithOperationID("getDelivery"),
		forge.WithResponseSchema(http.StatusOK, "Delivery details", delivery.Delivery{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getDelivery route", forge.Error(err))
	}

	if err := g.GET("/deliveries/:deliveryId/attempts", a.listAttempts,
		forge.WithSummary("List attempts"),
		forge.WithDescription("Returns every attempt of a delivery, oldest first."),
		forge.WithOperationID("listDeliveryAttempts"),
		forge.WithListResponse(delivery.Attempt{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listAttempts route", forge.Error(err))
	}

	if err := g.POST("/deliveries/:deliveryId/redeliver", a.redeliver,
		forge.WithSummary("Redeliver"),
		forge.WithDescription("Starts a failed delivery over with a fresh attempt budget."),
		forge.WithOperationID("redeliver"),
		forge.WithCreatedResponse(delivery.Delivery{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register redeliver route", forge.Error(err))
	}

	if err := g.POST("/retries/process", a.processRetries,
		forge.WithSummary("Process retries"),
		forge.WithDescription("Runs one sweep of due retries immediately."),
		forge.WithOperationID("processRetries"),
		forge.WithResponseSchema(http.StatusOK, "Sweep result", RetriesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register processRetries route", forge.Error(err))
	}
}

func (a *ForgeAPI) listDeliveries(ctx forge.Context, req *ListDeliveriesForgeRequest) ([]*delivery.Delivery, error) {
	opts := delivery.ListOpts{
		Offset: req.Offset,
		Limit:  limitOrDefault(req.Limit),
		State:  delivery.State(req.State),
	}
	if req.EndpointID != "" {
		epID, err := id.ParseEndpointID(req.EndpointID)
		if err != nil {
			return nil, forge.BadRequest("invalid endpoint ID")
		}
		opts.EndpointID = epID
	}
	if req.EventID != "" {
		evtID, err := id.ParseEventID(req.EventID)
		if err != nil {
			return nil, forge.BadRequest("invalid event ID")
		}
		opts.EventID = evtID
	}

	ds, err := a.beacon.Store().ListDeliveries(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return ds, nil
}

func (a *ForgeAPI) getDelivery(ctx forge.Context, req *DeliveryForgeRequest) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(req.DeliveryID)
	if err != nil {
		return nil, forge.BadRequest("invalid delivery ID")
	}

	d, err := a.beacon.Store().GetDelivery(ctx.Context(), delID)
	if err != nil {
		return nil, mapError(err)
	}

	return d, nil
}

func (a *ForgeAPI) listAttempts(ctx forge.Context, req *DeliveryForgeRequest) ([]*delivery.Attempt, error) {
	delID, err := id.ParseDeliveryID(req.DeliveryID)
	if err != nil {
		return nil, forge.BadRequest("invalid delivery ID")
	}

	if _, err := a.beacon.Store().GetDelivery(ctx.Context(), delID); err != nil {
		return nil, mapError(err)
	}
	attempts, err := a.beacon.Store().ListAttempts(ctx.Context(), delID)
	if err != nil {
		return nil, mapError(err)
	}

	return attempts, nil
}

func (a *ForgeAPI) redeliver(ctx forge.Context, req *DeliveryForgeRequest) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(req.DeliveryID)
	if err != nil {
		return nil, forge.BadRequest("invalid delivery ID")
	}

	d, err := a.beacon.Redeliver(ctx.Context(), delID)
	if err != nil {
		return nil, mapError(err)
	}

	if err := ctx.JSON(http.StatusCreated, d); err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) processRetries(ctx forge.Context, _ *ProcessRetriesForgeRequest) (*RetriesResponse, error) {
	n, err := a.beacon.ProcessRetries(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return &RetriesResponse{Attempted: n}, nil
}

// ---------------------------------------------------------------------------
// Workflow routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerWorkflowRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("workflows"))

	if err := g.POST("/workflows", a.createWorkflow,
		forge.WithSummary("Create workflow"),
		forge.WithDescription("Validates a workflow definition and stores it as a draft."),
		forge.WithOperationID("createWorkflow"),
		forge.WithRequestSchema(CreateWorkflowForgeRequest{}),
		forge.WithCreatedResponse(workflow.Workflow{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createWorkflow route", forge.Error(err))
	}

	if err := g.GET("/workflows", a.listWorkflows,
		forge.WithSummary("List workflows"),
		forge.WithDescription("Returns workflows, optionally filtered by status."),
		forge.WithOperationID("listWorkflows"),
		forge.WithRequestSchema(ListWorkflowsForgeRequest{}),
		forge.WithListResponse(workflow.Workflow{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listWorkflows route", forge.Error(err))
	}

	if err := g.GET("/workflows/:workflowId", a.getWorkflow,
		forge.WithSummary("Get workflow"),
		forge.WithDescription("Returns a workflow with its run metrics."),
		forge.WithOperationID("getWorkflow"),
		forge.WithResponseSchema(http.StatusOK, "Workflow details", workflow.Workflow{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getWorkflow route", forge.Error(err))
	}

	if err := g.PUT("/workflows/:workflowId", a.updateWorkflow,
		forge.WithSummary("Update workflow"),
		forge.WithDescription("Replaces the definition of a draft or paused workflow."),
		forge.WithOperationID("updateWorkflow"),
		forge.WithRequestSchema(UpdateWorkflowForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated workflow", workflow.Workflow{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register updateWorkflow route", forge.Error(err))
	}

	transitions := []struct {
		path, op, summary string
		fn                func(forge.Context, *WorkflowForgeRequest) (*workflow.Workflow, error)
	}{
		{"/workflows/:workflowId/start", "startWorkflow", "Start workflow", a.startWorkflow},
		{"/workflows/:workflowId/pause", "pauseWorkflow", "Pause workflow", a.pauseWorkflow},
		{"/workflows/:workflowId/complete", "completeWorkflow", "Complete workflow", a.completeWorkflow},
	}
	for _, tr := range transitions {
		if err := g.POST(tr.path, tr.fn,
			forge.WithSummary(tr.summary),
			forge.WithDescription("Moves the workflow through its lifecycle."),
			forge.WithOperationID(tr.op),
			forge.WithResponseSchema(http.StatusOK, "Workflow after the transition", workflow.Workflow{}),
			forge.WithErrorResponses(),
		); err != nil {
			a.log.Error("Failed to register "+tr.op+" route", forge.Error(err))
		}
	}

	if err := g.POST("/workflows/:workflowId/runs", a.triggerWorkflow,
		forge.WithSummary("Trigger workflow"),
		forge.WithDescription("Starts a run of an active workflow for one subject."),
		forge.WithOperationID("triggerWorkflow"),
		forge.WithRequestSchema(TriggerRunForgeRequest{}),
		forge.WithResponseSchema(http.StatusAccepted, "Trigger result", automation.TriggerResult{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register triggerWorkflow route", forge.Error(err))
	}
}

func (a *ForgeAPI) createWorkflow(ctx forge.Context, req *CreateWorkflowForgeRequest) (*workflow.Workflow, error) {
	in, err := req.Input()
	if err != nil {
		return nil, mapError(err)
	}

	wf, err := a.beacon.CreateWorkflow(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}

	if err := ctx.JSON(http.StatusCreated, wf); err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listWorkflows(ctx forge.Context, req *ListWorkflowsForgeRequest) ([]*workflow.Workflow, error) {
	opts := workflow.ListOpts{
		Offset: req.Offset,
		Limit:  limitOrDefault(req.Limit),
		Status: workflow.Status(req.Status),
	}

	wfs, err := a.beacon.Workflows().List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return wfs, nil
}

func (a *ForgeAPI) getWorkflow(ctx forge.Context, req *WorkflowForgeRequest) (*workflow.Workflow, error) {
	wfID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return nil, forge.BadRequest("invalid workflow ID")
	}

	wf, err := a.beacon.Workflows().Get(ctx.Context(), wfID)
	if err != nil {
		return nil, mapError(err)
	}

	return wf, nil
}

func (a *ForgeAPI) updateWorkflow(ctx forge.Context, req *UpdateWorkflowForgeRequest) (*workflow.Workflow, error) {
	wfID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return nil, forge.BadRequest("invalid workflow ID")
	}
	in, err := req.Input()
	if err != nil {
		return nil, mapError(err)
	}

	wf, err := a.beacon.Workflows().Update(ctx.Context(), wfID, in)
	if err != nil {
		return nil, mapError(err)
	}

	return wf, nil
}

func (a *ForgeAPI) startWorkflow(ctx forge.Context, req *WorkflowForgeRequest) (*workflow.Workflow, error) {
	wfID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return nil, forge.BadRequest("invalid workflow ID")
	}
	wf, err := a.beacon.StartWorkflow(ctx.Context(), wfID)
	if err != nil {
		return nil, mapError(err)
	}
	return wf, nil
}

func (a *ForgeAPI) pauseWorkflow(ctx forge.Context, req *WorkflowForgeRequest) (*workflow.Workflow, error) {
	wfID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return nil, forge.BadRequest("invalid workflow ID")
	}
	wf, err := a.beacon.PauseWorkflow(ctx.Context(), wfID)
	if err != nil {
		return nil, mapError(err)
	}
	return wf, nil
}

func (a *ForgeAPI) completeWorkflow(ctx forge.Context, req *WorkflowForgeRequest) (*workflow.Workflow, error) {
	wfID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return nil, forge.BadRequest("invalid workflow ID")
	}
	wf, err := a.beacon.CompleteWorkflow(ctx.Context(), wfID)
	if err != nil {
		return nil, mapError(err)
	}
	return wf, nil
}

func (a *ForgeAPI) triggerWorkflow(ctx forge.Context, req *TriggerRunForgeRequest) (*automation.TriggerResult, error) {
	wfID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return nil, forge.BadRequest("invalid workflow ID")
	}
	subjID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		return nil, forge.BadRequest("invalid subject ID")
	}

	res, err := a.beacon.TriggerWorkflow(ctx.Context(), wfID, subjID, req.Variables)
	if err != nil {
		return nil, mapError(err)
	}
	if !res.Matched {
		return res, nil
	}

	if err := ctx.JSON(http.StatusAccepted, res); err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Run routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerRunRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("runs"))

	if err := g.GET("/runs", a.listRuns,
		forge.WithSummary("List runs"),
		forge.WithDescription("Returns runs, optionally filtered by workflow, subject or status."),
		forge.WithOperationID("listRuns"),
		forge.WithRequestSchema(ListRunsForgeRequest{}),
		forge.WithListResponse(run.Run{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listRuns route", forge.Error(err))
	}

	if err := g.GET("/runs/:runId", a.getRun,
		forge.WithSummary("Get run"),
		forge.WithDescription("Returns a run with its current step and variables."),
		forge.WithOperationID("getRun"),
		forge.WithResponseSchema(http.StatusOK, "Run details", run.Run{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getRun route", forge.Error(err))
	}

	if err := g.GET("/runs/:runId/steps", a.listStepLogs,
		forge.WithSummary("List step logs"),
		forge.WithDescription("Returns the step logs of a run in execution order."),
		forge.WithOperationID("listStepLogs"),
		forge.WithListResponse(run.StepLog{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listStepLogs route", forge.Error(err))
	}

	if err := g.POST("/runs/:runId/cancel", a.cancelRun,
		forge.WithSummary("Cancel run"),
		forge.WithDescription("Cancels a started run. It stops at its next step boundary."),
		forge.WithOperationID("cancelRun"),
		forge.WithResponseSchema(http.StatusOK, "Cancelled run", run.Run{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register cancelRun route", forge.Error(err))
	}
}

func (a *ForgeAPI) listRuns(ctx forge.Context, req *ListRunsForgeRequest) ([]*run.Run, error) {
	opts := run.ListOpts{
		Offset: req.Offset,
		Limit:  limitOrDefault(req.Limit),
		Status: run.Status(req.Status),
	}
	if req.WorkflowID != "" {
		wfID, err := id.ParseWorkflowID(req.WorkflowID)
		if err != nil {
			return nil, forge.BadRequest("invalid workflow ID")
		}
		opts.WorkflowID = wfID
	}
	if req.SubjectID != "" {
		subjID, err := id.ParseSubjectID(req.SubjectID)
		if err != nil {
			return nil, forge.BadRequest("invalid subject ID")
		}
		opts.SubjectID = subjID
	}

	runs, err := a.beacon.Store().ListRuns(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return runs, nil
}

func (a *ForgeAPI) getRun(ctx forge.Context, req *RunForgeRequest) (*run.Run, error) {
	runID, err := id.ParseRunID(req.RunID)
	if err != nil {
		return nil, forge.BadRequest("invalid run ID")
	}

	r, err := a.beacon.Store().GetRun(ctx.Context(), runID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, nil
}

func (a *ForgeAPI) listStepLogs(ctx forge.Context, req *RunForgeRequest) ([]*run.StepLog, error) {
	runID, err := id.ParseRunID(req.RunID)
	if err != nil {
		return nil, forge.BadRequest("invalid run ID")
	}

	if _, err := a.beacon.Store().GetRun(ctx.Context(), runID); err != nil {
		return nil, mapError(err)
	}
	logs, err := a.beacon.Store().ListStepLogs(ctx.Context(), runID)
	if err != nil {
		return nil, mapError(err)
	}

	return logs, nil
}

func (a *ForgeAPI) cancelRun(ctx forge.Context, req *RunForgeRequest) (*run.Run, error) {
	runID, err := id.ParseRunID(req.RunID)
	if err != nil {
		return nil, forge.BadRequest("invalid run ID")
	}

	r, err := a.beacon.CancelRun(ctx.Context(), runID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, nil
}

// ---------------------------------------------------------------------------
// Subject routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerSubjectRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("subjects"))

	if err := g.PUT("/subjects/:subjectId", a.putSubject,
		forge.WithSummary("Put subject"),
		forge.WithDescription("Creates or replaces a subject record."),
		forge.WithOperationID("putSubject"),
		forge.WithRequestSchema(PutSubjectForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Stored subject", subject.Subject{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register putSubject route", forge.Error(err))
	}

	if err := g.GET("/subjects/:subjectId", a.getSubject,
		forge.WithSummary("Get subject"),
		forge.WithDescription("Returns the current subject record."),
		forge.WithOperationID("getSubject"),
		forge.WithResponseSchema(http.StatusOK, "Subject details", subject.Subject{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getSubject route", forge.Error(err))
	}

	if err := g.GET("/subjects/:subjectId/tasks", a.listTasks,
		forge.WithSummary("List tasks"),
		forge.WithDescription("Returns the follow-up tasks workflows created for a subject."),
		forge.WithOperationID("listSubjectTasks"),
		forge.WithListResponse(subject.Task{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listTasks route", forge.Error(err))
	}
}

func (a *ForgeAPI) putSubject(ctx forge.Context, req *PutSubjectForgeRequest) (*subject.Subject, error) {
	subjID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		return nil, forge.BadRequest("invalid subject ID")
	}

	s, err := storeSubject(ctx.Context(), a.beacon, subjID, req.SubjectBody)
	if err != nil {
		return nil, mapError(err)
	}

	return s, nil
}

func (a *ForgeAPI) getSubject(ctx forge.Context, req *SubjectForgeRequest) (*subject.Subject, error) {
	subjID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		return nil, forge.BadRequest("invalid subject ID")
	}

	s, err := a.beacon.Store().GetSubject(ctx.Context(), subjID)
	if err != nil {
		return nil, mapError(err)
	}

	return s, nil
}

func (a *ForgeAPI) listTasks(ctx forge.Context, req *SubjectForgeRequest) ([]*subject.Task, error) {
	subjID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		return nil, forge.BadRequest("invalid subject ID")
	}

	tasks, err := a.beacon.Store().ListTasks(ctx.Context(), subjID)
	if err != nil {
		return nil, mapError(err)
	}

	return tasks, nil
}

// ---------------------------------------------------------------------------
// Stats routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerStatsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("stats"))

	if err := g.GET("/stats", a.getStats,
		forge.WithSummary("System statistics"),
		forge.WithDescription("Returns delivery counts per state."),
		forge.WithOperationID("getStats"),
		forge.WithResponseSchema(http.StatusOK, "System statistics", StatsResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}
}

func (a *ForgeAPI) getStats(ctx forge.Context, _ *StatsForgeRequest) (*StatsResponse, error) {
	stats, err := collectStats(ctx.Context(), a.beacon.Store())
	if err != nil {
		return nil, mapError(err)
	}
	return stats, nil
}

func parseBool(s string) *bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &b
}
