// Package pipeline implements C8: the request pipeline state machine
// of §4.8, orchestrating C1-C7 for a single request including retry
// and depth-bounded fallback.
package pipeline

import (
	"context"
	"time"

	"github.com/relayforge/gateway/billing"
	"github.com/relayforge/gateway/catalogstore"
	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/config"
	"github.com/relayforge/gateway/metrics"
	"github.com/relayforge/gateway/modelmanager"
	"github.com/relayforge/gateway/paramvalidator"
	"github.com/relayforge/gateway/pipelineerr"
	"github.com/relayforge/gateway/provider"
	"github.com/relayforge/gateway/ratelimit"
	"github.com/rs/zerolog"
)

// maxFallbackDepth bounds the insufficient-balance fallback recursion
// to exactly one substitution (§4.8 step 5, §9 redesign note) —
// Handle never calls itself; handleAttempt takes the depth explicitly
// so the bound is structural, not relied on by convention.
const maxFallbackDepth = 1

// RetryAttempt is one dispatch attempt outcome, appended to the
// request log's retry-attempts list.
type RetryAttempt struct {
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"` // "success" | "failed"
	Error     string    `json:"error,omitempty"`
}

// Pipeline wires C1-C7 together behind Handle.
type Pipeline struct {
	store     catalogstore.Store
	limiter   *ratelimit.Limiter
	models    *modelmanager.Manager
	providers *provider.Registry
	log       zerolog.Logger
	metrics   *metrics.PipelineMetrics
}

// New builds a Pipeline. Metrics are nil by default; call
// WithMetrics to instrument it.
func New(store catalogstore.Store, limiter *ratelimit.Limiter, models *modelmanager.Manager, providers *provider.Registry, log zerolog.Logger) *Pipeline {
	return &Pipeline{store: store, limiter: limiter, models: models, providers: providers, log: log}
}

// WithMetrics attaches Prometheus instrumentation and returns the same
// Pipeline for chaining.
func (p *Pipeline) WithMetrics(m *metrics.PipelineMetrics) *Pipeline {
	p.metrics = m
	return p
}

// Handle implements the full state machine for one incoming request,
// entering at Received.
func (p *Pipeline) Handle(ctx context.Context, req chatmodel.Request, credentialKey string) (chatmodel.Response, error) {
	return p.handleAttempt(ctx, req, credentialKey, 0)
}

func (p *Pipeline) handleAttempt(ctx context.Context, req chatmodel.Request, credentialKey string, fallbackDepth int) (chatmodel.Response, error) {
	requestID := newRequestID()
	stageStart := time.Now()
	defer p.metrics.ObserveStage("handle_attempt", stageStart)

	// Received -> Authenticated
	cred, err := p.models.GetCredential(ctx, credentialKey)
	if err != nil {
		return chatmodel.Response{}, err
	}
	if cred == nil {
		return chatmodel.Response{}, pipelineerr.New(pipelineerr.AuthError, "unknown credential")
	}
	if cred.Status != "active" {
		return chatmodel.Response{}, pipelineerr.New(pipelineerr.Forbidden, "credential is not active")
	}

	// Authenticated -> Resolved
	model, err := p.models.Get(ctx, req.Model)
	if err != nil {
		return chatmodel.Response{}, err
	}
	if model == nil {
		return chatmodel.Response{}, pipelineerr.New(pipelineerr.BadRequest, "unknown model")
	}

	// Resolved -> Admitted
	limits := config.RateLimitTier{
		RequestsPerMinute: cred.RateLimits.PerMinute, RequestsPerDay: cred.RateLimits.PerDay,
		RequestsPerMonth: cred.RateLimits.PerMonth, ConcurrentRequests: cred.RateLimits.Concurrent,
	}
	if err := p.limiter.Admit(ctx, credentialKey, limits); err != nil {
		return chatmodel.Response{}, err
	}
	released := false
	release := func() {
		if !released {
			released = true
			_ = p.limiter.Release(context.Background(), credentialKey)
		}
	}
	defer release()

	attempts := []RetryAttempt{}
	fail := func(kind pipelineerr.Kind, message string) (chatmodel.Response, error) {
		p.appendRequestLog(ctx, requestID, credentialKey, req, "failed", 0, attempts)
		p.metrics.CountOutcome("failed")
		return chatmodel.Response{}, pipelineerr.New(kind, message)
	}

	// Admitted -> Validated
	validated, err := paramvalidator.Validate(req, model.Capabilities.Image, model.Parameters)
	if err != nil {
		pe, _ := pipelineerr.As(err)
		return fail(pe.Kind, pe.Message)
	}

	// Validated -> Priced
	estimated := billing.Estimate(validated, model.MaxTokens, model.Pricing)
	ok, err := billing.CheckBalance(ctx, p.store, credentialKey, estimated)
	if err != nil {
		return chatmodel.Response{}, err
	}
	if !ok {
		if !cred.Retry.FallbackToLowerTier || fallbackDepth >= maxFallbackDepth {
			return fail(pipelineerr.InsufficientBalance, "insufficient balance")
		}
		lower, err := p.models.FindLowerTier(ctx, model.CapabilityLevel, requiredCapabilities(validated))
		if err != nil {
			return chatmodel.Response{}, err
		}
		if lower == nil {
			return fail(pipelineerr.InsufficientBalance, "insufficient balance")
		}
		release()
		substituted := validated
		substituted.Model = lower.ModelID
		return p.handleAttempt(ctx, substituted, credentialKey, fallbackDepth+1)
	}

	// Priced -> Dispatching
	adapter, ok := p.providers.Get(model.Provider)
	if !ok {
		return fail(pipelineerr.Internal, "no adapter registered for provider "+model.Provider)
	}

	var resp chatmodel.Response
	var dispatchErr error
	maxRetries := cred.Retry.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	for attempt := 1; ; attempt++ {
		resp, dispatchErr = adapter.Complete(ctx, validated)
		if dispatchErr == nil {
			attempts = append(attempts, RetryAttempt{Attempt: attempt, Timestamp: time.Now().UTC(), Status: "success"})
			break
		}
		if ctx.Err() != nil {
			attempts = append(attempts, RetryAttempt{Attempt: attempt, Timestamp: time.Now().UTC(), Status: "failed", Error: dispatchErr.Error()})
			return fail(pipelineerr.Cancelled, "request cancelled during dispatch")
		}
		attempts = append(attempts, RetryAttempt{Attempt: attempt, Timestamp: time.Now().UTC(), Status: "failed", Error: dispatchErr.Error()})
		if attempt >= maxRetries {
			return fail(pipelineerr.UpstreamError, dispatchErr.Error())
		}
		select {
		case <-ctx.Done():
			return fail(pipelineerr.Cancelled, "request cancelled during retry")
		case <-time.After(time.Duration(cred.Retry.RetryDelayMS) * time.Millisecond):
		}
	}

	// Settled
	cost := billing.Finalise(resp.Usage, model.Pricing)
	if err := billing.Deduct(ctx, p.store, credentialKey, cost, requestID); err != nil {
		p.log.Error().Err(err).Str("request_id", requestID).Msg("failed to deduct billed cost")
	}
	p.appendRequestLog(ctx, requestID, credentialKey, req, "completed", cost, attempts)
	p.metrics.CountOutcome("settled")

	// Logged
	return resp, nil
}

func requiredCapabilities(req chatmodel.Request) modelmanager.Capabilities {
	caps := modelmanager.Capabilities{Text: true, Reply: true}
	for _, msg := range req.Messages {
		if msg.HasImage() {
			caps.Image = true
		}
	}
	return caps
}

func (p *Pipeline) appendRequestLog(ctx context.Context, requestID, credentialKey string, req chatmodel.Request, status string, cost float64, attempts []RetryAttempt) {
	retryDocs := make([]interface{}, len(attempts))
	for i, a := range attempts {
		retryDocs[i] = map[string]interface{}{
			"attempt": a.Attempt, "timestamp": a.Timestamp, "status": a.Status, "error": a.Error,
		}
	}
	doc := catalogstore.Document{
		"request_id":    requestID,
		"credential":    credentialKey,
		"model_id":      req.Model,
		"timestamp":     time.Now().UTC(),
		"message_types": chatmodel.CountMessageTypes(req.Messages),
		"status":        status,
		"cost":          cost,
		"retry_attempts": retryDocs,
	}
	if err := p.store.Insert(ctx, catalogstore.Requests, doc); err != nil {
		p.log.Error().Err(err).Str("request_id", requestID).Msg("failed to append request log entry")
	}
}
