// Package api implements the HTTP client of the deed-generation
// backend: workflow start and submission calls, the two streaming
// channels, and feedback. Non-streaming calls run under a fixed
// timeout; streaming calls have none and end only on close.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/log"
	"github.com/mrogier/actaflow/internal/stream"
)

// sectionCacheTTL bounds how long a start response is reused by the
// draft-restore refetch path. Long enough to cover a restart, short
// enough that stale section definitions age out.
const sectionCacheTTL = 10 * time.Minute

// Client talks to the deed-generation backend.
type Client struct {
	baseURL string
	apiKey  string

	// httpClient carries the fixed timeout for request/response calls.
	// streamClient has none; a timeout on the client would sever
	// long-lived streams mid-generation.
	httpClient   *http.Client
	streamClient *http.Client

	sections *gocache.Cache
	tracer   trace.Tracer
}

// NewClient builds a client for the given base URL. The timeout applies
// to non-streaming calls only.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		sections:     gocache.New(sectionCacheTTL, sectionCacheTTL),
		tracer:       otel.Tracer("github.com/mrogier/actaflow/internal/api"),
	}
}

// ChatRequest is one user turn sent to the conversational channel.
type ChatRequest struct {
	Message    string `json:"message"`
	WorkflowID string `json:"workflow_id,omitempty"`
	DossierID  string `json:"dossier_id,omitempty"`
}

// FeedbackRequest rates one assistant message.
type FeedbackRequest struct {
	MessageID string `json:"message_id"`
	Rating    int    `json:"rating"` // +1 or -1
	Comment   string `json:"comment,omitempty"`
}

// StartWorkflow creates a workflow run for the given acte type and
// returns its id, dossier, detection payload, and section definitions.
// The response is cached by request fingerprint for RefetchSections.
func (c *Client) StartWorkflow(ctx context.Context, req acte.StartRequest) (*acte.StartResponse, error) {
	ctx, span := c.tracer.Start(ctx, "api.StartWorkflow",
		trace.WithAttributes(attribute.String("acte.type", req.TypeActe)))
	defer span.End()

	var resp acte.StartResponse
	if err := c.postJSON(ctx, "/api/v1/workflows", req, &resp); err != nil {
		return nil, c.fail(span, err)
	}

	c.sections.Set(startFingerprint(req), &resp, gocache.DefaultExpiration)
	log.Debug(log.CatAPI, "Workflow started",
		"workflow_id", resp.WorkflowID, "dossier_id", resp.DossierID, "sections", len(resp.Sections))
	return &resp, nil
}

// RefetchSections returns section definitions for the given start
// request, reusing a recent StartWorkflow response when one is cached
// so that restoring a draft does not open a duplicate server workflow.
func (c *Client) RefetchSections(ctx context.Context, req acte.StartRequest) ([]acte.Section, error) {
	if cached, ok := c.sections.Get(startFingerprint(req)); ok {
		log.Debug(log.CatAPI, "Section definitions served from cache", "type_acte", req.TypeActe)
		return cached.(*acte.StartResponse).Sections, nil
	}
	resp, err := c.StartWorkflow(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Sections, nil
}

// SubmitAnswers sends the whole donnees tree for the workflow and
// returns the server's progression counters and validation findings.
func (c *Client) SubmitAnswers(ctx context.Context, workflowID string, donnees map[string]any) (*acte.SubmitResponse, error) {
	ctx, span := c.tracer.Start(ctx, "api.SubmitAnswers",
		trace.WithAttributes(attribute.String("workflow.id", workflowID)))
	defer span.End()

	payload := map[string]any{"donnees": donnees}
	var resp acte.SubmitResponse
	path := "/api/v1/workflows/" + url.PathEscape(workflowID) + "/reponses"
	if err := c.postJSON(ctx, path, payload, &resp); err != nil {
		return nil, c.fail(span, err)
	}

	log.Debug(log.CatAPI, "Answers submitted",
		"workflow_id", workflowID, "pourcentage", resp.Progression.Pourcentage,
		"validation_messages", len(resp.Validation.Messages))
	return &resp, nil
}

// StreamGeneration opens the generation event stream for the workflow.
// The key travels as a query parameter; the transport does not accept
// custom headers. The caller owns the returned source.
func (c *Client) StreamGeneration(ctx context.Context, workflowID string) (stream.Source, error) {
	ctx, span := c.tracer.Start(ctx, "api.StreamGeneration",
		trace.WithAttributes(attribute.String("workflow.id", workflowID)))
	defer span.End()

	rawURL := c.baseURL + "/api/v1/workflows/" + url.PathEscape(workflowID) + "/generation/stream"
	src, err := stream.OpenHTTP(ctx, c.streamClient, rawURL, c.apiKey)
	if err != nil {
		return nil, c.fail(span, c.classify("streamGeneration", err))
	}
	log.Debug(log.CatStream, "Generation stream opened", "workflow_id", workflowID)
	return src, nil
}

// StreamChat opens one conversational stream for the given user turn.
// The caller owns the returned source.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (stream.Source, error) {
	ctx, span := c.tracer.Start(ctx, "api.StreamChat",
		trace.WithAttributes(attribute.String("workflow.id", req.WorkflowID)))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("encoding chat request: %w", err))
	}
	src, err := stream.OpenHTTPPost(ctx, c.streamClient, c.baseURL+"/api/v1/chat/stream", c.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(span, c.classify("streamChat", err))
	}
	log.Debug(log.CatStream, "Chat stream opened", "workflow_id", req.WorkflowID)
	return src, nil
}

// SendFeedback records a +1/-1 rating for an assistant message.
func (c *Client) SendFeedback(ctx context.Context, req FeedbackRequest) error {
	ctx, span := c.tracer.Start(ctx, "api.SendFeedback",
		trace.WithAttributes(attribute.Int("feedback.rating", req.Rating)))
	defer span.End()

	if err := c.postJSON(ctx, "/api/v1/chat/feedback", req, nil); err != nil {
		return c.fail(span, err)
	}
	log.Debug(log.CatAPI, "Feedback sent", "message_id", req.MessageID, "rating", req.Rating)
	return nil
}

// postJSON issues a POST with a JSON body and decodes a JSON response
// into out when out is non-nil. Errors are classified per the taxonomy.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	op := "POST " + path

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Op: op, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// classify maps a transport error to the Network/Timeout taxonomy.
func (c *Client) classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &TimeoutError{Op: op}
	}
	return &NetworkError{Op: op, Err: err}
}

// fail records the error on the span before returning it.
func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.ErrorErr(log.CatAPI, "API call failed", err)
	return err
}

// readDetail extracts a server-provided explanation from an error body.
// Bodies are either `{"detail": "..."}` or free text; both are capped.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var wrapper struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if wrapper.Detail != "" {
			return wrapper.Detail
		}
		if wrapper.Message != "" {
			return wrapper.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func startFingerprint(req acte.StartRequest) string {
	return req.TypeActe + "|" + req.CategorieBien + "|" + req.SousType
}
