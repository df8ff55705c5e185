// Package chat drives the token-streamed conversational assistant: one
// stream per user turn, an assistant message built incrementally from
// token events, and per-message feedback.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mrogier/actaflow/internal/api"
	"github.com/mrogier/actaflow/internal/log"
	"github.com/mrogier/actaflow/internal/stream"
)

// Role distinguishes the two sides of the transcript.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Metadata carries the context attached by a done event.
type Metadata struct {
	Section    string  `json:"section,omitempty"`
	WorkflowID string  `json:"workflow_id,omitempty"`
	FichierURL string  `json:"fichier_url,omitempty"`
	Intention  string  `json:"intention,omitempty"`
	Confiance  float64 `json:"confiance,omitempty"`
}

// Message is one entry of the transcript. An assistant message starts
// as an empty streaming placeholder and is finalized or failed by the
// stream's terminal event.
type Message struct {
	ID          string
	Role        Role
	Content     string
	Status      string // transient thinking text, only while content is empty
	Suggestions []string
	Metadata    Metadata
	Feedback    int // +1, -1, or 0 when unrated
	Streaming   bool
	Failed      bool
}

// Backend is the slice of the HTTP client the controller uses.
type Backend interface {
	StreamChat(ctx context.Context, req api.ChatRequest) (stream.Source, error)
	SendFeedback(ctx context.Context, req api.FeedbackRequest) error
}

// Listener observes the transcript after every change.
type Listener func(messages []Message)

// Controller owns the transcript and the per-turn stream lifecycle.
type Controller struct {
	mu         sync.Mutex
	messages   []Message
	backend    Backend
	listeners  []Listener
	onProgress func(pct int)
	streaming  bool

	workflowID string
	dossierID  string
}

// NewController builds a controller. onProgress receives completion
// percentages reported by done events and may be nil.
func NewController(backend Backend, onProgress func(pct int)) *Controller {
	return &Controller{backend: backend, onProgress: onProgress}
}

// AttachWorkflow links subsequent turns to a workflow run.
func (c *Controller) AttachWorkflow(workflowID, dossierID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflowID = workflowID
	c.dossierID = dossierID
}

// Subscribe registers a listener invoked with a transcript copy after
// every change.
func (c *Controller) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Streaming reports whether an assistant reply is currently in flight.
// The view uses it to refuse a new send; the core does not cancel.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Send appends the user turn and a streaming assistant placeholder,
// then drains the reply stream to its end. It blocks until the stream
// ends; run it from its own goroutine or command.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	workflowID, dossierID := c.workflowID, c.dossierID
	c.messages = append(c.messages,
		Message{ID: uuid.NewString(), Role: RoleUser, Content: text},
	)
	placeholder := Message{ID: uuid.NewString(), Role: RoleAssistant, Streaming: true}
	c.messages = append(c.messages, placeholder)
	c.streaming = true
	c.mu.Unlock()
	c.notify()

	src, err := c.backend.StreamChat(ctx, api.ChatRequest{
		Message:    text,
		WorkflowID: workflowID,
		DossierID:  dossierID,
	})
	if err != nil {
		c.failInFlight(placeholder.ID, api.UserMessage(err))
		return err
	}

	runErr := stream.Run(ctx, src, func(frame stream.Frame) error {
		c.handleFrame(placeholder.ID, frame)
		if frame.Event == "done" || frame.Event == "error" {
			return stream.ErrStopStream
		}
		return nil
	})
	if runErr != nil {
		c.failInFlight(placeholder.ID, "Connexion au serveur perdue.")
		return runErr
	}

	c.finalize(placeholder.ID)
	return nil
}

// Feedback rates an assistant message and records the rating locally.
func (c *Controller) Feedback(ctx context.Context, messageID string, rating int) error {
	c.mu.Lock()
	found := false
	for i := range c.messages {
		if c.messages[i].ID == messageID && c.messages[i].Role == RoleAssistant {
			c.messages[i].Feedback = rating
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return fmt.Errorf("chat: unknown message %s", messageID)
	}
	c.notify()

	if err := c.backend.SendFeedback(ctx, api.FeedbackRequest{MessageID: messageID, Rating: rating}); err != nil {
		log.Warn(log.CatChat, "Failed to send feedback", "message_id", messageID, "error", err)
		return err
	}
	return nil
}

type tokenPayload struct {
	Text string `json:"text"`
}

type statusPayload struct {
	Message string `json:"message"`
}

type donePayload struct {
	Suggestions []string `json:"suggestions,omitempty"`
	Section     string   `json:"section,omitempty"`
	FichierURL  string   `json:"fichier_url,omitempty"`
	WorkflowID  string   `json:"workflow_id,omitempty"`
	Intention   string   `json:"intention,omitempty"`
	Confiance   float64  `json:"confiance,omitempty"`
	ProgressPct *int     `json:"progress_pct,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// handleFrame applies one decoded frame to the in-flight message.
// Malformed JSON drops that event only; the stream continues.
func (c *Controller) handleFrame(messageID string, frame stream.Frame) {
	switch frame.Event {
	case "token":
		var p tokenPayload
		if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
			log.Warn(log.CatChat, "Dropping malformed token event", "error", err)
			return
		}
		c.updateMessage(messageID, func(m *Message) {
			m.Content += p.Text
			m.Status = ""
		})
	case "status":
		var p statusPayload
		if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
			log.Warn(log.CatChat, "Dropping malformed status event", "error", err)
			return
		}
		c.updateMessage(messageID, func(m *Message) {
			if m.Content == "" {
				m.Status = p.Message
			}
		})
	case "done":
		var p donePayload
		if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
			log.Warn(log.CatChat, "Dropping malformed done event", "error", err)
			return
		}
		c.updateMessage(messageID, func(m *Message) {
			m.Suggestions = p.Suggestions
			m.Metadata = Metadata{
				Section:    p.Section,
				WorkflowID: p.WorkflowID,
				FichierURL: p.FichierURL,
				Intention:  p.Intention,
				Confiance:  p.Confiance,
			}
		})
		if p.ProgressPct != nil && c.onProgress != nil {
			c.onProgress(*p.ProgressPct)
		}
	case "error":
		var p errorPayload
		if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
			log.Warn(log.CatChat, "Dropping malformed error event", "error", err)
			return
		}
		// Late tokens after this append to the error text rather than
		// resurrecting the reply.
		c.updateMessage(messageID, func(m *Message) {
			m.Content = "Une erreur est survenue : " + p.Message
			m.Status = ""
			m.Failed = true
		})
	}
}

// failInFlight handles a transport failure: an empty in-flight reply is
// replaced with the error text, a partial one keeps its tokens and a
// trailing failed message is appended.
func (c *Controller) failInFlight(messageID, errText string) {
	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID != messageID {
			continue
		}
		m := &c.messages[i]
		m.Streaming = false
		m.Status = ""
		if m.Content == "" {
			m.Content = errText
			m.Failed = true
		} else {
			c.messages = append(c.messages, Message{
				ID:      uuid.NewString(),
				Role:    RoleAssistant,
				Content: errText,
				Failed:  true,
			})
		}
		break
	}
	c.streaming = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) finalize(messageID string) {
	c.updateMessage(messageID, func(m *Message) {
		m.Streaming = false
		m.Status = ""
	})
	c.mu.Lock()
	c.streaming = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) updateMessage(messageID string, fn func(*Message)) {
	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			fn(&c.messages[i])
			break
		}
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	transcript := make([]Message, len(c.messages))
	copy(transcript, c.messages)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(transcript)
	}
}
