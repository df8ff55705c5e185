// Package generation consumes the document-generation event stream and
// turns its named events into ordered progress updates.
package generation

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mrogier/actaflow/internal/log"
	"github.com/mrogier/actaflow/internal/stream"
)

// Statut tags the state of one generation step.
type Statut string

const (
	StatutEnCours Statut = "en_cours"
	StatutTermine Statut = "termine"
	StatutErreur  Statut = "erreur"
)

// Event is one progress entry of the generation log.
type Event struct {
	Etape  string `json:"etape"`
	Detail string `json:"detail,omitempty"`
	Statut Statut `json:"statut"`
}

// Result is the payload of a successful generation.
type Result struct {
	FichierURL string
	Conformite int
}

// Callbacks receive generation progress in receipt order. Nil callbacks
// are skipped.
type Callbacks struct {
	OnStep     func(Event)
	OnComplete func(Result)
	OnError    func(message string)
}

// stepPayload tolerates both vocabularies the backend has emitted.
type stepPayload struct {
	Step    string `json:"step"`
	Etape   string `json:"etape"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

type completePayload struct {
	Fichier    string `json:"fichier"`
	FichierURL string `json:"fichier_url"`
	Conformite int    `json:"conformite"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Run drains the generation stream, dispatching each event to the
// callbacks as it arrives. It returns nil when the stream ends with a
// `complete` or an explicit `error` event, and an error when the
// connection is lost before either.
func Run(ctx context.Context, src stream.Source, cb Callbacks) error {
	completed := false

	err := stream.Run(ctx, src, func(frame stream.Frame) error {
		switch frame.Event {
		case "step":
			var p stepPayload
			if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
				log.Warn(log.CatStream, "Dropping malformed step event", "error", err)
				return nil
			}
			etape := p.Etape
			if etape == "" {
				etape = p.Step
			}
			detail := p.Detail
			if detail == "" {
				detail = p.Message
			}
			if cb.OnStep != nil {
				cb.OnStep(Event{Etape: etape, Detail: detail, Statut: StatutEnCours})
			}
		case "complete":
			var p completePayload
			if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
				log.Warn(log.CatStream, "Dropping malformed complete event", "error", err)
				return nil
			}
			fichier := p.FichierURL
			if fichier == "" {
				fichier = p.Fichier
			}
			completed = true
			if cb.OnComplete != nil {
				cb.OnComplete(Result{FichierURL: fichier, Conformite: p.Conformite})
			}
			return stream.ErrStopStream
		case "error":
			var p errorPayload
			if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
				log.Warn(log.CatStream, "Dropping malformed error event", "error", err)
				return nil
			}
			completed = true
			if cb.OnError != nil {
				cb.OnError(p.Message)
			}
			return stream.ErrStopStream
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !completed {
		// The server closed the stream without a terminal event.
		if cb.OnError != nil {
			cb.OnError("Connexion au serveur perdue pendant la génération.")
		}
		return errors.Join(stream.ErrConnectionLost, errors.New("generation stream closed without terminal event"))
	}
	return nil
}
