package api

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError indicates that no connection to the backend could be
// established.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: connexion au serveur impossible: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to the user.
func (e *NetworkError) UserMessage() string {
	return "Connexion au serveur impossible. Vérifiez votre réseau."
}

// TimeoutError indicates that a non-streaming call exceeded the fixed
// request budget.
type TimeoutError struct {
	Op string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: délai d'attente dépassé", e.Op)
}

// UserMessage returns the text shown to the user.
func (e *TimeoutError) UserMessage() string {
	return "Le serveur met trop de temps à répondre. Réessayez."
}

// HTTPError is a non-2xx response. Detail carries the server's own
// explanation when the body provided one (422 validation responses).
type HTTPError struct {
	StatusCode int
	Op         string
	Detail     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: statut HTTP %d", e.Op, e.StatusCode)
}

// UserMessage maps the status class to a fixed user-facing message.
func (e *HTTPError) UserMessage() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return "Authentification requise. Vérifiez votre clé API."
	case e.StatusCode == http.StatusForbidden:
		return "Vous n'avez pas les droits pour cette opération."
	case e.StatusCode == http.StatusNotFound:
		return "Session introuvable ou expirée. Relancez le dossier."
	case e.StatusCode == http.StatusUnprocessableEntity:
		if e.Detail != "" {
			return "Données invalides : " + e.Detail
		}
		return "Données invalides. Corrigez les champs signalés."
	case e.StatusCode == http.StatusTooManyRequests:
		return "Trop de requêtes. Patientez quelques instants."
	case e.StatusCode >= 500:
		return "Erreur du serveur. Réessayez plus tard."
	default:
		return fmt.Sprintf("Erreur inattendue (HTTP %d).", e.StatusCode)
	}
}

// UserMessage extracts the user-facing text of any error produced by
// this package, falling back to err.Error() for everything else.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		netErr     *NetworkError
		timeoutErr *TimeoutError
		httpErr    *HTTPError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return timeoutErr.UserMessage()
	case errors.As(err, &httpErr):
		return httpErr.UserMessage()
	case errors.As(err, &netErr):
		return netErr.UserMessage()
	}
	return err.Error()
}
