package acte

// StartRequest is the payload of the workflow start call.
type StartRequest struct {
	TypeActe      string `json:"type_acte"`
	CategorieBien string `json:"categorie_bien,omitempty"`
	SousType      string `json:"sous_type,omitempty"`
}

// StartResponse is the server's answer to a start call. Sections are
// fixed for the lifetime of the returned workflow id.
type StartResponse struct {
	WorkflowID string         `json:"workflow_id"`
	DossierID  string         `json:"dossier_id"`
	Detection  map[string]any `json:"detection,omitempty"`
	Sections   []Section      `json:"sections"`
}

// Progression carries the derived-but-cached completion counters.
type Progression struct {
	SectionsCompletees int `json:"sections_completees"`
	SectionsTotal      int `json:"sections_total"`
	ChampsRemplis      int `json:"champs_remplis"`
	ChampsTotal        int `json:"champs_total"`
	Pourcentage        int `json:"pourcentage"`
}

// ValidationMessage is one server- or client-issued validation finding
// for a field.
type ValidationMessage struct {
	Champ   string `json:"champ"`
	Message string `json:"message"`
	Niveau  string `json:"niveau,omitempty"` // "erreur" or "avertissement"
}

// SubmitResponse is the server's answer to a section submission.
type SubmitResponse struct {
	Progression Progression `json:"progression"`
	Validation  struct {
		Messages []ValidationMessage `json:"messages"`
	} `json:"validation"`
}
