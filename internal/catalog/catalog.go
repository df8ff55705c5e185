// Package catalog ships the embedded list of acte types the client can
// start a workflow for.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed types.yml
var embeddedCatalog []byte

// ActeType is one entry of the type-selection step. CategoriesBien and
// SousTypes are optional refinements sent along with the start request.
type ActeType struct {
	ID             string   `yaml:"id"`
	Libelle        string   `yaml:"libelle"`
	Description    string   `yaml:"description,omitempty"`
	CategoriesBien []string `yaml:"categories_bien,omitempty"`
	SousTypes      []string `yaml:"sous_types,omitempty"`
}

type catalogFile struct {
	Types []ActeType `yaml:"types"`
}

// Load parses the embedded catalog.
func Load() ([]ActeType, error) {
	var file catalogFile
	if err := yaml.Unmarshal(embeddedCatalog, &file); err != nil {
		return nil, fmt.Errorf("parsing acte-type catalog: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("acte-type catalog is empty")
	}
	for _, t := range file.Types {
		if t.ID == "" || t.Libelle == "" {
			return nil, fmt.Errorf("acte-type catalog entry missing id or libelle: %+v", t)
		}
	}
	return file.Types, nil
}

// Find returns the catalog entry with the given id.
func Find(types []ActeType, id string) (ActeType, bool) {
	for _, t := range types {
		if t.ID == id {
			return t, true
		}
	}
	return ActeType{}, false
}
