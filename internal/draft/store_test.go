package draft

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrogier/actaflow/internal/acte"
	"github.com/mrogier/actaflow/internal/infrastructure/migrations"
	"github.com/mrogier/actaflow/internal/workflow"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+t.TempDir()+"/drafts.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Apply(db))
	return NewStore(db)
}

func sampleSnapshot() workflow.Snapshot {
	return workflow.Snapshot{
		Step:           workflow.StepCollecting,
		WorkflowID:     "wf-1",
		DossierID:      "d-1",
		TypeActe:       "vente",
		CurrentSection: 1,
		Sections: []acte.Section{
			{ID: "vendeur", Titre: "Le vendeur", Questions: []acte.Question{
				{ID: "q1", Type: acte.TypeText, Libelle: "Nom", Variable: "vendeur.nom", Obligatoire: true},
			}},
			{ID: "bien", Titre: "Le bien"},
		},
		Donnees: map[string]any{
			"vendeur": map[string]any{"nom": "Durand"},
		},
		Progression: acte.Progression{Pourcentage: 40, ChampsRemplis: 1, ChampsTotal: 3},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	snap := sampleSnapshot()

	require.NoError(t, store.Save(snap))
	loaded, err := store.Load()

	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap.Step, loaded.Step)
	assert.Equal(t, snap.Donnees, loaded.Donnees)
	assert.Equal(t, snap.CurrentSection, loaded.CurrentSection)
	require.Len(t, loaded.Sections, 2)
	assert.Equal(t, "Le vendeur", loaded.Sections[0].Titre)
	assert.Equal(t, "vendeur.nom", loaded.Sections[0].Questions[0].Variable)
	assert.Equal(t, 40, loaded.Progression.Pourcentage)
}

func TestStore_LoadWithoutDraft(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load()

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	snap := sampleSnapshot()
	require.NoError(t, store.Save(snap))

	snap.CurrentSection = 0
	snap.Step = workflow.StepReview
	require.NoError(t, store.Save(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, workflow.StepReview, loaded.Step)
	assert.Equal(t, 0, loaded.CurrentSection)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(sampleSnapshot()))

	require.NoError(t, store.Delete())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting again is fine.
	require.NoError(t, store.Delete())
}

func TestStore_SchemaMismatchIsNotRestorable(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(sampleSnapshot()))

	_, err := store.db.Exec(`UPDATE drafts SET schema = ?`, SchemaVersion+1)
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded, "a draft written by another schema version is ignored")
}
