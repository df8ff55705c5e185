package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrogier/actaflow/internal/infrastructure/sqlite"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Supprime le brouillon en cours",
	Long:  `Efface le brouillon sauvegardé localement. Le dossier côté serveur n'est pas affecté.`,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	db, err := sqlite.Open(cfg.DraftDBPath())
	if err != nil {
		return fmt.Errorf("ouverture de la base des brouillons : %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.DraftStore().Delete(); err != nil {
		return fmt.Errorf("suppression du brouillon : %w", err)
	}
	fmt.Println("Brouillon supprimé.")
	return nil
}
