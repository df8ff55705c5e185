package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrogier/actaflow/internal/catalog"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Liste les types d'actes disponibles",
	Long:  `Affiche le catalogue des types d'actes que le questionnaire sait préparer, avec leurs déclinaisons.`,
	RunE:  runTypes,
}

func init() {
	rootCmd.AddCommand(typesCmd)
}

func runTypes(cmd *cobra.Command, args []string) error {
	types, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("chargement du catalogue : %w", err)
	}

	maxLen := 0
	for _, at := range types {
		if len(at.ID) > maxLen {
			maxLen = len(at.ID)
		}
	}

	for _, at := range types {
		fmt.Printf("  %-*s  %s\n", maxLen, at.ID, at.Libelle)
		if at.Description != "" {
			fmt.Printf("  %-*s  %s\n", maxLen, "", at.Description)
		}
		if len(at.CategoriesBien) > 0 {
			fmt.Printf("  %-*s  catégories : %v\n", maxLen, "", at.CategoriesBien)
		}
		if len(at.SousTypes) > 0 {
			fmt.Printf("  %-*s  sous-types : %v\n", maxLen, "", at.SousTypes)
		}
		fmt.Println()
	}
	return nil
}
