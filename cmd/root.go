// Package cmd implements the actaflow command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrogier/actaflow/internal/api"
	"github.com/mrogier/actaflow/internal/catalog"
	"github.com/mrogier/actaflow/internal/chat"
	"github.com/mrogier/actaflow/internal/config"
	"github.com/mrogier/actaflow/internal/infrastructure/sqlite"
	"github.com/mrogier/actaflow/internal/log"
	"github.com/mrogier/actaflow/internal/telemetry"
	"github.com/mrogier/actaflow/internal/ui"
	"github.com/mrogier/actaflow/internal/ui/styles"
	"github.com/mrogier/actaflow/internal/ui/wizard"
	"github.com/mrogier/actaflow/internal/workflow"
)

var (
	cfg       config.Config
	cfgFile   string
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "actaflow",
	Short: "Assistant terminal de préparation d'actes notariés",
	Long: `actaflow guide la constitution d'un dossier d'acte notarié :
questionnaire section par section, validation incrémentale, génération
du document par le serveur et assistant conversationnel.`,
	RunE:         runRoot,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "chemin du fichier de configuration")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "journalisation détaillée")
}

// initConfig loads configuration from file and environment, writing a
// commented default file on first run.
func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		defaultPath := filepath.Join(config.DefaultHomeDir(), "config.yml")
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			if err := config.WriteDefaultConfig(defaultPath); err != nil {
				fmt.Fprintf(os.Stderr, "avertissement : impossible d'écrire la configuration par défaut : %v\n", err)
			}
		}
		viper.AddConfigPath(config.DefaultHomeDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ACTAFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "avertissement : lecture de la configuration : %v\n", err)
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "avertissement : configuration invalide : %v\n", err)
	}
	if debugFlag {
		cfg.Debug = true
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalide : %w", err)
	}

	if err := log.Init(cfg.HomeDir, cfg.Debug); err != nil {
		return fmt.Errorf("initialisation des journaux : %w", err)
	}
	defer log.Close()

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.Exporter(cfg.Tracing.Exporter), cfg.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("initialisation du traçage : %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	styles.ForceTheme(cfg.UI.ThemeMode)

	db, err := sqlite.Open(cfg.DraftDBPath())
	if err != nil {
		return fmt.Errorf("ouverture de la base des brouillons : %w", err)
	}
	defer func() { _ = db.Close() }()

	types, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("chargement du catalogue : %w", err)
	}

	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.APIKey, cfg.Server.Timeout)
	engine := workflow.NewEngine(client, db.DraftStore())
	controller := chat.NewController(client, engine.ApplyChatProgress)

	wizardView := wizard.New(types).WithProgressBar(cfg.UI.ShowProgressBar)
	app := ui.NewApp(engine, controller, wizardView)

	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("interface : %w", err)
	}
	return nil
}
