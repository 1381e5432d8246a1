package cmd

import (
	agentRepo "github.com/AzielCF/az-crm/agent/repository"
	convRepo "github.com/AzielCF/az-crm/conversation/repository"
	settingsInfra "github.com/AzielCF/az-crm/core/settings/infrastructure"
	coreconfig "github.com/AzielCF/az-crm/core/config"
	coreDB "github.com/AzielCF/az-crm/core/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run:   runMigrations,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func schemaModels() []any {
	models := append(convRepo.Models(), agentRepo.Models()...)
	return append(models, settingsInfra.Models()...)
}

// migrateSchema aplica AutoMigrate sobre todos los modelos del CRM.
func migrateSchema(db *gorm.DB) error {
	return coreDB.Migrate(db, schemaModels()...)
}

func runMigrations(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[MIGRATION] %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	logrus.WithField("driver", cfg.Database.Driver).Info("[MIGRATION] Migrating schema...")
	if err := migrateSchema(db); err != nil {
		logrus.Fatalf("[MIGRATION] %v", err)
	}
	logrus.Info("[MIGRATION] Schema is up to date")
}
