package cmd

import (
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/internal/database"
	"github.com/andr3so7/folio/internal/models"
)

// moduleCategories maps known module names onto their frontend category.
// Unknown modules fall back to "component".
var moduleCategories = map[string]string{
	"nasaGallery":   "api",
	"nasaAsteroid":  "api",
	"globalControl": "feature",
	"contactForm":   "component",
}

func newMigrateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Backfills fields on existing records.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
			initLogging()
			if err := database.Initialize(config.Get().Database.URI); err != nil {
				log.WithError(err).Fatal("failed to connect to the database")
			}
		},
	}
	command.AddCommand(newMigrateAuditCommand(), newMigrateCategoriesCommand())
	return command
}

// newMigrateAuditCommand backfills the audit fields on module records
// created before audit stamping existed, attributing them to the admin
// user.
func newMigrateAuditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Backfills lastModifiedAt and lastModifiedBy on legacy module records.",
		Run: func(cmd *cobra.Command, _ []string) {
			db := database.Instance()

			var admin models.User
			if err := db.Where("role = ?", "superAdmin").First(&admin).Error; err != nil {
				log.WithError(err).Fatal("no admin user found, create one first with `folio user create`")
			}

			res := db.Model(&models.Module{}).
				Where("last_modified_by = ?", "").
				Updates(map[string]interface{}{
					"last_modified_at": time.Now().UTC(),
					"last_modified_by": admin.ID,
				})
			if res.Error != nil {
				log.WithError(res.Error).Fatal("migration failed")
			}
			log.WithField("updated", res.RowsAffected).Info("audit backfill completed")
		},
	}
}

// newMigrateCategoriesCommand assigns a category to module records that do
// not carry one yet.
func newMigrateCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Backfills the category field on existing module records.",
		Run: func(cmd *cobra.Command, _ []string) {
			db := database.Instance()

			var mods []models.Module
			if err := db.Where("category = ? OR category IS NULL", "").Find(&mods).Error; err != nil {
				log.WithError(err).Fatal("failed to load modules")
			}
			log.WithField("count", len(mods)).Info("modules without a category")

			for _, m := range mods {
				category, ok := moduleCategories[m.Name]
				if !ok {
					category = "component"
				}
				if err := db.Model(&models.Module{}).Where("id = ?", m.ID).
					Update("category", category).Error; err != nil && err != gorm.ErrRecordNotFound {
					log.WithError(err).WithField("module", m.Name).Error("failed to update category")
					continue
				}
				log.WithFields(log.Fields{"module": m.Name, "category": category}).Info("category assigned")
			}
			log.Info("category backfill completed")
		},
	}
}
