package cmd

import (
	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/internal/database"
	"github.com/andr3so7/folio/internal/models"
)

var userCreateArgs struct {
	Email    string
	Password string
	Name     string
}

func newUserCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "user",
		Short: "Manages the administrative user.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
			initLogging()
			if err := database.Initialize(config.Get().Database.URI); err != nil {
				log.WithError(err).Fatal("failed to connect to the database")
			}
		},
	}
	command.AddCommand(newUserCreateCommand())
	return command
}

// newUserCreateCommand creates the admin user, or resets its password and
// name when the email already exists.
func newUserCreateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "create",
		Short: "Creates or updates the admin user.",
		Run: func(cmd *cobra.Command, _ []string) {
			if userCreateArgs.Email == "" || userCreateArgs.Password == "" || userCreateArgs.Name == "" {
				log.Fatal("--email, --password and --name are all required")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(userCreateArgs.Password), 10)
			if err != nil {
				log.WithError(err).Fatal("failed to hash password")
			}

			db := database.Instance()
			var user models.User
			err = db.Where("email = ?", userCreateArgs.Email).First(&user).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				user = models.User{
					Email:      userCreateArgs.Email,
					Password:   string(hash),
					Name:       userCreateArgs.Name,
					Role:       "superAdmin",
					IsVerified: true,
				}
				if err := db.Create(&user).Error; err != nil {
					log.WithError(err).Fatal("failed to create user")
				}
				log.WithField("email", user.Email).Info("admin user created")
			case err != nil:
				log.WithError(err).Fatal("failed to look up user")
			default:
				if err := db.Model(&user).Updates(map[string]interface{}{
					"password": string(hash),
					"name":     userCreateArgs.Name,
				}).Error; err != nil {
					log.WithError(err).Fatal("failed to update user")
				}
				log.WithField("email", user.Email).Info("admin user updated")
			}
		},
	}

	command.Flags().StringVar(&userCreateArgs.Email, "email", "", "email address the admin logs in with")
	command.Flags().StringVar(&userCreateArgs.Password, "password", "", "plain text password to hash and store")
	command.Flags().StringVar(&userCreateArgs.Name, "name", "", "display name for the admin")
	return command
}
