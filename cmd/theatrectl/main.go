// Command theatrectl performs administrative tasks against the theatre
// database: applying the schema and creating staff accounts.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/theatre-service/internal/config"
	"github.com/iliyamo/theatre-service/internal/database"
	"github.com/iliyamo/theatre-service/internal/logging"
	"github.com/iliyamo/theatre-service/internal/service"
)

var (
	app = kingpin.New("theatrectl", "Theatre service administration.")

	migrateCmd = app.Command("migrate", "Apply the database schema.")

	userCmd      = app.Command("createsuperuser", "Create a staff account.")
	userEmail    = userCmd.Flag("email", "Account email.").Required().String()
	userPassword = userCmd.Flag("password", "Account password.").Envar("THEATRE_ADMIN_PASSWORD").Required().String()

	timeout = app.Flag("timeout", "Deadline for the whole command.").Default("30s").Duration()
)

func main() {
	_ = godotenv.Load()
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: "text", Output: os.Stderr})
	if cfg.StoreDriver != config.DriverMySQL {
		logger.Fatal().Str("driver", cfg.StoreDriver).Msg("theatrectl needs STORE_DRIVER=mysql")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	switch command {
	case migrateCmd.FullCommand():
		start := time.Now()
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		logger.Info().Int("statements", len(database.Statements())).Dur("took", time.Since(start)).Msg("schema applied")

	case userCmd.FullCommand():
		accounts := service.NewAccounts(service.MySQLStores(db), service.TokenSettings{BcryptCost: cfg.BcryptCost}, logger)
		u, err := accounts.CreateUser(ctx, *userEmail, *userPassword, true)
		if err != nil {
			logger.Fatal().Err(err).Msg("create staff user")
		}
		fmt.Printf("created staff user %d <%s>\n", u.ID, u.Email)
	}
}
