package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/fieldservice-api/config"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
	"github.com/jwalitptl/fieldservice-api/pkg/logger"
	"github.com/jwalitptl/fieldservice-api/pkg/security"
)

const minPasswordLength = 8

func main() {
	email := flag.String("email", "", "admin email")
	name := flag.String("name", "Administrator", "admin display name")
	password := flag.String("password", "", "admin password, at least 8 characters")
	flag.Parse()

	if *email == "" || len(*password) < minPasswordLength {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.SetGlobal(logger.New(cfg.Log.Level, cfg.Log.Format))

	db, err := postgres.NewDB(cfg.Database.ToPoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	hash, err := security.NewBcryptHasher(bcrypt.DefaultCost).Hash(*password)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash password")
	}

	admin := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		Name:         *name,
		Role:         model.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := postgres.NewUserRepository(postgres.NewBaseRepository(db))
	if err := repo.Create(ctx, admin); err != nil {
		log.Fatal().Err(err).Str("email", admin.Email).Msg("failed to create admin")
	}

	fmt.Printf("Admin created\n  id:    %s\n  email: %s\n", admin.ID, admin.Email)
}
