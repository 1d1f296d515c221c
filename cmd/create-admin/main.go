package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/repository"
	"github.com/kapilsaini46/rks/internal/service"
	"github.com/kapilsaini46/rks/pkg/config"
	"github.com/kapilsaini46/rks/pkg/database"
	"github.com/kapilsaini46/rks/pkg/logger"
)

func main() {
	var (
		email    string
		name     string
		password string
		school   string
	)
	flag.StringVar(&email, "email", "", "Admin email")
	flag.StringVar(&name, "name", "Administrator", "Display name")
	flag.StringVar(&password, "password", os.Getenv("ADMIN_PASSWORD"), "Admin password (defaults to $ADMIN_PASSWORD)")
	flag.StringVar(&school, "school", "", "School name")
	flag.Parse()

	if email == "" || password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("schema migration failed", zap.Error(err))
	}

	users := service.NewUserService(repository.NewUserRepository(db), nil, logr)
	admin, err := users.Create(ctx, service.CreateUserRequest{
		Email:      email,
		Name:       name,
		Role:       models.RoleAdmin,
		Password:   password,
		SchoolName: school,
	}, "", models.RequestMeta{UserAgent: "create-admin"})
	if err != nil {
		logr.Fatal("failed to create admin", zap.Error(err))
	}
	logr.Info("admin created", zap.String("id", admin.ID), zap.String("email", admin.Email))
}
