package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"cmgvisor/internal/config"
	"cmgvisor/internal/handlers/dashboard"
	"cmgvisor/internal/handlers/system"
	"cmgvisor/internal/models"
	"cmgvisor/internal/services/cache"
	"cmgvisor/internal/services/dataloader"
	"cmgvisor/internal/services/metrics"
	"cmgvisor/internal/services/storage"
	"cmgvisor/internal/templates"
	"cmgvisor/internal/version"
)

var (
	cfg      *config.Config
	store    *storage.Storage
	loader   *dataloader.DataLoader
	datasets *cache.Cache[*models.Dataset]
	renderer *templates.Renderer
)

func main() {
	info := version.Get()
	log.Printf("Starting %s", info)
	if warning := info.Check(); warning != "" {
		log.Println(warning)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Listening on %s", cfg.ListenAddr)
	log.Printf("Data directory: %s", cfg.DataDirectory)

	metrics.Init()

	if err := SetupDependencies(cfg); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	if err := unlockStorage(cfg.Password); err != nil {
		log.Fatalf("Failed to unlock data directory: %v", err)
	}

	log.Fatal(http.ListenAndServe(cfg.ListenAddr, SetupRouter()))
}

// SetupDependencies wires storage, loader, cache and templates from cfg
func SetupDependencies(c *config.Config) error {
	cfg = c

	var err error
	store, err = storage.New(cfg.DataDirectory)
	if err != nil {
		return fmt.Errorf("failed to open data directory: %w", err)
	}

	opts, err := dataloader.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	loader = dataloader.New(store, opts)
	datasets = cache.New[*models.Dataset](cfg.CacheTTL, cache.WithObserver[*models.Dataset](metrics.Hooks{}))

	renderer, err = templates.New(cfg.TemplatesDirectory, cfg.Debug)
	if err != nil {
		log.Printf("Warning: could not load templates: %v", err)
	}

	dashboard.Initialize(loader, datasets, renderer, cfg)
	system.Initialize(cfg, store, loader, datasets)
	return nil
}

// SetupRouter builds the HTTP routes
func SetupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	fileServer := http.FileServer(http.Dir(cfg.StaticDirectory))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	})
	r.Handle("/metrics", promhttp.Handler())

	dashboard.RegisterRoutes(r)
	system.RegisterRoutes(r)

	return r
}

// unlockStorage unlocks an encrypted data directory with password, or
// prompts for it when running on a terminal
func unlockStorage(password string) error {
	if !store.IsEncrypted() {
		return nil
	}

	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errors.New("data directory is encrypted: set VISOR_PASSWORD")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(string(raw))
	}

	if err := store.Unlock(password); err != nil {
		return err
	}
	log.Println("Data directory unlocked")
	return nil
}
