// Package main is the entry point for the deploy-manager management server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pandeptwidyaop/deploy-manager/internal/config"
	"github.com/pandeptwidyaop/deploy-manager/internal/database"
	"github.com/pandeptwidyaop/deploy-manager/internal/logging"
	"github.com/pandeptwidyaop/deploy-manager/internal/metrics"
	"github.com/pandeptwidyaop/deploy-manager/internal/router"
	"github.com/pandeptwidyaop/deploy-manager/internal/service"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
	"github.com/pandeptwidyaop/deploy-manager/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Check for subcommands first
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Println(version.String("deploy-manager"))
			os.Exit(0)
		case "service":
			if err := runService(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "service: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("deploy-manager"))
		os.Exit(0)
	}

	cfg := loadConfig(*configPath)
	logging.Setup(cfg.Log)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not load config, using defaults")
		return config.Default()
	}
	return cfg
}

func run(cfg *config.Config) error {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database")
		}
	}()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if cfg.Auth.Token == "" {
		log.Warn().Msg("auth.token is empty, the API is not authenticated")
	}

	m := metrics.New()
	v := validation.New()
	repos := services.NewRepositoryService()
	instanceService := services.NewInstanceService(db, v)
	executorService := services.NewExecutorService(db, cfg, m)
	deployService := services.NewDeployService(instanceService, repos, services.NewBackupService(), executorService)

	gin.SetMode(gin.ReleaseMode)
	r := router.New(cfg, router.Services{
		Instances: instanceService,
		Rest:      services.NewRestService(db, v, repos),
		Deploy:    deployService,
		Executor:  executorService,
		Audit:     services.NewAuditService(db),
		Metrics:   m,
	})
	defer r.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("version", version.Version).Str("addr", addr).Str("prefix", cfg.Server.PathPrefix).Msg("deploy-manager starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runService(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: deploy-manager service install|uninstall|status [-config path] [-user name]")
	}

	fs := flag.NewFlagSet("service "+args[0], flag.ExitOnError)
	def := service.DefaultUnitConfig()
	configPath := fs.String("config", def.ConfigPath, "config file the unit starts the server with")
	user := fs.String("user", def.User, "user the unit runs as")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "install":
		unit := def
		unit.ConfigPath = *configPath
		unit.User = *user
		unit.ReadWritePaths = instancePaths(*configPath)
		if err := service.Install(unit); err != nil {
			return err
		}
		fmt.Println("deploy-manager service installed and started")
	case "uninstall":
		if err := service.Uninstall(); err != nil {
			return err
		}
		fmt.Println("deploy-manager service removed")
	case "status":
		st, err := service.Query()
		if err != nil {
			return err
		}
		fmt.Printf("installed: %t\nenabled:   %t\nrunning:   %t (%s/%s)\n", st.Installed, st.Enabled, st.Running, st.ActiveState, st.SubState)
	default:
		return fmt.Errorf("unknown service command %q", args[0])
	}
	return nil
}

// instancePaths collects the directories the stored instances build into, so
// the unit can write there. Web roots are moved and recreated, which needs
// their parent.
func instancePaths(configPath string) []string {
	cfg := loadConfig(configPath)
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil
	}
	defer func() { _ = db.Close() }()
	if err := db.Migrate(); err != nil {
		return nil
	}

	v := validation.New()
	instances, err := services.NewInstanceService(db, v).List()
	if err != nil {
		return nil
	}
	rest, err := services.NewRestService(db, v, services.NewRepositoryService()).List()
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var paths []string
	add := func(candidates ...string) {
		for _, p := range candidates {
			if p != "" && !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	for _, inst := range instances {
		add(inst.Path, filepath.Dir(inst.WebRoot), inst.BackupsDir)
	}
	for _, inst := range rest {
		add(inst.Path)
	}
	return paths
}
