package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"model-promoter/internal/adapters/primary/http/handlers"
	"model-promoter/internal/adapters/primary/http/middleware"
	"model-promoter/internal/config"
	"model-promoter/internal/core/domain"
	"model-promoter/internal/core/services"
)

func newServeCmd(v *viper.Viper, build serviceBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the promotion trigger over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			initLogger(cfg)

			svc, cleanup, err := build(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return serve(cfg, svc)
		},
	}

	cmd.Flags().String("host", "", "address to listen on")
	cmd.Flags().Int("port", 0, "port to listen on")
	_ = v.BindPFlag("SERVER_HOST", cmd.Flags().Lookup("host"))
	_ = v.BindPFlag("SERVER_PORT", cmd.Flags().Lookup("port"))

	return cmd
}

func newRouter(svc *services.EvaluationService, defaults domain.RunContext) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	handlers.New(svc, defaults).RegisterRoutes(api)
	return router
}

func serve(cfg *config.Config, svc *services.EvaluationService) error {
	router := newRouter(svc, domain.RunContext{
		RunID:          cfg.Run.RunID,
		ExperimentName: cfg.Run.ExperimentName,
		Workspace:      cfg.Run.Workspace,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
