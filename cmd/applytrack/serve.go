package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/applytrack-api/api/swagger"
	"github.com/noah-isme/applytrack-api/internal/handler"
	"github.com/noah-isme/applytrack-api/internal/middleware"
	"github.com/noah-isme/applytrack-api/pkg/config"
	"github.com/noah-isme/applytrack-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/applytrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/applytrack-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the automation scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Port
	if servePort > 0 {
		port = servePort
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.cfg.Automation.Enabled {
		a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env),
			zap.Bool("automation", a.cfg.Automation.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(a *app) *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.ResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.metrics, a.readinessChecks())
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	automationHandler := handler.NewAutomationHandler(a.automation, nil)
	if a.cfg.Automation.Enabled {
		automationHandler = handler.NewAutomationHandler(a.automation, a.scheduler)
	}
	rulesHandler := handler.NewRuleConfigHandler(a.rules)

	api := r.Group(a.cfg.APIPrefix, middleware.JWT(middleware.NewTokenVerifier(a.cfg.JWT)))
	group := api.Group("/automation")
	group.GET("/rules", rulesHandler.Get)
	group.PUT("/rules", rulesHandler.Update)
	group.GET("/preview", automationHandler.Preview)
	group.POST("/run", automationHandler.Run)
	group.POST("/evaluate", automationHandler.Evaluate)
	group.GET("/applications/:id/inactivity", automationHandler.Inactivity)
	group.GET("/runs", automationHandler.ListRuns)
	group.GET("/runs/:id", automationHandler.GetRun)
	group.GET("/runs/:id/export", automationHandler.ExportRun)

	return r
}
