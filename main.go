package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"print-relay/internal/accounting"
	"print-relay/internal/archive"
	"print-relay/internal/cache"
	"print-relay/internal/config"
	"print-relay/internal/layout"
	"print-relay/internal/logger"
	"print-relay/internal/mailer"
	"print-relay/internal/printsvc"
	"print-relay/internal/render"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Env:    cfg.App.Env,
		App:    cfg.App.Name,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting print relay",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("mupdf", render.MuPDFAvailable))

	processor := layout.NewProcessor(newProcessorConfig(cfg.Render, log))

	store := cache.NewStore(cfg.Redis, log)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing source store", zap.Error(err))
		}
	}()

	accounts, err := accounting.Open(cfg.Accounting.DSN,
		accounting.WithLogger(log),
		accounting.WithAdmins(cfg.Accounting.AdminIDs...))
	if err != nil {
		log.Fatal("Failed to open accounting database", zap.Error(err))
	}
	defer func() {
		if err := accounts.Close(); err != nil {
			log.Error("Error closing accounting database", zap.Error(err))
		}
	}()

	arch, err := archive.New(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to configure archive", zap.Error(err))
	}

	svcCfg := printsvc.Config{
		Processor:    processor,
		Store:        store,
		Archive:      arch,
		Accounts:     accounts,
		PrinterEmail: cfg.SMTP.PrinterEmail,
		SpoolDir:     cfg.Spool.Dir,
		SessionTTL:   cfg.Redis.TTL,
		Logger:       log,
	}
	transport, err := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
		Logger:   log,
	})
	if err != nil {
		log.Warn("Mail transport disabled, print jobs cannot be submitted", zap.Error(err))
	} else {
		svcCfg.Mailer = transport
	}

	svc, err := printsvc.New(svcCfg)
	if err != nil {
		log.Fatal("Failed to create print service", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Print relay is running"))
	})
	path, handler := printsvc.NewHandler(svc)
	mux.Handle(path, printsvc.CORS(cfg.App.AllowedOrigins, log, handler))

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

// newProcessorConfig wires whichever external tools are installed. A
// missing tool disables its feature instead of failing startup.
func newProcessorConfig(cfg config.RenderConfig, log *zap.Logger) *layout.ProcessorConfig {
	pc := &layout.ProcessorConfig{Logger: log}
	toolCfg := func(binary string) *render.Config {
		return &render.Config{
			BinaryPath: binary,
			Timeout:    cfg.Timeout,
			TempDir:    cfg.TempDir,
			Logger:     log,
		}
	}

	switch {
	case cfg.Backend == "mupdf" && !render.MuPDFAvailable:
		log.Warn("MuPDF backend requested but the binary was built without the mupdf tag, falling back to Ghostscript")
	case cfg.Backend == "mupdf":
		if mu, err := render.NewMuPDF(log); err == nil {
			pc.Rasterizer = mu
		} else {
			log.Warn("MuPDF backend unavailable, falling back to Ghostscript", zap.Error(err))
		}
	}
	if pc.Rasterizer == nil {
		if gs, err := render.NewGhostscript(toolCfg(cfg.Ghostscript)); err == nil {
			pc.Rasterizer = gs
		} else {
			log.Warn("Ghostscript not found, previews and grayscale are disabled", zap.Error(err))
		}
	}

	if lo, err := render.NewLibreOffice(toolCfg(cfg.Soffice)); err == nil {
		pc.Office = lo
	} else {
		log.Warn("LibreOffice not found, office documents are rejected", zap.Error(err))
	}

	if ff, err := render.NewFFmpeg(toolCfg(cfg.FFmpeg)); err == nil {
		pc.Transcoder = ff
	} else {
		log.Warn("FFmpeg not found, HEIC photos are rejected", zap.Error(err))
	}

	return pc
}
