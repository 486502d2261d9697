package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/mpriessner/ai-lab-assistent-v1/config"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/api"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/application"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra/anthropic"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra/audio"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra/elevenlabs"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra/gemini"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra/openai"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/middleware"
	"github.com/mpriessner/ai-lab-assistent-v1/web"
)

// textModel is what the breakdown and chat features need from a
// text-generation provider.
type textModel interface {
	application.ProcedureBreaker
	application.ChatResponder
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := createTextModel(cfg, logger)
	tts := elevenlabs.NewClient(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.ModelID)
	stt := openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Language)
	recorder := audio.NewRecorder(cfg.Audio.SampleRate, logger)

	sessions := application.NewSessionStore(cfg.SessionTTLDuration(), logger)
	sessions.StartSweeper(ctx, time.Minute)

	assistant := application.NewAssistant(sessions, model, model, tts, stt, recorder, logger)
	handler := api.NewHandler(assistant, logger)
	limiter := api.NewRateLimiter(cfg.Server.RateLimit, time.Minute)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(limiter.Middleware)

	handler.RegisterRoutes(r)
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // provider calls can be slow
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("server listening",
			"addr", srv.Addr,
			"provider", cfg.GenAI.Provider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func createTextModel(cfg *config.Config, logger *slog.Logger) textModel {
	switch cfg.GenAI.Provider {
	case "anthropic":
		return anthropic.NewClaudeClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	case "gemini":
		return gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model)
	default:
		logger.Warn("unknown genai provider, using gemini", "provider", cfg.GenAI.Provider)
		return gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
