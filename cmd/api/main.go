package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tmc/langchaingo/embeddings"

	"sra-backend/cmd"
	"sra-backend/internal/api"
	"sra-backend/internal/billing"
	"sra-backend/internal/database"
	"sra-backend/internal/events"
	"sra-backend/internal/history"
	"sra-backend/internal/llm"
	"sra-backend/internal/sra"
	"sra-backend/internal/storage"
)

type APIConfig struct {
	DatabaseURL       string `env:"DATABASE_URL,notEmpty,required"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY,notEmpty,required"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID,notEmpty,required"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY,notEmpty,required"`
	S3Region          string `env:"AWS_REGION,notEmpty,required"`
	MediaBucketName   string `env:"MEDIA_BUCKET_NAME" envDefault:"sra-media"`
	APIPort           string `env:"API_PORT" envDefault:"8001"`
	AllowedOrigins    string `env:"ALLOWED_ORIGINS" envDefault:"*"`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	objects, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Bucket:          cfg.MediaBucketName,
	})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	model, err := llm.NewOpenAI(cfg.OpenAIAPIKey)
	if err != nil {
		log.Fatalf("Failed to create OpenAI client: %v", err)
	}
	embedder, err := embeddings.NewEmbedder(model)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	publisher, err := events.NewSocketIOPublisher()
	if err != nil {
		log.Fatalf("Failed to create socket.io server: %v", err)
	}

	orchestrator := sra.NewService(
		model,
		embedder,
		sra.NewDallEGenerator(cfg.OpenAIAPIKey),
		publisher,
		history.NewStore(db),
		billing.NewCreditService(db),
		objects,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// The socket transport stays outside the request timeout, connections are
	// long-lived.
	r.Handle("/socket.io/", publisher.Handler())

	apiHandler := api.NewSRAService(db, objects, orchestrator)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		apiHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
