package main

import (
	"context"
	"encoding/json"
	"flag"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/natep/cinesearch/internal/config"
	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/logger"
	"github.com/natep/cinesearch/internal/repository"
	"github.com/natep/cinesearch/internal/service"
	"github.com/natep/cinesearch/internal/storage"
)

// seed loads a movie catalog from a JSON file into the database. Titles
// without embeddings get one from the configured embedder so vector search
// works out of the box on a fresh install.
func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "cinesearch-seed",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	catalogPath := flag.String("catalog", "", "Path to the catalog JSON file")
	limit := flag.Int("limit", 0, "Maximum number of titles to load (0 = all)")
	embed := flag.Bool("embed", true, "Generate embeddings for titles that lack one")
	postersDir := flag.String("posters", "", "Directory of poster images to upload, named by poster key")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *catalogPath == "" {
		appLogger.Fatal("Missing required -catalog flag")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"catalog": *catalogPath,
		"limit":   *limit,
		"embed":   *embed,
	}).Info("Starting catalog seed")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	movieRepo := repository.NewMovieRepository(db)
	embedder := service.NewQueryEmbedder(&service.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
	})

	// Cancel on interrupt so a partial seed stops cleanly; upserts make
	// reruns safe.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Poster uploads need a configured bucket.
	var posterStore storage.ObjectStorage
	if *postersDir != "" {
		if cfg.Storage.Bucket == "" {
			appLogger.Fatal("-posters requires storage to be configured")
		}
		posterStore, err = storage.NewStorage(&storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize poster storage")
		}
		if err := posterStore.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure poster bucket")
		}
	}

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read catalog file")
	}

	var movies []domain.Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		appLogger.WithError(err).Fatal("Failed to parse catalog file")
	}
	if *limit > 0 && len(movies) > *limit {
		movies = movies[:*limit]
	}

	var loaded, embedded, posters, failed int
	for i := range movies {
		if ctx.Err() != nil {
			appLogger.Warn("Interrupted, stopping seed")
			break
		}
		m := &movies[i]

		if *embed && !m.HasEmbedding() {
			vec, err := embedder.EmbedQuery(ctx, embeddingText(m))
			if err != nil {
				appLogger.WithError(err).WithField("title", m.Title).Warn("Embedding failed, loading without vector")
			} else {
				m.Embedding = vec
				embedded++
			}
		}

		if err := movieRepo.Upsert(ctx, m); err != nil {
			appLogger.WithError(err).WithField("title", m.Title).Error("Failed to load title")
			failed++
			continue
		}
		loaded++

		if posterStore != nil && m.PosterKey != "" {
			uploaded, err := uploadPoster(ctx, posterStore, *postersDir, m.PosterKey)
			if err != nil {
				appLogger.WithError(err).WithField("title", m.Title).Warn("Poster upload failed")
			} else if uploaded {
				posters++
			}
		}
	}

	appLogger.WithFields(logger.Fields{
		"loaded":   loaded,
		"embedded": embedded,
		"posters":  posters,
		"failed":   failed,
	}).Info("Catalog seed finished")

	if failed > 0 {
		os.Exit(1)
	}
}

// uploadPoster pushes the local poster file for a title, skipping keys the
// bucket already holds so reruns stay cheap. Returns whether an object was
// written.
func uploadPoster(ctx context.Context, store storage.ObjectStorage, dir, key string) (bool, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	f, err := os.Open(filepath.Join(dir, key))
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := store.Upload(ctx, key, f, info.Size(), contentType); err != nil {
		return false, err
	}
	return true, nil
}

// embeddingText assembles the text a title is embedded from.
func embeddingText(m *domain.Movie) string {
	parts := []string{m.Title}
	if len(m.Genres) > 0 {
		parts = append(parts, strings.Join(m.Genres, " "))
	}
	if m.Plot != "" {
		parts = append(parts, m.Plot)
	}
	return strings.Join(parts, ". ")
}
