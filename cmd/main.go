package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"guideline-rag/internal/assessment"
	"guideline-rag/internal/chat"
	"guideline-rag/internal/chunker"
	"guideline-rag/internal/config"
	"guideline-rag/internal/embedding"
	"guideline-rag/internal/helper"
	"guideline-rag/internal/ingest"
	"guideline-rag/internal/models"
	"guideline-rag/internal/patients"
	"guideline-rag/internal/reasoning"
	"guideline-rag/internal/retrieval"
	"guideline-rag/internal/server"
	"guideline-rag/internal/vectorindex"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	ingestFile := flag.String("ingest", "", "Path to a guideline document to ingest")
	query := flag.String("query", "", "Free-text guideline search query")
	assessID := flag.String("assess", "", "Patient ID to assess against the guidelines")
	seedFile := flag.String("seed", "", "Patient JSON file to load into the configured patient database")
	serve := flag.Bool("serve", false, "Start the HTTP API server")
	exportPath := flag.String("export", "", "Export the vector collection to the given path")
	reset := flag.Bool("reset", false, "Delete the vector collection before other actions")
	mock := flag.Bool("mock", false, "Use deterministic mock embedding and reasoning backends")
	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("Config file not loaded, using defaults")
		cfg = config.Default()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("Invalid configuration")
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg, *mock)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing components")
	}
	defer app.close()

	if *reset {
		runReset(app)
	}

	switch {
	case *ingestFile != "":
		runIngest(ctx, app, *ingestFile)
	case *query != "":
		runQuery(ctx, app, *query)
	case *assessID != "":
		runAssess(ctx, app, *assessID)
	case *seedFile != "":
		runSeed(ctx, app, *seedFile)
	case *exportPath != "":
		runExport(app, *exportPath)
	case *serve:
		runServe(ctx, cfg, app)
	case *reset:
		// reset alone is a complete action
	default:
		flag.Usage()
	}
}

// app holds the wired component graph for one process.
type app struct {
	index    *vectorindex.Index
	pipeline *retrieval.Pipeline
	ingestor *ingest.Ingestor
	engine   *assessment.Engine
	chatter  *chat.Engine
	store    patients.Store
}

func buildApp(ctx context.Context, cfg *config.Config, mock bool) (*app, error) {
	index, err := vectorindex.Open(vectorindex.Config{
		Path:          cfg.Store.Path,
		Collection:    cfg.Store.Collection,
		Dimension:     cfg.Store.Dimension,
		Epsilon:       cfg.Store.Epsilon,
		InMemory:      cfg.Store.InMemory,
		EncryptionKey: cfg.Store.EncryptionKey,
	})
	if err != nil {
		return nil, err
	}

	var embedder embedding.Port
	var reasoner reasoning.Port
	if mock || cfg.EmbedLLM.Mock {
		embedder = embedding.NewMockEmbedder(cfg.Store.Dimension)
	} else {
		embedder, err = embedding.NewOllamaEmbedder(&cfg.EmbedLLM, cfg.Store.Dimension)
		if err != nil {
			return nil, err
		}
	}
	if mock || cfg.ReasonLLM.Mock {
		reasoner = reasoning.NewMockReasoner("")
	} else {
		reasoner, err = reasoning.NewLLMReasoner(&cfg.ReasonLLM, 1)
		if err != nil {
			return nil, err
		}
	}

	var store patients.Store
	if cfg.Patients.Backend == "postgres" {
		store, err = patients.OpenPostgresStore(ctx, cfg.Database.URL, cfg.Database.Debug)
	} else {
		store, err = patients.OpenFileStore(cfg.Patients.File)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Patient store unavailable, assessments disabled")
		store = emptyStore{}
	}

	pipeline := retrieval.NewPipeline(embedder, index, retrieval.Config{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
	})

	ch := chunker.New(chunker.Config{
		TargetSize:   cfg.Chunker.TargetSize,
		OverlapSize:  cfg.Chunker.OverlapSize,
		MinParagraph: cfg.Chunker.MinParagraph,
		IDPrefix:     cfg.Chunker.IDPrefix,
	})

	return &app{
		index:    index,
		pipeline: pipeline,
		ingestor: ingest.New(ch, embedder, index, ingest.Config{
			BatchSize:    cfg.Retrieval.BatchSize,
			Workers:      cfg.Retrieval.Workers,
			ShowProgress: true,
		}),
		engine:  assessment.NewEngine(pipeline, reasoner, store, cfg.Retrieval.AssessmentTopK),
		chatter: chat.NewEngine(pipeline, reasoner, chat.NewSessionStore(), cfg.Retrieval.TopK),
		store:   store,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing patient store")
	}
}

func runIngest(ctx context.Context, a *app, filePath string) {
	report, err := a.ingestor.IngestFile(ctx, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	color.Green("Ingested %s: %d pages, %d chunks indexed (%d total in collection)",
		filePath, report.Pages, report.Indexed, a.index.Count())
	for _, w := range report.Warnings {
		color.Yellow("warning: %s", w)
	}
}

func runQuery(ctx context.Context, a *app, query string) {
	results, err := a.pipeline.SearchAndFormat(ctx, query, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching guidelines")
	}

	color.Cyan("Query: %s\n", query)
	if len(results.Chunks) == 0 {
		color.Yellow("%s", results.ContextText)
		return
	}
	for _, c := range results.Citations {
		color.Green("[%s, page %d] score %.3f", c.Source, c.Page, c.RelevanceScore)
		fmt.Printf("%s\n\n", c.Excerpt)
	}
}

func runAssess(ctx context.Context, a *app, patientID string) {
	response, err := a.engine.AssessPatient(ctx, patientID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error assessing patient")
	}

	color.Cyan("Patient: %s", response.PatientID)
	color.Green("Assessment: %s (confidence %.2f)", response.Assessment, response.ConfidenceScore)
	fmt.Printf("\n%s\n\n", response.Reasoning)
	helper.PrettyPrint(response.Citations)
}

func runSeed(ctx context.Context, a *app, filePath string) {
	dst, ok := a.store.(patients.Upserter)
	if !ok {
		log.Fatal().Msg("Configured patient store is read-only, seeding needs the postgres backend")
	}

	src, err := patients.OpenFileStore(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading patient file")
	}
	records, err := src.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing patient records")
	}

	n, err := patients.Seed(ctx, dst, records)
	if err != nil {
		log.Fatal().Err(err).Int("written", n).Msg("Error seeding patient records")
	}
	color.Green("Seeded %d patient records from %s", n, filePath)
}

func runExport(a *app, path string) {
	if err := a.index.Export(path); err != nil {
		log.Fatal().Err(err).Msg("Error exporting collection")
	}
	color.Green("Exported collection to %s", path)
}

func runReset(a *app) {
	if err := a.index.DeleteCollection(); err != nil {
		log.Fatal().Err(err).Msg("Error resetting collection")
	}
	color.Yellow("Collection reset")
}

func runServe(ctx context.Context, cfg *config.Config, a *app) {
	report, err := a.ingestor.EnsureIndexed(ctx, cfg.Source.Path, cfg.Source.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Error bootstrapping guideline index")
	}
	if report.Indexed > 0 {
		color.Green("Bootstrapped index with %d guideline chunks", report.Indexed)
	}

	router := server.NewRouter(server.RouterDeps{
		Assessor: a.engine,
		Chat:     a.chatter,
		Search:   a.pipeline,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}
}

// emptyStore keeps the CLI usable when no patient backend is configured.
type emptyStore struct{}

func (emptyStore) GetByID(context.Context, string) (models.PatientRecord, error) {
	return models.PatientRecord{}, patients.ErrNotFound
}
func (emptyStore) List(context.Context) ([]models.PatientRecord, error) { return nil, nil }
func (emptyStore) Close() error                                         { return nil }
