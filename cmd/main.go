package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/config"
	"github.com/xhad/askdocs/pkg/extract"
	"github.com/xhad/askdocs/pkg/llm"
	"github.com/xhad/askdocs/pkg/pipeline"
	"github.com/xhad/askdocs/pkg/ranker"
	"github.com/xhad/askdocs/pkg/segmenter"
	"github.com/xhad/askdocs/pkg/store"
	"github.com/xhad/askdocs/pkg/synth"
	"github.com/xhad/askdocs/pkg/watcher"
	"github.com/xhad/askdocs/server"
)

type options struct {
	configPath string
	ownerID    string
	watchDir   string
	serve      bool
	port       int
	citations  bool
	followUps  bool
}

func main() {
	opts, cfg := parseFlags()

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(opts, cfg); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (options, *config.Config) {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.ownerID, "owner", "local", "Owner ID for stored documents")
	flag.StringVar(&opts.watchDir, "watch", "", "Directory to watch for new documents")
	flag.BoolVar(&opts.serve, "serve", false, "Run the HTTP server instead of the chat loop")
	flag.BoolVar(&opts.citations, "citations", true, "Include citations in answers")
	flag.BoolVar(&opts.followUps, "followups", false, "Suggest follow-up questions after each answer")

	ollamaURL := flag.String("ollama-url", "", "Ollama server URL")
	dbURL := flag.String("db-url", "", "PostgreSQL connection string")
	model := flag.String("model", "", "LLM model to use")
	embedModel := flag.String("embed-model", "", "Embedding model to use")
	table := flag.String("table", "", "PostgreSQL table name")
	vectorDim := flag.Int("vector-dim", 0, "Vector dimension")
	topK := flag.Int("top-k", 0, "Number of chunks to retrieve")
	minSimilarity := flag.Float64("min-similarity", 0, "Minimum similarity threshold")
	chunkSize := flag.Int("chunk-size", 0, "Maximum size of text chunks")
	port := flag.Int("port", 0, "HTTP server port")
	flag.Parse()

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Command line flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ollama-url":
			cfg.LLM.BaseURL = *ollamaURL
		case "db-url":
			cfg.Database.URL = *dbURL
		case "model":
			cfg.LLM.Model = *model
		case "embed-model":
			cfg.LLM.EmbedModel = *embedModel
		case "table":
			cfg.Database.TableName = *table
		case "vector-dim":
			cfg.Database.VectorDim = *vectorDim
		case "top-k":
			cfg.Retrieval.TopK = *topK
		case "min-similarity":
			cfg.Retrieval.MinSimilarity = *minSimilarity
		case "chunk-size":
			cfg.Segmenter.MaxChunkSize = *chunkSize
		case "port":
			cfg.Server.Port = *port
		}
	})

	return opts, cfg
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(opts options, cfg *config.Config) error {
	ctx := context.Background()

	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbedModel,
		BaseURL:   cfg.LLM.BaseURL,
		BatchSize: cfg.Database.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	seg := segmenter.NewWithConfig(segmenter.Config{
		MaxChunkSize: cfg.Segmenter.MaxChunkSize,
		Overlap:      cfg.Segmenter.Overlap,
	})

	rank := ranker.NewWithConfig(ranker.Config{
		TopK:             cfg.Retrieval.TopK,
		MinSimilarity:    cfg.Retrieval.MinSimilarity,
		ExpandContext:    cfg.Retrieval.ExpandContext,
		MaxContextLength: cfg.Retrieval.MaxContextLength,
		Neighbors:        vectorStore,
	})

	syn := synth.NewWithConfig(synth.Config{
		MaxContextChars: cfg.Synthesis.MaxContextChars,
		MaxAnswerTokens: cfg.LLM.MaxAnswerTokens,
		Temperature:     cfg.LLM.Temperature,
	}, generator)

	pipe := pipeline.New(seg, rank, syn, embedder, vectorStore, cfg.Retrieval.TopK)
	extractor := extract.NewWithConfig(extract.Config{})

	// Ingest any sources given as arguments
	if args := flag.Args(); len(args) > 0 {
		if err := ingestSources(ctx, pipe, extractor, args, opts.ownerID); err != nil {
			return err
		}
	}

	if opts.watchDir != "" {
		go watchAndIngest(ctx, pipe, extractor, opts)
	}

	if opts.serve {
		srv := server.New(pipe, extractor, server.Config{
			Port:             cfg.Server.Port,
			OwnerID:          opts.ownerID,
			IncludeCitations: opts.citations,
		})
		return srv.ListenAndServe()
	}

	return chatLoop(ctx, pipe, opts)
}

func ingestSources(ctx context.Context, pipe *pipeline.Pipeline, extractor *extract.Extractor, sources []string, ownerID string) error {
	bar := getProgressBar(len(sources), "📄 Ingesting documents...")
	start := time.Now()
	totalChunks := 0

	for i, src := range sources {
		doc, err := extractDocument(ctx, extractor, src)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %v", src, err)
		}

		ids, err := pipe.Ingest(ctx, *doc, ownerID)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %v", src, err)
		}
		totalChunks += len(ids)
		bar.Add(1)

		elapsed := time.Since(start).Seconds()
		rate := float64(i+1) / elapsed
		bar.Describe(color.BlueString("📄 Ingesting documents... (%.1f docs/sec)", rate))
	}
	bar.Finish()
	color.Green("\n✓ Stored %d chunks from %d documents\n", totalChunks, len(sources))
	return nil
}

func extractDocument(ctx context.Context, extractor *extract.Extractor, src string) (*models.Document, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return extractor.URL(ctx, src)
	}
	return extractor.File(src)
}

func watchAndIngest(ctx context.Context, pipe *pipeline.Pipeline, extractor *extract.Extractor, opts options) {
	w, err := watcher.NewWithConfig(watcher.Config{Dir: opts.watchDir})
	if err != nil {
		color.Red("watch failed: %v", err)
		return
	}

	color.Blue("Watching %s for new documents", opts.watchDir)
	for path := range w.Watch(ctx) {
		doc, err := extractor.File(path)
		if err != nil {
			color.Red("failed to extract %s: %v", path, err)
			continue
		}
		ids, err := pipe.Ingest(ctx, *doc, opts.ownerID)
		if err != nil {
			color.Red("failed to ingest %s: %v", path, err)
			continue
		}
		color.Green("✓ Ingested %s (%d chunks)", doc.Filename, len(ids))
	}
}

func chatLoop(ctx context.Context, pipe *pipeline.Pipeline, opts options) error {
	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	var history []models.ChatTurn

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		spinner := getSpinner("🔍 Searching documents...")
		result, err := pipe.Ask(ctx, pipeline.AskRequest{
			Query:            query,
			OwnerID:          opts.ownerID,
			History:          history,
			IncludeCitations: opts.citations,
		})
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("Assistant: %s\n", result.Answer)

		if len(result.Citations) > 0 {
			fmt.Println()
			color.Yellow("Sources:")
			for i, c := range result.Citations {
				location := c.Filename
				if c.SectionHeader != "" {
					location += " › " + c.SectionHeader
				}
				if c.PageNumber > 0 {
					location += fmt.Sprintf(" (p. %d)", c.PageNumber)
				}
				color.Yellow("  [%d] %s (%.2f)", i+1, location, c.SimilarityScore)
			}
		}
		color.Magenta("Confidence: %.0f%% · %d chunks · %.2fs",
			result.ConfidenceScore*100, result.RetrievedChunkCount, result.ProcessingTime)

		if opts.followUps {
			chunks, _ := pipe.Retrieve(ctx, query, types.SearchFilter{OwnerID: opts.ownerID})
			if suggestions := pipe.FollowUps(ctx, query, result.Answer, chunks); len(suggestions) > 0 {
				color.Blue("\nYou could also ask:")
				for _, s := range suggestions {
					color.Blue("  • %s", s)
				}
			}
		}

		history = append(history, models.ChatTurn{Role: "user", Content: query})
		history = append(history, models.ChatTurn{Role: "assistant", Content: result.Answer})
	}

	return nil
}
