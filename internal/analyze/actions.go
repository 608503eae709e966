package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/cywujeremy/ai-crawling-strategist/pkg/db"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/oracle"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/strategist"
)

// AnalyzeAction runs one analysis: read HTML, derive the schema, print the
// selector configuration as JSON on stdout.
func AnalyzeAction(c *cli.Context) error {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	query := c.String("query")
	if query == "" {
		return fmt.Errorf("no extraction query provided via --query flag")
	}

	rawHTML, err := readInput(c.String("file"))
	if err != nil {
		return err
	}

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	client := &recordingOracle{inner: oracle.NewOpenAI(oracle.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: c.String("base-url"),
		Model:   c.String("model"),
	})}

	s, err := strategist.New(cfg, client, logger)
	if err != nil {
		return err
	}

	result, err := s.Analyze(c.Context, rawHTML, query)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	logger.Info("analysis complete",
		"stage", result.Stage,
		"segments", result.Segments,
		"confidence", result.Schema.Confidence,
		"total_tokens", result.Usage.TotalTokens)

	if dbPath := c.String("db"); dbPath != "" {
		if err := recordRun(dbPath, query, result, client.calls); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	output, err := json.MarshalIndent(result.Schema.SelectorConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode selector configuration: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

// readInput loads HTML from a file, or stdin when path is "-" or empty.
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// buildConfig starts from defaults, layers an optional YAML config file, then
// applies flag overrides.
func buildConfig(c *cli.Context) (strategist.Config, error) {
	cfg := strategist.DefaultConfig()

	if path := c.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if c.IsSet("chunk-size") {
		cfg.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("overlap") {
		cfg.OverlapSize = c.Int("overlap")
	}
	if c.IsSet("confidence-threshold") {
		cfg.ConfidenceThreshold = c.Float64("confidence-threshold")
	}
	if c.Bool("no-context") {
		cfg.PreserveContext = false
	}
	if c.Bool("no-validate") {
		cfg.EnableValidation = false
	}
	return cfg, nil
}

func recordRun(dbPath, query string, result *strategist.Result, calls []db.OracleCallRecord) error {
	database, err := db.OpenAt(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	schemaJSON, err := json.Marshal(result.Schema)
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	runID := uuid.NewString()
	if err := database.InsertRun(db.RunRecord{
		RunID:             runID,
		Query:             query,
		Stage:             string(result.Stage),
		Segments:          result.Segments,
		Confidence:        result.Schema.Confidence,
		ContainerSelector: result.Schema.Container.Selector,
		ItemSelector:      result.Schema.Item.Selector,
		SchemaJSON:        string(schemaJSON),
		InputTokens:       result.Usage.InputTokens,
		OutputTokens:      result.Usage.OutputTokens,
	}); err != nil {
		return err
	}
	for _, call := range calls {
		call.RunID = runID
		if _, err := database.InsertOracleCall(call); err != nil {
			return err
		}
	}
	return nil
}

// recordingOracle captures per-call accounting while delegating to the real
// client. The CLI runs one analysis per process, so no locking is needed.
type recordingOracle struct {
	inner oracle.Oracle
	calls []db.OracleCallRecord
}

func (r *recordingOracle) Name() string { return r.inner.Name() }

func (r *recordingOracle) Invoke(ctx context.Context, prompt string, opts oracle.InvokeOptions) (*oracle.Result, error) {
	result, err := r.inner.Invoke(ctx, prompt, opts)
	call := db.OracleCallRecord{Purpose: opts.Purpose, Success: err == nil}
	if err != nil {
		call.Error = err.Error()
	}
	if result != nil {
		call.InputTokens = result.Usage.InputTokens
		call.OutputTokens = result.Usage.OutputTokens
		call.LatencyMS = result.Latency.Milliseconds()
	}
	r.calls = append(r.calls, call)
	return result, err
}
