// Command describe-batch generates descriptions for a directory of
// images using the vision description service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visionkit/describe-client/pkg/cache"
	"github.com/visionkit/describe-client/pkg/logging"
	"github.com/visionkit/describe-client/pkg/orchestrate"
	"github.com/visionkit/describe-client/pkg/vision"
)

var (
	dir          = flag.String("dir", ".", "directory of images to describe")
	baseURL      = flag.String("base-url", "https://api.visionkit.dev", "vision service base URL")
	fieldsFlag   = flag.String("fields", "alt_text", "comma-separated fields: alt_text, caption, long_description")
	model        = flag.String("model", "default", "model backend")
	language     = flag.String("language", "en", "output language code")
	prompt       = flag.String("prompt", "", "custom prompt override")
	batchSize    = flag.Int("batch-size", 10, "maximum images per service call")
	pollInterval = flag.Duration("poll-interval", 2*time.Second, "wait between poll attempts")
	pollAttempts = flag.Int("poll-attempts", 30, "maximum poll attempts per job")
	redisAddr    = flag.String("redis", "", "Redis address for caching and rate limit state (optional)")
	cacheTTL     = flag.Duration("cache-ttl", 24*time.Hour, "description cache TTL")
	verbose      = flag.Bool("verbose", false, "enable debug logging")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func main() {
	flag.Parse()

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.Setup(logging.Config{Level: level, Pretty: true, Output: os.Stderr})

	apiKey := os.Getenv("VISION_API_KEY")
	if apiKey == "" {
		logger.Fatal().Msg("VISION_API_KEY environment variable is required")
	}

	fields, err := parseFields(*fieldsFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid -fields")
	}

	items, err := loadImages(*dir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *dir).Msg("Failed to load images")
	}
	if len(items) == 0 {
		logger.Fatal().Str("dir", *dir).Msg("No images found")
	}

	ctx := context.Background()

	clientCfg := vision.DefaultConfig(*baseURL, apiKey)

	runCfg := orchestrate.DefaultConfig(fields...)
	runCfg.Model = *model
	runCfg.Language = *language
	runCfg.Prompt = *prompt
	runCfg.BatchSize = *batchSize
	runCfg.PollInterval = *pollInterval
	runCfg.MaxPollAttempts = *pollAttempts
	runCfg.CacheTTL = *cacheTTL
	runCfg.Progress = func(ev orchestrate.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "%s: %d/%d images\n", ev.Phase, ev.Completed, ev.Total)
	}

	if *redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", *redisAddr).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		clientCfg.Redis = redisClient
		runCfg.Cache = cache.NewManager(redisClient)
	}

	client, err := vision.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create vision client")
	}

	runner, err := orchestrate.NewRunner(client, runCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create runner")
	}

	result, err := runner.Run(ctx, items)
	if err != nil {
		if errors.Is(err, orchestrate.ErrNoResults) {
			printErrors(result)
			logger.Error().Msg("No descriptions could be produced")
			os.Exit(1)
		}
		logger.Fatal().Err(err).Msg("Run failed")
	}

	for _, item := range result.Results {
		fmt.Printf("%s\n", item.ItemID)
		for _, ft := range item.Fields {
			fmt.Printf("  %s (%s): %s\n", ft.Field, ft.Backend, ft.Text)
		}
	}

	printErrors(result)
	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", warning.Field, warning.Message)
	}
}

func printErrors(result *orchestrate.RunResult) {
	if result == nil {
		return
	}
	for _, fe := range result.FieldErrors {
		fmt.Fprintf(os.Stderr, "error: %s chunk %d: %s\n", fe.Field, fe.Chunk, fe.Message)
	}
}

// parseFields converts the -fields flag into validated field values.
func parseFields(raw string) ([]vision.Field, error) {
	var fields []vision.Field
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := vision.Field(part)
		if !field.Valid() {
			return nil, fmt.Errorf("unknown field %q", part)
		}
		fields = append(fields, field)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields given")
	}
	return fields, nil
}

// loadImages reads every image file directly under dir, using the file
// name as the item ID.
func loadImages(dir string) ([]vision.Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var items []vision.Item
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		payload, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		items = append(items, vision.Item{ID: entry.Name(), Payload: payload})
	}

	return items, nil
}
