package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/stromboli/pkg/chat"
	"github.com/go-go-golems/stromboli/pkg/events"
	"github.com/go-go-golems/stromboli/pkg/inference/provider/openaistream"
	"github.com/go-go-golems/stromboli/pkg/inference/runloop"
	"github.com/go-go-golems/stromboli/pkg/pricing"
	"github.com/go-go-golems/stromboli/pkg/usage"
)

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Run a prompt through the step loop with the demo tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args[0])
		},
	}

	cmd.Flags().String("model", "gpt-4o-mini", "model id")
	cmd.Flags().String("api-key", "", "provider API key (or STROMBOLI_API_KEY / OPENAI_API_KEY)")
	cmd.Flags().String("base-url", "", "OpenAI-compatible API base URL")
	cmd.Flags().String("system", "You are a helpful assistant.", "system prompt")
	cmd.Flags().Int("max-steps", runloop.DefaultMaxSteps, "maximum request/response cycles per run")
	cmd.Flags().Bool("thinking", false, "stream reasoning output when the model provides it")
	cmd.Flags().StringSlice("image", nil, "image file to attach to the first step")
	cmd.Flags().String("pricing-file", "", "local YAML pricing catalog (defaults to the LiteLLM table)")
	cmd.Flags().String("usage-ledger", "", "append per-run usage reports to this JSONL file")
	cmd.Flags().Bool("verbose", false, "print tool and usage events")

	for _, flag := range []string{
		"model", "api-key", "base-url", "system", "max-steps",
		"thinking", "pricing-file", "usage-ledger", "verbose",
	} {
		cobra.CheckErr(viper.BindPFlag(flag, cmd.Flags().Lookup(flag)))
	}

	return cmd
}

func runChat(cmd *cobra.Command, prompt string) error {
	apiKey := viper.GetString("api-key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return errors.New("no API key configured")
	}

	var clientOptions []openaistream.ClientOption
	if baseURL := viper.GetString("base-url"); baseURL != "" {
		clientOptions = append(clientOptions, openaistream.WithBaseURL(baseURL))
	}
	client := openaistream.NewClient(apiKey, clientOptions...)

	var fetcher pricing.CatalogFetcher
	if pricingFile := viper.GetString("pricing-file"); pricingFile != "" {
		fetcher = pricing.NewFileFetcher(pricingFile)
	} else {
		fetcher = pricing.NewHTTPFetcher("")
	}
	cache := pricing.NewCache(fetcher)

	var usageSink usage.Sink = usage.LogSink{}
	if ledger := viper.GetString("usage-ledger"); ledger != "" {
		usageSink = usage.MultiSink{usage.LogSink{}, usage.NewFileSink(ledger)}
	}

	registry, err := newDemoRegistry()
	if err != nil {
		return errors.Wrap(err, "failed to build tool registry")
	}

	images, err := loadImages(viper.GetStringSlice("image"))
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() { _ = router.Close() }()

	if viper.GetBool("verbose") {
		router.AddHandler("activity", "chat", printActivity(cmd.OutOrStdout()))
	}

	loop := runloop.NewLoop(client,
		runloop.WithModel(viper.GetString("model")),
		runloop.WithMaxSteps(viper.GetInt("max-steps")),
		runloop.WithThinking(viper.GetBool("thinking")),
		runloop.WithPricingCache(cache),
		runloop.WithUsageSink(usageSink),
	)

	conversation := chat.Conversation{
		chat.NewMessage(chat.RoleSystem, viper.GetString("system")),
		chat.NewMessage(chat.RoleUser, prompt),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runWithRouter(ctx, router, func(ctx context.Context) error {
		sinkCtx := events.WithEventSinks(ctx, events.NewWatermillSink(router.Publisher, "chat"))

		out := cmd.OutOrStdout()
		emit := func(c runloop.Chunk) {
			switch c.Part {
			case runloop.PartText:
				fmt.Fprint(out, c.Delta)
			case runloop.PartReasoning:
				fmt.Fprint(cmd.ErrOrStderr(), c.Delta)
			case runloop.PartToolCall:
				fmt.Fprintf(out, "\n[tool] %s\n", c.Delta)
			case runloop.PartError:
				fmt.Fprintf(cmd.ErrOrStderr(), "\nerror: %s\n", c.Delta)
			}
		}

		result, err := loop.Run(sinkCtx, conversation, registry, emit,
			runloop.WithImages(images))
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		if result.Aborted {
			fmt.Fprintln(cmd.ErrOrStderr(), "interrupted")
		}

		log.Info().
			Int("steps", result.Steps).
			Float64("cost_usd", result.Usage.CostUSD).
			Bool("estimated", result.Usage.Estimated).
			Msg("run finished")
		return nil
	})
}

// runWithRouter runs the event router next to worker on one shared
// cancellable context, so the router shuts down as soon as the worker
// returns. The worker starts once the router is running.
func runWithRouter(ctx context.Context, router *events.EventRouter, worker func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return worker(ctx)
	})
	return eg.Wait()
}

func loadImages(paths []string) ([]*chat.ImageContent, error) {
	var images []*chat.ImageContent
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image %s", path)
		}
		images = append(images, &chat.ImageContent{
			MediaType:    mediaTypeForPath(path),
			ImageContent: data,
			ImageName:    filepath.Base(path),
		})
	}
	return images, nil
}

func mediaTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
