// Command mispctl lists and invokes misperer tools directly, without an MCP client.
//
//	mispctl list
//	mispctl call search_by_tags '{"tags":["tlp:white"]}'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/i2y/misperer/configs"
	"github.com/i2y/misperer/internal/adapter/outbound/mispclient"
	"github.com/i2y/misperer/internal/domain"
	"github.com/i2y/misperer/internal/usecase"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, out io.Writer) error {
	var envFile string
	var verbose bool
	flagSet := pflag.NewFlagSet("mispctl", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if len(args) == 0 {
		return errors.New("usage: mispctl [flags] list | call <tool> [json-arguments]")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := configs.Load(envFile)
	if err != nil {
		return err
	}
	catalog, err := usecase.NewCatalog(usecase.CatalogOptions{ReadOnly: cfg.ReadOnly})
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		return writeJSON(out, usecase.NewServeToolsUseCase(catalog, logger).Execute(context.Background()))
	case "call":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: mispctl call <tool> [json-arguments]")
		}
		arguments := map[string]any{}
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &arguments); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}
		client, err := mispclient.New(cfg.MISPURL, cfg.MISPKey,
			mispclient.NewHTTPClient(cfg.VerifyCert(), cfg.HTTPClientTimeout), logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		result, err := usecase.NewInvokeToolUseCase(catalog, client, logger).Execute(ctx, args[1], arguments)
		if err != nil {
			return err
		}
		return printResult(out, result)
	default:
		return fmt.Errorf("unknown command %q (want list or call)", args[0])
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints each text block; JSON blocks are re-indented.
func printResult(out io.Writer, result domain.Result) error {
	for _, block := range result.Content {
		var v any
		if json.Unmarshal([]byte(block.Text), &v) == nil {
			if err := writeJSON(out, v); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(out, block.Text); err != nil {
			return err
		}
	}
	if result.IsError {
		return errors.New("tool reported an error")
	}
	return nil
}
