// Command gerealm-schema validates schema files and prints the canonical
// schema they declare.
//
// Usage:
//
//	gerealm-schema [-legacy] [-engine=false] [-v] file...
//
// Files are YAML or JSON. The declarations of every file are normalized
// together, so objects may link to types declared in other files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/memengine"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/schema"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/schemafile"
)

var errUsage = errors.New("usage: gerealm-schema [-legacy] [-engine=false] [-v] file...")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newLogger(verbose bool, stderr io.Writer) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(stderr, "falling back to a no-op logger:", err)
		return zap.NewNop()
	}
	return logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gerealm-schema", flag.ContinueOnError)
	fs.SetOutput(stderr)
	legacy := fs.Bool("legacy", false, "accept the deprecated array-of-properties form")
	engine := fs.Bool("engine", true, "check links and primary keys against the in-memory engine rules")
	verbose := fs.Bool("v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	logger := newLogger(*verbose, stderr)
	defer logger.Sync()

	loader := schemafile.NewLoader(schemafile.WithLogger(logger))
	var declarations []any
	for _, name := range fs.Args() {
		decls, err := loader.LoadFile(ctx, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, d := range decls {
			declarations = append(declarations, d)
		}
	}

	normalizer := schema.NewNormalizer(
		schema.WithLegacyArrayProperties(*legacy),
		schema.WithLogger(logger),
	)
	schemas, err := normalizer.Realm(declarations...)
	if err != nil {
		return err
	}

	if *engine {
		session, err := memengine.NewEngine(memengine.WithLogger(logger)).Open(ctx, schemas)
		if err != nil {
			return err
		}
		if err := session.Close(); err != nil {
			return err
		}
		logger.Debug("engine accepted the schema", zap.Int("objectTypes", len(schemas)))
	}

	b, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", b)
	return err
}
