// Package main implements the hcx-validator CLI. It downloads the HCX and
// NRCES implementation guides and validates FHIR resources against them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/bundle"
	"github.com/xtanion/integration-sdks/config"
	"github.com/xtanion/integration-sdks/pkg/logger"
	"github.com/xtanion/integration-sdks/validation"
)

// errInvalid signals that at least one resource failed validation. The
// report has already been printed.
var errInvalid = errors.New("validation failed")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	hcxIG      string
	nrcesIG    string
	workDir    string
	archive    string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "hcx-validator",
		Short:         "Validate FHIR resources against the HCX and NRCES implementation guides",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Configuration file (yaml, json or toml)")
	pf.StringVar(&g.hcxIG, "hcx-ig", "", "HCX implementation guide base path (the definitions archive URL)")
	pf.StringVar(&g.nrcesIG, "nrces-ig", "", "NRCES implementation guide base path (the definitions archive URL)")
	pf.StringVar(&g.workDir, "workdir", "", "Directory bundles are downloaded and extracted into")
	pf.StringVar(&g.archive, "archive", "", "Archive fetched under each base path, e.g. "+validation.PublishedArchive)
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Log progress to stderr")

	root.AddCommand(newValidateCmd(g), newFetchCmd(g), newVersionCmd())
	return root
}

// load reads the configuration file and applies the flag overrides. Only the
// keys the CLI needs are read, so the participant credentials may be absent.
func (g *globalFlags) load() (*config.Store, error) {
	values := map[string]any{}
	if g.hcxIG != "" {
		values[config.KeyHCXIGBasePath] = g.hcxIG
	}
	if g.nrcesIG != "" {
		values[config.KeyNRCESIGBasePath] = g.nrcesIG
	}
	if g.workDir != "" {
		values[config.KeyWorkDir] = g.workDir
	}

	opts := []config.Option{config.WithoutValidation()}
	if g.configFile != "" {
		opts = append(opts, config.WithFile(g.configFile))
	}
	store, err := config.New(values, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Validate([]string{config.KeyHCXIGBasePath, config.KeyNRCESIGBasePath}); err != nil {
		return nil, err
	}
	return store, nil
}

func (g *globalFlags) logger(store *config.Store) (*zap.Logger, error) {
	if !g.verbose {
		return zap.NewNop(), nil
	}
	cfg, err := store.LogConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Level == "" || cfg.Level == "info" {
		cfg.Level = "debug"
	}
	return logger.New(cfg)
}

// builder creates a chain builder honouring the configured work directory
// and fetch timeout.
func (g *globalFlags) builder(store *config.Store, log *zap.Logger, opts ...validation.BuilderOption) *validation.Builder {
	base := []validation.BuilderOption{
		validation.WithWorkDir(store.WorkDir()),
		validation.WithFetcher(bundle.NewFetcher(
			bundle.WithTimeout(store.FetchTimeout()),
			bundle.WithHeader("User-Agent", "hcx-validator/"+versionString()),
			bundle.WithFetchLogger(log),
		)),
		validation.WithExtractor(bundle.NewExtractor(bundle.WithExtractLogger(log))),
		validation.WithLogger(log),
	}
	if g.archive != "" {
		base = append(base, validation.WithArchiveName(g.archive))
	}
	return validation.NewBuilder(append(base, opts...)...)
}
