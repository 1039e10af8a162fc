package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/profile"
	"github.com/xtanion/integration-sdks/validation"
)

func newFetchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract both definition bundles and report what they contain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.load()
			if err != nil {
				return err
			}
			log, err := g.logger(store)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			b := g.builder(store, log)
			key := validation.Key{HCX: store.HCXIGBasePath(), NRCES: store.NRCESIGBasePath()}

			archives, err := b.FetchBundles(cmd.Context(), key)
			if err != nil {
				return err
			}
			dirs, err := b.ExtractBundles(key, archives)
			if err != nil {
				return err
			}
			bundles, err := b.LoadBundles(key, dirs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bundles for %s\n", key)
			fmt.Fprintf(out, "Directory: %s\n", b.KeyDir(key))
			printSet(cmd, "HCX", key.HCX, bundles.HCX)
			printSet(cmd, "NRCES", key.NRCES, bundles.NRCES)
			return nil
		},
	}
}

func printSet(cmd *cobra.Command, label, base string, set *profile.Set) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s: %d StructureDefinitions, %d ValueSets\n",
		label, base, len(set.StructureDefinitions()), len(set.ValueSets()))
}

func versionString() string {
	return "v" + hcx.Version
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hcx-validator %s (FHIR %s, %s)\n", versionString(), hcx.FHIRVersion, runtime.Version())
		},
	}
}
