package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ErrInvalidArgs wraps a RunE failure caused by a missing or
// malformed flag, distinct from a runtime failure (network, I/O,
// corrupt docpack) that RunE might otherwise return. main maps it to
// exit code 2.
var ErrInvalidArgs = errors.New("invalid arguments")

var (
	cfgFile   string
	jsonOut   bool
	robotHelp bool
)

var rootCmd = &cobra.Command{
	Use:   "co2pack",
	Short: "Build and query docpacks: sandboxed, chunked, embedded, clustered repo archives",
	Long: `co2pack ingests a repository (a local directory, a local zip, or a
GitHub owner/repo coordinate) into a docpack: a single zip file holding
a relational index of files, chunks, symbols and embeddings, ready to
be queried by semantic similarity.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/co2pack/config.json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&robotHelp, "robot-help", false, "print detailed robot helper guidance and exit")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if robotHelp {
			fmt.Fprint(cmd.OutOrStdout(), robotHelpText())
			os.Exit(0)
		}
		return nil
	}
}

func robotHelpText() string {
	return `co2pack --robot-help
Detailed guidance for automation and helper tools.

Purpose
  co2pack builds docpacks: self-contained zip archives bundling a
  sqlite index of a repository's files, semantic chunks, symbols and
  embeddings. It also queries docpacks by embedding similarity.

Pipeline
  sandbox (ingest + sanitize) -> parse -> chunk -> embed -> cluster -> persist

Common workflows
  1) Build a docpack from a local checkout
     co2pack build --repo ./myrepo --output myrepo.docpack

  2) Build from a GitHub coordinate
     co2pack build --repo golang/go@master --output go.docpack

  3) Build without contacting an embedding service
     co2pack build --repo ./myrepo --skip-embeddings

  4) Query a docpack
     co2pack query --docpack myrepo.docpack --query "parse arguments" --json
     co2pack query --docpack myrepo.docpack --query "TODO" --substring

Exit codes
  0 success
  1 general error
  2 invalid arguments

Config discovery
  1) --config <path>
  2) $XDG_CONFIG_HOME/co2pack/config.json or ~/.config/co2pack/config.json
`
}
