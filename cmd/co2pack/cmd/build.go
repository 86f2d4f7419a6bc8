package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tormodhaugland/co2pack/internal/config"
	"github.com/tormodhaugland/co2pack/internal/embedder"
	fsutil "github.com/tormodhaugland/co2pack/internal/fs"
	"github.com/tormodhaugland/co2pack/internal/git"
	"github.com/tormodhaugland/co2pack/internal/parser"
	"github.com/tormodhaugland/co2pack/internal/pipeline"
	"github.com/tormodhaugland/co2pack/internal/sandbox"
)

var (
	buildRepo            string
	buildOutput          string
	buildEmbeddingModel  string
	buildEmbeddingURL    string
	buildSkipEmbeddings  bool
	buildWorkers         int
	buildMaxTokens       int
	buildNumClusters     int
	buildMaxClusterIters int
)

// githubShorthand matches an "owner/repo" or "owner/repo@branch"
// coordinate, the way the reference tool accepts a bare GitHub slug
// in place of a local path.
var githubShorthand = regexp.MustCompile(`^([\w.-]+)/([\w.-]+)(?:@([\w./-]+))?$`)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a docpack from a local directory, local zip, or GitHub repo",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildRepo, "repo", "", "source: local directory, local .zip file, or owner/repo[@branch]")
	buildCmd.Flags().StringVar(&buildOutput, "output", "", "output docpack path (default: <repo-name>.docpack)")
	buildCmd.Flags().StringVar(&buildEmbeddingModel, "embedding-model", "", "embedding model name (default: config or service default)")
	buildCmd.Flags().StringVar(&buildEmbeddingURL, "embedding-endpoint", "", "embedding service endpoint (default: config default)")
	buildCmd.Flags().BoolVar(&buildSkipEmbeddings, "skip-embeddings", false, "skip contacting an embedding service; docpack has no vectors")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 0, "parse/chunk worker pool size (default: config default)")
	buildCmd.Flags().IntVar(&buildMaxTokens, "max-tokens", 0, "max tokens per chunk (default: config default)")
	buildCmd.Flags().IntVar(&buildNumClusters, "clusters", 0, "number of clusters (default: config default)")
	buildCmd.Flags().IntVar(&buildMaxClusterIters, "cluster-iterations", 0, "max k-means iterations (default: config default)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildRepo == "" {
		return fmt.Errorf("%w: --repo is required", ErrInvalidArgs)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sb, sourceRepo, sourcePath, err := buildSandbox(ctx, buildRepo, cfg)
	if err != nil {
		return err
	}

	output := buildOutput
	if output == "" {
		output = defaultOutputPath(buildRepo, cfg)
	}

	registry := parser.NewRegistry(&parser.UnknownParser{})

	var embed *embedder.Client
	if !buildSkipEmbeddings {
		embCfg := cfg.GetEmbeddingConfig()
		endpoint := embCfg.Endpoint
		if buildEmbeddingURL != "" {
			endpoint = buildEmbeddingURL
		}
		model := embCfg.Model
		if buildEmbeddingModel != "" {
			model = buildEmbeddingModel
		}
		embed = embedder.New(embedder.Config{
			Endpoint: endpoint,
			Timeout:  time.Duration(embCfg.TimeoutSeconds) * time.Second,
			Model:    embedder.ModelInfo{Name: model, Dim: embedder.DefaultModelInfo().Dim, MaxBatch: embedder.DefaultModelInfo().MaxBatch},
		})
		if err := embed.Ping(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: embedding service unreachable at %s, proceeding without embeddings: %v\n", endpoint, err)
			embed = nil
		}
	}

	pcfg := pipeline.DefaultConfig()
	clustererCfg := cfg.GetClustererConfig()
	chunkerCfg := cfg.GetChunkerConfig()
	pcfg.Workers = cfg.GetWorkers()
	pcfg.MaxTokens = chunkerCfg.MaxTokens
	pcfg.NumClusters = clustererCfg.NumClusters
	pcfg.MaxClusterIters = clustererCfg.MaxIterations
	pcfg.ClusterSeed = clustererCfg.Seed
	pcfg.SkipEmbeddings = buildSkipEmbeddings || embed == nil
	pcfg.SourceRepo = sourceRepo
	pcfg.SourcePath = sourcePath
	pcfg.OutputPath = output

	if buildWorkers > 0 {
		pcfg.Workers = buildWorkers
	}
	if buildMaxTokens > 0 {
		pcfg.MaxTokens = buildMaxTokens
	}
	if buildNumClusters > 0 {
		pcfg.NumClusters = buildNumClusters
	}
	if buildMaxClusterIters > 0 {
		pcfg.MaxClusterIters = buildMaxClusterIters
	}

	p := pipeline.New(sb, registry, embed, pcfg)

	progress := make(chan pipeline.Progress, 64)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, progress) }()

	for pr := range progress {
		printProgress(cmd, pr)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("building docpack: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
	return nil
}

func printProgress(cmd *cobra.Command, pr pipeline.Progress) {
	out := cmd.OutOrStdout()
	switch pr.Phase {
	case "scanning":
		fmt.Fprintf(out, "scanning %d files\n", pr.FilesTotal)
	case "chunking":
		fmt.Fprintf(out, "\rchunking %d/%d: %s", pr.FilesProcessed, pr.FilesTotal, pr.CurrentFile)
	case "embedding":
		fmt.Fprintf(out, "\rembedding %d/%d chunks", pr.ChunksEmbedded, pr.ChunksTotal)
	case "clustering":
		fmt.Fprintf(out, "\nclustering %d chunks\n", pr.ChunksTotal)
	case "storing":
		fmt.Fprintf(out, "\nwriting docpack\n")
	case "complete":
		fmt.Fprintf(out, "\ndone: %d files, %d chunks, %d embedded\n", pr.FilesProcessed, pr.ChunksTotal, pr.ChunksEmbedded)
	}
}

// buildSandbox ingests repo (a local directory, local zip, or GitHub
// owner/repo[@branch] coordinate) into a Sandbox, returning the
// SourceRepo/SourcePath pair recorded in the docpack's manifest.
func buildSandbox(ctx context.Context, repo string, cfg *config.Config) (*sandbox.Sandbox, string, string, error) {
	sbCfg := cfg.GetSandboxConfig()
	b := sandbox.NewBuilder()
	b.MaxFileSize = sbCfg.MaxFileSizeBytes
	b.MaxTotalSize = sbCfg.MaxTotalSizeBytes

	if m := githubShorthand.FindStringSubmatch(repo); m != nil && !isLocalPath(repo) {
		owner, name, branch := m[1], m[2], m[3]
		if branch == "" {
			branch = "main"
		}
		if err := b.IngestGithubRepo(ctx, owner, name, branch); err != nil {
			return nil, "", "", fmt.Errorf("fetching %s/%s@%s: %w", owner, name, branch, err)
		}
		return b.Build(), fmt.Sprintf("%s/%s", owner, name), "", nil
	}

	info, err := os.Stat(repo)
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: resolving --repo %q: %v", ErrInvalidArgs, repo, err)
	}

	if !info.IsDir() && strings.HasSuffix(strings.ToLower(repo), ".zip") {
		data, err := os.ReadFile(repo)
		if err != nil {
			return nil, "", "", fmt.Errorf("reading %s: %w", repo, err)
		}
		if err := b.IngestZipBytes(data); err != nil {
			return nil, "", "", fmt.Errorf("ingesting %s: %w", repo, err)
		}
		return b.Build(), "", repo, nil
	}

	if !info.IsDir() {
		return nil, "", "", fmt.Errorf("%w: --repo %q is neither a directory nor a .zip file", ErrInvalidArgs, repo)
	}

	excludes := fsutil.BuildExcludeList(fsutil.ExcludeOptions{Additional: sbCfg.ExcludePatterns})
	if err := b.IngestLocalDir(repo, excludes); err != nil {
		return nil, "", "", fmt.Errorf("ingesting %s: %w", repo, err)
	}

	sourceRepo := ""
	if git.IsRepo(repo) {
		if rinfo, err := git.GetInfo(repo); err == nil && rinfo.Remote != "" {
			sourceRepo = rinfo.Remote
		}
	}

	return b.Build(), sourceRepo, repo, nil
}

// isLocalPath reports whether repo looks like a filesystem path
// rather than a GitHub shorthand, so "./owner/repo" is never mistaken
// for a coordinate.
func isLocalPath(repo string) bool {
	if strings.HasPrefix(repo, ".") || strings.HasPrefix(repo, "/") || strings.HasPrefix(repo, "~") {
		return true
	}
	if _, err := os.Stat(repo); err == nil {
		return true
	}
	return false
}

func defaultOutputPath(repo string, cfg *config.Config) string {
	name := filepath.Base(strings.TrimSuffix(repo, "/"))
	name = strings.TrimSuffix(name, ".zip")
	if m := githubShorthand.FindStringSubmatch(repo); m != nil && !isLocalPath(repo) {
		name = m[2]
	}
	dir := cfg.GetOutputConfig().Directory
	return filepath.Join(dir, name+".docpack")
}
