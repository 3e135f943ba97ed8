// Package main implements advisor, a command-line front end to the
// sustainable shopping advisor pipeline.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"sustainable-advisor/internal/app"
	"sustainable-advisor/internal/catalog"
	"sustainable-advisor/internal/common/config"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/crossservice"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
	"sustainable-advisor/pkg/registry"
)

var (
	configPath string
	outputJSON bool
	verbose    bool
	limit      int

	category      string
	ecoPreference bool
	ecoTags       []string
	budget        float64
	strategy      string
	weightFlags   map[string]string
	factors       []string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Sustainable shopping advisor",
	Long: `advisor scores catalog products for sustainability, keeps the
sustainable ones and ranks them through the recommender collaborator.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 10, "maximum number of products to print")

	recommendCmd.Flags().StringVar(&category, "category", "", "preferred category")
	recommendCmd.Flags().BoolVar(&ecoPreference, "eco", false, "favour products with eco tags")
	recommendCmd.Flags().StringSliceVar(&ecoTags, "eco-tags", nil, "eco tags that earn the eco bonus")
	recommendCmd.Flags().Float64Var(&budget, "budget", 0, "maximum budget in USD")
	recommendCmd.Flags().StringVar(&strategy, "strategy", "", "promotion strategy (sustainability_focused, price_competitive)")
	recommendCmd.Flags().StringToStringVar(&weightFlags, "weight", nil, "weight override, e.g. --weight price=0.5")

	rankDirectCmd.Flags().StringSliceVar(&factors, "factors", nil, "factors to rank by")
	rankDirectCmd.Flags().StringToStringVar(&weightFlags, "weight", nil, "weight override, e.g. --weight popularity=0.5")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(rankDirectCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(tasksCmd)
}

var scoreCmd = &cobra.Command{
	Use:   "score [products.json]",
	Short: "Score products for sustainability",
	Long: `Score every product of a JSON file, or of the configured catalog when no
file is given.

Examples:
  advisor score
  advisor score testdata/products.json --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank the sustainable products of the catalog",
	Long: `Run the whole pipeline: load the catalog, keep sustainable products and
rank them through the recommender collaborator. An unreachable collaborator
ends in the fallback ordering.

Examples:
  advisor recommend --category kitchen --eco
  advisor recommend --budget 50 --weight price=0.4`,
	RunE: runRecommend,
}

var rankDirectCmd = &cobra.Command{
	Use:   "rank-direct",
	Short: "Rank sustainable products with the direct factor preset",
	RunE:  runRankDirect,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print sustainability statistics for the catalog",
	RunE:  runStats,
}

var explainCmd = &cobra.Command{
	Use:   "explain <product-id>",
	Short: "Explain the sustainability score of one catalog product",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the ranking collaborator",
	RunE:  runHealth,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the service tasks served by the advisor manager",
	RunE:  runTasks,
}

// loadComponents reads the config and wires the pipeline.
func loadComponents(ctx context.Context) (*app.Components, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := "error"
	if verbose {
		level = "debug"
	}
	log := logger.NewStructured(level, "console")

	opts := app.DefaultOptions()
	opts.ConnectRetries = 1
	return app.Build(ctx, cfg, log, opts)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := loadComponents(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var products []models.Product
	if len(args) == 1 {
		products, err = catalog.NewFileProvider(args[0]).GetProducts(ctx)
	} else {
		products, err = c.Catalog.GetProducts(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	analyzed := c.Scorer.Analyze(products)
	if len(analyzed) > limit && limit > 0 {
		analyzed = analyzed[:limit]
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), analyzed)
	}

	out := cmd.OutOrStdout()
	for i, s := range analyzed {
		if i > 0 {
			fmt.Fprintln(out)
		}
		marker := "not sustainable"
		if s.Analysis.IsSustainable {
			marker = "sustainable"
		}
		fmt.Fprintf(out, "[%s] %s\n", marker, sustainability.Describe(s.Analysis))
	}
	return nil
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	prefs, err := preferencesFromFlags()
	if err != nil {
		return err
	}

	c, err := loadComponents(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	recs, err := c.Advisor.Recommend(ctx, prefs, limit)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), recs)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Analyzed %d products, %d sustainable (ranking %s after %d attempt(s))\n\n",
		recs.TotalAnalyzed, recs.TotalSustainable, recs.RankingState, recs.Attempts)
	for i, p := range recs.Products {
		line := fmt.Sprintf("%2d. %-30s final %6.2f  sustainability %6.2f", i+1, p.Product.Name, p.FinalScore(), p.Analysis.Score)
		if d := p.DiscountPercent(); d > 0 {
			line += fmt.Sprintf("  -%g%%", d)
		}
		fmt.Fprintln(out, line)
		for _, reason := range p.Reasons() {
			fmt.Fprintf(out, "      %s\n", reason)
		}
	}
	if recs.RankingState == crossservice.StateFallback {
		fmt.Fprintln(out, "\nRecommender unavailable: products ordered by sustainability score.")
	}
	return nil
}

func runRankDirect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	weights, err := parseWeights(weightFlags)
	if err != nil {
		return err
	}

	c, err := loadComponents(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	results := c.Advisor.RankDirect(ctx, weights, factors, limit)
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), results)
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%2d. %-30s final %6.2f  tier %s\n", r.Position, r.Product.Name, r.FinalScore, r.Tier)
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := loadComponents(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	stats := c.Advisor.Stats(ctx)
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Products analyzed:    %d\n", stats.TotalAnalyzed)
	fmt.Fprintf(out, "Sustainable products: %d (%g%%)\n", stats.TotalSustainable, stats.SustainabilityRate)
	fmt.Fprintf(out, "Average score:        %g\n", stats.AverageScore)
	fmt.Fprintf(out, "Carbon footprint:     excellent %d, good %d, fair %d, poor %d\n",
		stats.CarbonDistribution.Excellent, stats.CarbonDistribution.Good,
		stats.CarbonDistribution.Fair, stats.CarbonDistribution.Poor)
	if len(stats.TopEcoTags) > 0 {
		tags := make([]string, 0, len(stats.TopEcoTags))
		for _, t := range stats.TopEcoTags {
			tags = append(tags, fmt.Sprintf("%s (%d)", t.Tag, t.Count))
		}
		fmt.Fprintf(out, "Top eco tags:         %s\n", strings.Join(tags, ", "))
	}
	return nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := loadComponents(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	exp, err := c.Advisor.Explain(ctx, args[0])
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), exp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %g/100 (grade %s)\n%s\n", exp.ProductName, exp.Score, exp.Grade, exp.Text)
	return nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	c, err := loadComponents(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	remote, ok := c.Transport.(*crossservice.HTTPTransport)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "ranking collaborator: %s (in-process)\n", c.Transport.Name())
		return nil
	}
	if err := remote.Health(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ranking collaborator: healthy")
	return nil
}

func runTasks(cmd *cobra.Command, _ []string) error {
	reg := registry.Default()
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), reg)
	}
	out := cmd.OutOrStdout()
	for _, a := range reg.Activities {
		fmt.Fprintf(out, "%-24s %-8s %s\n", a.TaskType, a.Timeout, a.Description)
	}
	return nil
}

func preferencesFromFlags() (*models.Preferences, error) {
	weights, err := parseWeights(weightFlags)
	if err != nil {
		return nil, err
	}
	prefs := &models.Preferences{
		Category:      category,
		EcoPreference: ecoPreference || len(ecoTags) > 0,
		EcoTags:       ecoTags,
		Budget:        budget,
		Strategy:      strategy,
		Weights:       weights,
	}
	if prefs.IsZero() {
		return nil, nil
	}
	return prefs, nil
}

func parseWeights(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for name, value := range raw {
		w, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %s=%q: %w", name, value, err)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight %s must not be negative", name)
		}
		out[name] = w
	}
	return out, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
