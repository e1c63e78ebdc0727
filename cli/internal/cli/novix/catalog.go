package novix

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/novix-ai/novix/pkg/novix/marketplace"
	"github.com/spf13/cobra"
)

// NewCatalogCmd creates the catalog command
func NewCatalogCmd(root *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Seed and search the agent catalog",
		Long: `Manage the agent listings the marketplace search tool reads from.

Examples:
  novix catalog seed listings.yaml
  novix catalog search "customer support" --topic chatbot --max-price 50`,
	}
	cmd.PersistentFlags().String("catalog-dsn", "", "Catalog database DSN (sqlite file or postgres URL)")

	cmd.AddCommand(newCatalogSeedCmd(root))
	cmd.AddCommand(newCatalogSearchCmd(root))
	return cmd
}

func openCatalog(cmd *cobra.Command, root *RootConfig) (*marketplace.Store, error) {
	settings, _, err := loadSettings(root, cmd.Flags(), map[string]string{
		"catalog-dsn": "catalog.dsn",
	})
	if err != nil {
		return nil, err
	}
	return marketplace.Open(settings.Catalog.DSN)
}

func newCatalogSeedCmd(root *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load listings from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(cmd, root)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := seedFromFile(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d listings (%d in catalog)\n", n, total)
			return nil
		},
	}
}

func newCatalogSearchCmd(root *RootConfig) *cobra.Command {
	var (
		q        marketplace.Query
		maxPrice float64
	)

	cmd := &cobra.Command{
		Use:   "search [keywords]",
		Short: "Search listings the way the search_agents tool does",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(cmd, root)
			if err != nil {
				return err
			}
			defer store.Close()

			q.Query = strings.Join(args, " ")
			if cmd.Flags().Changed("max-price") {
				q.Filters.Price = &marketplace.Range{Max: &maxPrice}
			}

			result, err := store.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			renderListings(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVar(&q.MaxResults, "max", marketplace.DefaultMaxResults, "Maximum number of results")
	cmd.Flags().IntVar(&q.Skip, "skip", 0, "Results to skip")
	cmd.Flags().StringSliceVar(&q.Filters.Topics, "topic", nil, "Only listings with one of these topics")
	cmd.Flags().StringVar(&q.Filters.AgentType, "type", "", "Agent type (custom, eliza)")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "Maximum price")
	cmd.Flags().StringVar(&q.Sort.Field, "sort", marketplace.SortScore, "Sort field (score, price, credits)")
	cmd.Flags().StringVar(&q.Sort.Order, "order", marketplace.OrderDesc, "Sort order (asc, desc)")

	return cmd
}

func renderListings(w io.Writer, result *marketplace.SearchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Type", "Price", "Credits", "Topics", "Summary"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Price", Align: text.AlignRight},
		{Name: "Credits", Align: text.AlignRight},
		{Name: "Summary", WidthMax: 48},
	})
	for _, l := range result.Results {
		t.AppendRow(table.Row{
			l.ID,
			l.Name,
			l.AgentType,
			fmt.Sprintf("%.2f", l.Price),
			fmt.Sprintf("%.0f", l.Credits),
			strings.Join(l.Topics, ","),
			l.Summary,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Showing", fmt.Sprintf("%d of %d", result.Count, result.TotalCount)})
	t.Render()
}
