package novix

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/novix-ai/novix/pkg/novix/marketplace"
	"github.com/novix-ai/novix/pkg/novix/mcpserver"
	"github.com/novix-ai/novix/pkg/novix/tools"
	"github.com/spf13/cobra"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

// NewMCPCmd creates the mcp command
func NewMCPCmd(root *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve marketplace tools over the Model Context Protocol",
		Long: `Serve the marketplace capability providers (search_agents) to MCP clients
over stdio. Logs go to stderr.

Examples:
  novix mcp --catalog-dsn "file:novix.db"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(cmd, root)
			if err != nil {
				return err
			}
			defer store.Close()

			registry, err := tools.NewRegistry(marketplace.NewSearchTool(store))
			if err != nil {
				return err
			}

			srv, err := mcpserver.New(registry, root.Version)
			if err != nil {
				return err
			}

			ctx := ctrllog.IntoContext(cmd.Context(), ctrllog.Log.WithName("novix"))
			ctrllog.FromContext(ctx).Info("Serving MCP over stdio", "tools", registry.Names())
			if err := mcpserver.Serve(ctx, srv, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server stopped: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("catalog-dsn", "", "Catalog database DSN (sqlite file or postgres URL)")

	return cmd
}
