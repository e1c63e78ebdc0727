package novix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/novix-ai/novix/pkg/novix/converters"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/session"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// NewSessionsCmd creates the sessions command
func NewSessionsCmd(root *RootConfig) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List live agent sessions",
		Long: `List the agent sessions held by a running server.

Examples:
  novix sessions
  novix sessions -o yaml
  novix sessions rm 5b7c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(root.ServerURL)
			infos, err := api.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			return renderSessions(cmd.OutOrStdout(), infos, output, time.Now())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", OutputTable, "Output format (table, json, yaml)")

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <session-id>",
		Short: "Remove a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(root.ServerURL)
			if err := api.RemoveSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s removed\n", args[0])
			return nil
		},
	})

	return cmd
}

func renderSessions(w io.Writer, infos []session.Info, format string, now time.Time) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case OutputYAML:
		out, err := yaml.Marshal(infos)
		if err != nil {
			return fmt.Errorf("failed to encode sessions: %w", err)
		}
		_, err = w.Write(out)
		return err
	case OutputTable, "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Age", "Idle", "Wallet", "Busy", "Turns", "Tools"})
	for _, info := range infos {
		wallet := "-"
		if info.HasWallet {
			wallet = info.Address
		}
		t.AppendRow(table.Row{
			info.ID,
			now.Sub(info.CreatedAt).Round(time.Second),
			now.Sub(info.LastActive).Round(time.Second),
			wallet,
			info.Busy,
			info.Turns,
			strings.Join(info.Tools, ","),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(infos)})
	t.Render()
	return nil
}

// apiClient calls the HTTP surface of a running server
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) ListSessions(ctx context.Context) ([]session.Info, error) {
	var infos []session.Info
	if err := c.do(ctx, http.MethodGet, "/api/agent-session", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *apiClient) RemoveSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/agent-session/remove/"+id, nil)
}

// do performs the request and decodes the envelope data into out. Error
// envelopes are returned as application errors.
func (c *apiClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	var env struct {
		converters.Envelope
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unexpected response (%s): %w", resp.Status, err)
	}
	if env.Status != converters.StatusSuccess {
		return apperrors.New(env.Code, env.Msg, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
