package novix

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/reflow/wordwrap"
	"github.com/novix-ai/novix/pkg/novix/agent"
	"github.com/novix-ai/novix/pkg/novix/converters"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxToolOutput = 600

// ChatConfig holds flags for the chat command
type ChatConfig struct {
	Message    string
	PrivateKey string
	Width      int
	Keep       bool
}

// NewChatCmd creates the chat command
func NewChatCmd(root *RootConfig) *cobra.Command {
	cfg := &ChatConfig{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a marketplace agent",
		Long: `Open a session on a running server and chat with its agent. Responses
are printed as the agent produces them.

Inside the shell:
  wallet <private-key>   attach a wallet to the session
  session                show the session id
  reset                  start over with a new session
  exit                   leave (the session is removed unless --keep)

Examples:
  novix chat
  novix chat --message "find me an agent that writes SEO copy"
  NOVIX_WALLET_KEY=0x... novix chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), root, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cfg.Message, "message", "m", "", "Send one message, print the answer and exit")
	cmd.Flags().StringVar(&cfg.PrivateKey, "wallet-key", os.Getenv("NOVIX_WALLET_KEY"), "Attach a wallet with this private key")
	cmd.Flags().IntVar(&cfg.Width, "width", 100, "Wrap agent output at this width")
	cmd.Flags().BoolVar(&cfg.Keep, "keep", false, "Keep the session on the server after exit")

	return cmd
}

func runChat(ctx context.Context, root *RootConfig, cfg *ChatConfig, out io.Writer) error {
	client, err := dialChat(ctx, root.ServerURL)
	if err != nil {
		return err
	}
	defer client.Close()

	r := newRenderer(out, cfg.Width)

	id, err := client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if cfg.Keep || client.SessionID == "" {
			return
		}
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.DeleteSession(cleanupCtx)
	}()

	if cfg.PrivateKey != "" {
		added, err := client.AddWallet(ctx, cfg.PrivateKey)
		if err != nil {
			return fmt.Errorf("failed to attach wallet: %w", err)
		}
		r.walletAdded(added)
	}

	if cfg.Message != "" {
		return client.Interact(ctx, cfg.Message, r.fragment)
	}

	r.banner(root.ServerURL, id)
	return runShell(ctx, client, r)
}

func runShell(ctx context.Context, client *chatClient, r *renderer) error {
	shell := ishell.New()
	shell.SetPrompt("you › ")

	shell.AddCmd(&ishell.Cmd{
		Name: "wallet",
		Help: "attach a wallet: wallet <private-key>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: wallet <private-key>")
				return
			}
			added, err := client.AddWallet(ctx, c.Args[0])
			if err != nil {
				r.printError(err)
				return
			}
			r.walletAdded(added)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "session",
		Help: "show the current session id",
		Func: func(c *ishell.Context) {
			c.Println(client.SessionID)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "reset",
		Help: "drop the conversation and start a new session",
		Func: func(c *ishell.Context) {
			if err := client.DeleteSession(ctx); err != nil {
				r.printError(err)
			}
			id, err := client.CreateSession(ctx)
			if err != nil {
				r.printError(err)
				return
			}
			r.info("new session " + id)
		},
	})

	shell.NotFound(func(c *ishell.Context) {
		message := strings.TrimSpace(strings.Join(c.RawArgs, " "))
		if message == "" {
			return
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " thinking"
		s.Start()

		err := client.Interact(ctx, message, func(p converters.ResponsePayload) {
			s.Stop()
			r.fragment(p)
		})
		s.Stop()
		if err != nil {
			r.printError(err)
		}
	})

	shell.Interrupt(func(c *ishell.Context, count int, input string) {
		if count >= 2 {
			c.Stop()
			return
		}
		c.Println("press ^C again to exit")
	})

	go func() {
		<-ctx.Done()
		shell.Stop()
	}()

	shell.Run()
	shell.Close()
	return nil
}

// renderer prints chat events for humans
type renderer struct {
	out   io.Writer
	width int
	title cases.Caser

	agentColor *color.Color
	toolColor  *color.Color
	errColor   *color.Color
	infoColor  *color.Color
}

func newRenderer(out io.Writer, width int) *renderer {
	if width <= 0 {
		width = 100
	}
	return &renderer{
		out:        out,
		width:      width,
		title:      cases.Title(language.English),
		agentColor: color.New(color.FgCyan, color.Bold),
		toolColor:  color.New(color.FgYellow),
		errColor:   color.New(color.FgRed, color.Bold),
		infoColor:  color.New(color.FgGreen),
	}
}

func (r *renderer) banner(server, sessionID string) {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1)
	fmt.Fprintln(r.out, box.Render(fmt.Sprintf("Novix marketplace chat\nserver  %s\nsession %s", server, sessionID)))
}

func (r *renderer) fragment(p converters.ResponsePayload) {
	label := r.title.String(string(p.Kind))
	c := r.agentColor
	content := p.Content

	if p.Kind == agent.FragmentTool {
		c = r.toolColor
		if p.Tool != "" {
			label = fmt.Sprintf("%s %s", label, p.Tool)
		}
		if p.IsError {
			c = r.errColor
		}
		if len(content) > maxToolOutput {
			content = content[:maxToolOutput] + "…"
		}
	}

	fmt.Fprintf(r.out, "%s %s\n", c.Sprint(label+":"), wordwrap.String(content, r.width))
}

func (r *renderer) walletAdded(w converters.WalletAdded) {
	r.info(fmt.Sprintf("wallet %s attached (%s)", w.Address, w.Network))
}

func (r *renderer) info(msg string) {
	fmt.Fprintln(r.out, r.infoColor.Sprint(msg))
}

func (r *renderer) printError(err error) {
	fmt.Fprintln(r.out, r.errColor.Sprint("error: ")+err.Error())
}
