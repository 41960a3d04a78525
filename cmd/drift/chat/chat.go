// Package chatcmder provides the chat command, an interactive client for a
// running drift server.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/drift/api"
	"github.com/papercomputeco/drift/pkg/cliui"
	"github.com/papercomputeco/drift/pkg/config"
	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/drift"
	"github.com/papercomputeco/drift/pkg/logger"
	"github.com/papercomputeco/drift/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	target string
	debug  bool

	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	markdown bool

	client *http.Client
	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive session against a running drift server.

Every message is sent to POST /generate. The answer is printed as it
streams, followed by its strict, progressive and hybrid drift.

Commands:
  /accept     make the latest intent the new anchor and start over
  /realign    drop the latest turn and step back one iteration
  /reject     clear the conversation
  /reset      clear the conversation
  /history    show the anchor and every recorded turn
  /exit       quit (Ctrl+D also works)

Examples:
  drift chat
  drift chat --target http://localhost:9090`

const chatShortDesc string = "Interactive drift-tracked chat"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagClientTarget})
			cmder.target = strings.TrimRight(v.GetString("client.target"), "/")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.markdown = isTerminal(cmder.out)
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagClientTarget, &cmder.target)

	return cmd
}

// isTerminal reports whether w is an interactive terminal, in which case
// history is rendered as markdown.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.NewLoggerWithWriters(c.debug, c.errOut)
	defer func() { _ = c.logger.Sync() }()

	c.client = &http.Client{
		// answers can take a while to finish streaming
		Timeout: 5 * time.Minute,
	}

	fmt.Fprintln(c.out)
	err := cliui.Step(c.out, "Connecting to "+cliui.NameStyle.Render(c.target), func() error {
		return c.ping(ctx)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your intent and press Enter. /help lists commands, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.dispatch(ctx, input); err != nil {
			fmt.Fprintf(c.errOut, "  %s %v\n\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) dispatch(ctx context.Context, input string) error {
	switch input {
	case "/help":
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("/accept  /realign  /reject  /reset  /history  /exit"))
		return nil
	case "/accept":
		return c.decide(ctx, conversation.ActionAccept)
	case "/realign":
		return c.decide(ctx, conversation.ActionRealign)
	case "/reject":
		return c.decide(ctx, conversation.ActionReject)
	case "/reset":
		return c.reset(ctx)
	case "/history":
		return c.history(ctx)
	}

	if strings.HasPrefix(input, "/") {
		return fmt.Errorf("unknown command %q", input)
	}
	return c.generate(ctx, input)
}

func (c *chatCommander) ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("drift server returned status %d", resp.StatusCode)
	}
	return nil
}

// generate submits intent and prints the streamed answer and its drift.
func (c *chatCommander) generate(ctx context.Context, intent string) error {
	resp, err := c.do(ctx, http.MethodPost, "/generate", api.GenerateRequest{Intent: intent})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	fmt.Fprint(c.out, assistantPrompt)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var sl api.StreamLine
		if err := json.Unmarshal(line, &sl); err != nil {
			c.logger.Debug("failed to parse stream line",
				zap.Error(err),
				zap.String("line", string(line)),
			)
			continue
		}

		if sl.Fragment != "" {
			fmt.Fprint(c.out, sl.Fragment)
		}

		if sl.Done {
			fmt.Fprint(c.out, "\n\n")
			if sl.Error != "" {
				return fmt.Errorf("exchange failed: %s", sl.Error)
			}
			if sl.Drift != nil {
				c.printDrift(sl.Drift)
			}
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return errors.New("stream ended without a drift record")
}

func (c *chatCommander) printDrift(r *drift.Record) {
	fmt.Fprintf(c.out, "  %s %s  %s %s  %s %s  %s %s\n\n",
		cliui.KeyStyle.Render("strict"), cliui.ValueStyle.Render(cliui.Percent(r.StrictDrift)),
		cliui.KeyStyle.Render("progressive"), cliui.ValueStyle.Render(cliui.Percent(r.ProgressiveDrift)),
		cliui.KeyStyle.Render("hybrid"), cliui.ValueStyle.Render(cliui.Percent(r.HybridDrift)),
		cliui.Level(string(r.Level)),
		cliui.DimStyle.Render(fmt.Sprintf("(iteration %d)", r.Iteration)),
	)
}

func (c *chatCommander) decide(ctx context.Context, action string) error {
	resp, err := c.do(ctx, http.MethodPost, "/decision", api.DecisionRequest{Action: action})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var d conversation.Decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return fmt.Errorf("decoding decision: %w", err)
	}

	fmt.Fprintf(c.out, "  %s %s %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(string(d.Status)),
		cliui.DimStyle.Render(fmt.Sprintf("(iteration %d)", d.Iteration)),
	)
	return nil
}

func (c *chatCommander) reset(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/reset", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var r api.ResetResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decoding reset: %w", err)
	}

	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.SuccessMark, cliui.ValueStyle.Render(string(r.Status)))
	return nil
}

func (c *chatCommander) history(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/history", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var snap conversation.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decoding history: %w", err)
	}

	md := historyMarkdown(snap)
	if c.markdown {
		rendered, err := cliui.RenderMarkdown(md)
		if err != nil {
			c.logger.Debug("markdown rendering failed", zap.Error(err))
		}
		md = rendered
	}

	fmt.Fprintln(c.out, md)
	return nil
}

// historyMarkdown renders a snapshot as a markdown document.
func historyMarkdown(snap conversation.Snapshot) string {
	var b strings.Builder

	b.WriteString("# Conversation\n\n")
	if snap.Anchor == nil {
		b.WriteString("No anchor yet.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "**Anchor:** %s\n\n", *snap.Anchor)
	fmt.Fprintf(&b, "**Iteration:** %d\n\n", snap.Iteration)

	for _, t := range snap.History {
		fmt.Fprintf(&b, "## Turn %d (%s)\n\n", t.Iteration, drift.Classify(t.HybridDrift))
		fmt.Fprintf(&b, "> %s\n\n", utils.Truncate(t.User, 200))
		fmt.Fprintf(&b, "%s\n\n", t.AI)
		fmt.Fprintf(&b, "| strict | progressive | hybrid |\n|---|---|---|\n| %.2f | %.2f | %.2f |\n\n",
			t.StrictDrift, t.ProgressiveDrift, t.HybridDrift)
	}
	return b.String()
}

func (c *chatCommander) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.target+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending request",
		zap.String("method", method),
		zap.String("url", req.URL.String()),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to drift: %w", err)
	}
	return resp, nil
}

// responseError turns a non-200 reply into an error, preferring the
// server's ErrorResponse message.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var e api.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("drift returned status %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("drift returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
