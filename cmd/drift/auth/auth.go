// Package authcmder provides the auth command for storing provider API keys.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/drift/pkg/cliui"
	"github.com/papercomputeco/drift/pkg/credentials"
)

const authLongDesc string = `Store API keys for completion providers.

Keys are kept in credentials.toml in the .drift/ directory, separate from
config.toml. "drift serve" uses a stored key when completion.api_key is not
set and the provider's environment variable is empty.

Supported providers: openai

Examples:
  drift auth openai              Prompt for an OpenAI API key
  drift auth --list              List stored credentials
  drift auth --remove openai     Remove the stored OpenAI key
  echo $KEY | drift auth openai  Pipe the key from stdin`

const authShortDesc string = "Store API keys for completion providers"

func NewAuthCmd() *cobra.Command {
	var (
		listFlag   bool
		removeFlag string
	)

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			mgr, err := credentials.NewManager(configDir)
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			out := cmd.OutOrStdout()
			switch {
			case listFlag:
				return runList(out, mgr)
			case removeFlag != "":
				return runRemove(out, mgr, removeFlag)
			case len(args) == 0:
				return fmt.Errorf("provider argument required\n\nSupported providers: %s",
					strings.Join(credentials.SupportedProviders(), ", "))
			default:
				return runAuth(cmd.InOrStdin(), out, mgr, args[0])
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove stored credentials for a provider")

	return cmd
}

func runAuth(in io.Reader, out io.Writer, mgr *credentials.Manager, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !credentials.IsSupportedProvider(provider) {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}

	apiKey, err := readAPIKey(in, out, provider)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	if err := mgr.SetKey(provider, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored %s credentials %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(provider),
		cliui.DimStyle.Render("(used when "+credentials.EnvVarForProvider(provider)+" is unset)"),
	)
	if !strings.HasPrefix(apiKey, "sk-") {
		fmt.Fprintf(out, "  %s Key does not look like an OpenAI key (sk-...).\n", cliui.WarnStyle.Render("!"))
	}
	fmt.Fprintln(out)

	return nil
}

func runList(out io.Writer, mgr *credentials.Manager) error {
	providers, err := mgr.ListProviders()
	if err != nil {
		return err
	}

	if len(providers) == 0 {
		fmt.Fprintf(out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'drift auth <provider>' to store credentials.\n\n")
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, p := range providers {
		line := fmt.Sprintf("  %s  %s", cliui.SuccessMark, cliui.NameStyle.Render(p))
		if envVar := credentials.EnvVarForProvider(p); envVar != "" {
			line += "  " + cliui.DimStyle.Render("→ "+envVar)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, mgr *credentials.Manager, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	if err := mgr.RemoveKey(provider); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(provider))
	return nil
}

// readAPIKey prompts with hidden input when in is a terminal and otherwise
// reads the first line of in.
func readAPIKey(in io.Reader, out io.Writer, provider string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter API key for %s (%s): ", provider, credentials.EnvVarForProvider(provider))

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
