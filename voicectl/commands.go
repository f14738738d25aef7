package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/DeafMist/agentic-voice/backend/internal/keywords"
	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	categoryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	timingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

type options struct {
	keywordsFile string
	server       string
	apiKey       string
	verbose      bool
	timeout      time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "voicectl",
		Short: "Inspect and exercise the agentic-voice backend",
		Long: `voicectl runs keyword extraction locally and talks to a running api server.

Examples:
  voicectl keywords "what's the weather this weekend?"
  voicectl categories
  voicectl ask --server http://localhost:8080 "latest tech news"`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.keywordsFile, "keywords-file", "", "YAML keyword table (defaults to the built-in table)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print timing headers and extracted keywords")

	root.AddCommand(newKeywordsCmd(opts), newCategoriesCmd(opts), newAskCmd(opts))
	return root
}

func newKeywordsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keywords <text...>",
		Short: "Extract keyword categories from text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := keywords.Load(opts.keywordsFile)
			if err != nil {
				return fmt.Errorf("load keyword table: %w", err)
			}

			msgs := []models.Message{{Role: "user", Content: strings.Join(args, " ")}}
			found := table.Filter(table.Extract(msgs))

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no categories matched"))
				return nil
			}
			for _, name := range found {
				fmt.Fprintln(out, categoryStyle.Render(name))
			}
			return nil
		},
	}
}

func newCategoriesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the keyword table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := keywords.Load(opts.keywordsFile)
			if err != nil {
				return fmt.Errorf("load keyword table: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d categories", len(table.Names()))))

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			for _, c := range table.Categories() {
				fmt.Fprintf(w, "%s\t%s\n", categoryStyle.Render(c.Name), dimStyle.Render(strings.Join(c.Triggers, ", ")))
			}
			return w.Flush()
		},
	}
}

func newAskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send a message to /api/brain and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(cmd, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "api server base URL")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key sent as a bearer token")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")
	return cmd
}

func ask(cmd *cobra.Command, opts *options, message string) error {
	payload, err := json.Marshal(map[string]any{
		"messages": []models.Message{{Role: "user", Content: message}},
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(opts.server, "/") + "/api/brain"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+opts.apiKey)
	}

	client := &http.Client{Timeout: opts.timeout}
	sent := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if opts.verbose {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintln(errOut, timingStyle.Render(fmt.Sprintf("X-LLM-Start: %s", resp.Header.Get("X-LLM-Start"))))
		fmt.Fprintln(errOut, timingStyle.Render(fmt.Sprintf("X-LLM-Response: %s", resp.Header.Get("X-LLM-Response"))))
		fmt.Fprintln(errOut, dimStyle.Render(fmt.Sprintf("headers after %s", time.Since(sent).Round(time.Millisecond))))
	}

	out := cmd.OutOrStdout()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	fmt.Fprintln(out)
	return nil
}
