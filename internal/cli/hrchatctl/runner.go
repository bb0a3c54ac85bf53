// Package hrchatctl is the command line client for the HR chat API.
package hrchatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// requestError marks failures that reached the API, as opposed to usage errors.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request failed and 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "%v\n\n%s", err, root.UsageString())
		return 2
	}
	return 0
}

func newRootCommand(defaults Options) *cobra.Command {
	opts := defaults
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8080"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	root := &cobra.Command{
		Use:           "hrchatctl",
		Short:         "Talk to the HR chat API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.BaseURL, "base-url", opts.BaseURL, "HR chat API base URL")
	root.PersistentFlags().StringVar(&opts.APIKey, "api-key", opts.APIKey, "API key for authenticated requests")
	root.PersistentFlags().StringVar(&opts.SessionID, "session", opts.SessionID, "session id whose credits are spent by chat commands")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "HTTP timeout (e.g. 30s)")

	client := func() *apiClient {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: opts.Timeout}
		}
		return &apiClient{
			baseURL:   strings.TrimRight(opts.BaseURL, "/"),
			apiKey:    strings.TrimSpace(opts.APIKey),
			sessionID: strings.TrimSpace(opts.SessionID),
			http:      httpClient,
		}
	}

	root.AddCommand(
		rawCommand("health", "Show service health", "/v1/health", client),
		rawCommand("ready", "Check store and model readiness", "/v1/ready", client),
		employeesCommand(client),
		askCommand(client),
		chatCommand(client),
		sessionCommand(client),
	)
	return root
}

func rawCommand(name, short, path string, client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := client().do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func employeesCommand(client func() *apiClient) *cobra.Command {
	asJSON := false
	cmd := &cobra.Command{
		Use:   "employees",
		Short: "List the employee roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := client().do(cmd.Context(), http.MethodGet, "/v1/employees", nil)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), body)
			}
			var roster struct {
				Employees []struct {
					EmpID      int64  `json:"emp_id"`
					FirstName  string `json:"first_name"`
					LastName   string `json:"last_name"`
					Department string `json:"department"`
					Position   string `json:"position"`
				} `json:"employees"`
			}
			if err := json.Unmarshal(body, &roster); err != nil {
				return fmt.Errorf("decode roster: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tPOSITION")
			for _, e := range roster.Employees {
				_, _ = fmt.Fprintf(tw, "%d\t%s %s\t%s\t%s\n", e.EmpID, e.FirstName, e.LastName, e.Department, e.Position)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func askCommand(client func() *apiClient) *cobra.Command {
	var employeeID int64
	showQuery := false
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question answered from the HR database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"message": strings.Join(args, " ")}
			if employeeID > 0 {
				payload["employeeId"] = employeeID
			}
			body, err := client().do(cmd.Context(), http.MethodPost, "/v1/chat/db", payload)
			if err != nil {
				return err
			}
			var answer struct {
				Reply            string          `json:"reply"`
				QueryStructure   json.RawMessage `json:"queryStructure"`
				ResultsCount     int             `json:"resultsCount"`
				Restricted       bool            `json:"restricted"`
				CreditsRemaining *int            `json:"creditsRemaining"`
			}
			if err := json.Unmarshal(body, &answer); err != nil {
				return fmt.Errorf("decode answer: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, answer.Reply)
			if showQuery && len(answer.QueryStructure) > 0 {
				_, _ = fmt.Fprintf(out, "\nquery (%d rows):\n", answer.ResultsCount)
				if err := printJSON(out, answer.QueryStructure); err != nil {
					return err
				}
			}
			if answer.CreditsRemaining != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "credits remaining: %d\n", *answer.CreditsRemaining)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&employeeID, "employee", 0, "employee id asking the question")
	cmd.Flags().BoolVar(&showQuery, "show-query", false, "print the structured query that answered the question")
	return cmd
}

func chatCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message to the plain chat model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := client().do(cmd.Context(), http.MethodPost, "/v1/chat", map[string]any{"message": strings.Join(args, " ")})
			if err != nil {
				return err
			}
			var reply struct {
				Reply string `json:"reply"`
			}
			if err := json.Unmarshal(body, &reply); err != nil {
				return fmt.Errorf("decode reply: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), reply.Reply)
			return nil
		},
	}
}

func sessionCommand(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage metered chat sessions",
	}

	var employeeID int64
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload := map[string]any{}
			if employeeID > 0 {
				payload["employeeId"] = employeeID
			}
			body, err := client().do(cmd.Context(), http.MethodPost, "/v1/sessions", payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	start.Flags().Int64Var(&employeeID, "employee", 0, "employee the session acts for")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show remaining credits of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := client().do(cmd.Context(), http.MethodGet, "/v1/sessions/"+args[0], nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	end := &cobra.Command{
		Use:   "end <id>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := client().do(cmd.Context(), http.MethodDelete, "/v1/sessions/"+args[0], nil)
			return err
		},
	}

	cmd.AddCommand(start, show, end)
	return cmd
}

type apiClient struct {
	baseURL   string
	apiKey    string
	sessionID string
	http      *http.Client
}

func (c *apiClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.sessionID != "" {
		req.Header.Set("X-Session-ID", c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &requestError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &requestError{err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &requestError{err: fmt.Errorf("http %d: %s", resp.StatusCode, apiErrorMessage(body))}
	}
	return body, nil
}

func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.ErrorCode + ": " + envelope.Error
	}
	return strings.TrimSpace(string(body))
}

func printJSON(w io.Writer, raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		_, _ = fmt.Fprintln(w, string(raw))
		return nil
	}
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, string(formatted))
	return nil
}
