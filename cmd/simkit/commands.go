package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/simkit/internal/api"
	"github.com/kalambet/simkit/internal/config"
	"github.com/kalambet/simkit/internal/engine"
	"github.com/kalambet/simkit/internal/style"
)

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze the communication style of a text",
	Long: `Analyze the communication style of a text. Runs locally, no server needed.

Examples:
  simkit analyze ./writing-sample.txt
  echo "Hey! Super excited to chat." | simkit analyze
  simkit analyze --scenarios ./scenarios.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, _ := cmd.Flags().GetString("scenarios")
		if scenarios != "" {
			p, err := analyzeScenarioFile(scenarios)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), p)
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("reading text: %w", err)
		}
		return printYAML(cmd.OutOrStdout(), style.Analyze(string(data)))
	},
}

func init() {
	analyzeCmd.Flags().String("scenarios", "", "YAML file with a list of question/expected_response pairs")
}

func analyzeScenarioFile(path string) (style.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return style.Profile{}, fmt.Errorf("reading scenarios: %w", err)
	}
	var scenarios []style.Scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return style.Profile{}, fmt.Errorf("parsing scenarios %s: %w", path, err)
	}
	return style.AnalyzeScenarios(scenarios), nil
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <persona-id> [message]",
	Short: "Talk to a persona's Sim",
	Long: `Talk to a persona's Sim. With a message, sends one turn and prints the
reply. Without one, starts an interactive session; an empty line exits.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if len(args) > 1 {
			res, err := sendChat(cmd.Context(), client, args[0], strings.Join(args[1:], " "), nil)
			if err != nil {
				return err
			}
			printChatResponse(cmd.OutOrStdout(), res, verbose)
			return nil
		}
		return chatLoop(cmd.Context(), client, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), verbose)
	},
}

func init() {
	chatCmd.Flags().BoolP("verbose", "v", false, "show outcome, guard reason and sources")
}

func sendChat(ctx context.Context, client *apiClient, personaID, message string, history []engine.Message) (api.ChatResponse, error) {
	resp, err := client.post(ctx, "/personas/"+url.PathEscape(personaID)+"/chat", api.ChatRequest{
		Message: message,
		History: history,
	})
	if err != nil {
		return api.ChatResponse{}, err
	}
	var res api.ChatResponse
	if err := decodeJSON(resp, &res); err != nil {
		return api.ChatResponse{}, err
	}
	return res, nil
}

// chatLoop reads one message per line and keeps the running history so each
// turn sees the conversation so far.
func chatLoop(ctx context.Context, client *apiClient, personaID string, in io.Reader, out io.Writer, verbose bool) error {
	var history []engine.Message
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorBold, "> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			return nil
		}
		res, err := sendChat(ctx, client, personaID, msg, history)
		if err != nil {
			return err
		}
		printChatResponse(out, res, verbose)
		history = append(history,
			engine.Message{Role: "user", Content: msg},
			engine.Message{Role: "assistant", Content: res.Reply},
		)
	}
}

func printChatResponse(w io.Writer, res api.ChatResponse, verbose bool) {
	fmt.Fprintln(w, res.Reply)
	if !verbose {
		return
	}
	fmt.Fprintf(w, "  [%s, %dms]", outcomeLabel(res.Outcome), res.DurationMS)
	if res.Reason != "" {
		fmt.Fprintf(w, " %s", res.Reason)
	}
	fmt.Fprintln(w)
	for _, s := range res.Sources {
		fmt.Fprintf(w, "  - %s (%.2f)\n", s.DocumentTitle, s.Score)
	}
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <persona-id>",
	Short: "Add a document to a persona's knowledge base",
	Long: `Add a document to a persona's knowledge base.

Examples:
  simkit ingest p-123 --text "Our fees start at $250/hour" --tags pricing
  simkit ingest p-123 --url https://example.com/about --title "About page"
  simkit ingest p-123 --file ./brochure.pdf --tags services`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		link, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		tagsStr, _ := cmd.Flags().GetString("tags")

		req, err := buildDocumentRequest(text, link, file, title, tagsStr)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/personas/"+url.PathEscape(args[0])+"/documents", req)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Queued document %s", result["id"])
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("url", "", "URL to fetch and ingest")
	ingestCmd.Flags().String("file", "", "file to ingest (text, markdown, HTML or PDF)")
	ingestCmd.Flags().String("title", "", "title for the document")
	ingestCmd.Flags().String("tags", "", "comma-separated tags")
}

// buildDocumentRequest turns ingest flags into an upload. Files are sent
// base64 encoded so the server can extract PDF and HTML text itself.
func buildDocumentRequest(text, link, file, title, tagsStr string) (api.DocumentRequest, error) {
	if text == "" && link == "" && file == "" {
		return api.DocumentRequest{}, fmt.Errorf("one of --text, --url, or --file is required")
	}

	req := api.DocumentRequest{Title: title, Source: "cli", Tags: splitTags(tagsStr)}
	switch {
	case text != "":
		req.Type = "text"
		req.Content = text
	case link != "":
		req.Type = "url"
		req.URL = link
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return api.DocumentRequest{}, fmt.Errorf("reading file: %w", err)
		}
		req.Type = "file"
		req.Filename = filepath.Base(file)
		req.ContentType = mime.TypeByExtension(filepath.Ext(file))
		req.Content = base64.StdEncoding.EncodeToString(data)
		if req.Title == "" {
			req.Title = req.Filename
		}
	}
	return req, nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage knowledge base documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list <persona-id>",
	Short: "List a persona's documents and their ingest status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listDocuments(cmd.Context(), client, args[0], limit, cmd.OutOrStdout())
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/documents/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

var docsReingestCmd = &cobra.Command{
	Use:   "reingest <document-id>",
	Short: "Queue a document for ingestion again",
	Long:  "Queue a document for ingestion again, for example after it failed or after changing the embedding model.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return reingestDocument(cmd.Context(), client, args[0])
	},
}

func init() {
	docsListCmd.Flags().Int("limit", 50, "maximum number of documents to list")
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)
	docsCmd.AddCommand(docsReingestCmd)
}

func reingestDocument(ctx context.Context, client *apiClient, docID string) error {
	resp, err := client.post(ctx, "/documents/"+url.PathEscape(docID)+"/reingest", nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil); err != nil {
		return err
	}
	printSuccess("Queued document %s for ingestion", docID)
	return nil
}

func listDocuments(ctx context.Context, client *apiClient, personaID string, limit int, w io.Writer) error {
	var docs []struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Status     string `json:"status"`
		ChunkCount int    `json:"chunk_count"`
		LastError  string `json:"last_error"`
	}
	path := fmt.Sprintf("/personas/%s/documents?limit=%d", url.PathEscape(personaID), limit)
	if err := getJSON(ctx, client, path, &docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents found.")
		return nil
	}
	for _, d := range docs {
		line := fmt.Sprintf("%s  %-8s %3d chunks  %s", colorize(colorCyan, d.ID), d.Status, d.ChunkCount, truncate(d.Title, 60))
		if d.LastError != "" {
			line += "  " + colorize(colorRed, d.LastError)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions <persona-id>",
	Short: "List a persona's recent conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listInteractions(cmd.Context(), client, args[0], limit, cmd.OutOrStdout())
	},
}

func init() {
	interactionsCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
}

func listInteractions(ctx context.Context, client *apiClient, personaID string, limit int, w io.Writer) error {
	var interactions []struct {
		ID          string `json:"id"`
		CreatedAt   string `json:"created_at"`
		UserMessage string `json:"user_message"`
		Outcome     string `json:"outcome"`
	}
	path := fmt.Sprintf("/personas/%s/interactions?limit=%d", url.PathEscape(personaID), limit)
	if err := getJSON(ctx, client, path, &interactions); err != nil {
		return err
	}
	if len(interactions) == 0 {
		fmt.Fprintln(w, "No interactions found.")
		return nil
	}
	for _, ix := range interactions {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			colorize(colorCyan, truncate(ix.ID, 8)),
			ix.CreatedAt,
			outcomeLabel(ix.Outcome),
			truncate(ix.UserMessage, 80),
		)
	}
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		if strings.HasSuffix(key, "api_key") {
			printSuccess("Stored %s in the secret store", key)
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
