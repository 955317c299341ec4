package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/simkit/internal/personality"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/style"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Manage personas",
}

var personaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a persona from a YAML or JSON file",
	Long: `Create a persona from a YAML or JSON file.

Example persona.yaml:
  name: Jane Doe
  title: Founder
  profession: Tax attorney
  expertise: tax law, estate planning
  writing_sample: |
    Hey! I'd love to chat about this.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		p, err := readPersonaFile(file)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		saved, err := createPersona(cmd.Context(), client, p)
		if err != nil {
			return err
		}
		printSuccess("Created persona %s (%s)", saved.ID, saved.Name)
		return nil
	},
}

var personaUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a persona from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		p, err := readPersonaFile(file)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/personas/"+url.PathEscape(args[0]), p)
		if err != nil {
			return err
		}
		var saved profile.Persona
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		printSuccess("Updated persona %s", saved.ID)
		return nil
	},
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listPersonas(cmd.Context(), client, cmd.OutOrStdout())
	},
}

var personaShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a persona as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var p profile.Persona
		if err := getJSON(cmd.Context(), client, "/personas/"+url.PathEscape(args[0]), &p); err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), p)
	},
}

var personaDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a persona with its documents and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This deletes the persona, its documents and its interaction history.")
			fmt.Fprintln(os.Stderr, "Run again with --confirm to proceed.")
			return nil
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/personas/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted persona %s", args[0])
		return nil
	},
}

var personaPromptCmd = &cobra.Command{
	Use:   "prompt <id>",
	Short: "Print the system prompt composed for a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		knowledge, _ := cmd.Flags().GetString("context")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/personas/" + url.PathEscape(args[0]) + "/prompt"
		if knowledge != "" {
			path += "?context=" + url.QueryEscape(knowledge)
		}
		var out struct {
			SystemPrompt string `json:"system_prompt"`
		}
		if err := getJSON(cmd.Context(), client, path, &out); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.SystemPrompt)
		return nil
	},
}

var personaStyleCmd = &cobra.Command{
	Use:   "style <id>",
	Short: "Show the communication style derived for a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("model")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id := url.PathEscape(args[0])
		if full {
			var m personality.Model
			if err := getJSON(cmd.Context(), client, "/personas/"+id+"/model", &m); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		}
		var p style.Profile
		if err := getJSON(cmd.Context(), client, "/personas/"+id+"/style", &p); err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), p)
	},
}

func init() {
	personaCreateCmd.Flags().StringP("file", "f", "", "persona file (YAML or JSON)")
	personaUpdateCmd.Flags().StringP("file", "f", "", "persona file (YAML or JSON)")
	personaDeleteCmd.Flags().Bool("confirm", false, "confirm deletion")
	personaPromptCmd.Flags().String("context", "", "knowledge context to embed in the prompt")
	personaStyleCmd.Flags().Bool("model", false, "show the full personality model")

	personaCmd.AddCommand(personaCreateCmd)
	personaCmd.AddCommand(personaUpdateCmd)
	personaCmd.AddCommand(personaListCmd)
	personaCmd.AddCommand(personaShowCmd)
	personaCmd.AddCommand(personaDeleteCmd)
	personaCmd.AddCommand(personaPromptCmd)
	personaCmd.AddCommand(personaStyleCmd)
}

// readPersonaFile parses a persona file. JSON is valid YAML, so one decoder
// covers both formats.
func readPersonaFile(path string) (profile.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return profile.Persona{}, fmt.Errorf("reading persona file: %w", err)
	}
	var p profile.Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return profile.Persona{}, fmt.Errorf("parsing persona file %s: %w", path, err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return profile.Persona{}, fmt.Errorf("persona file %s: name is required", path)
	}
	return p, nil
}

func createPersona(ctx context.Context, client *apiClient, p profile.Persona) (profile.Persona, error) {
	resp, err := client.post(ctx, "/personas", p)
	if err != nil {
		return profile.Persona{}, err
	}
	var saved profile.Persona
	if err := decodeJSON(resp, &saved); err != nil {
		return profile.Persona{}, err
	}
	return saved, nil
}

func listPersonas(ctx context.Context, client *apiClient, w io.Writer) error {
	var personas []profile.Persona
	if err := getJSON(ctx, client, "/personas", &personas); err != nil {
		return err
	}
	if len(personas) == 0 {
		fmt.Fprintln(w, "No personas found.")
		return nil
	}
	for _, p := range personas {
		fmt.Fprintf(w, "%s  %s  %s\n", colorize(colorCyan, p.ID), p.Name, truncate(p.Title, 40))
	}
	return nil
}

func getJSON(ctx context.Context, client *apiClient, path string, v any) error {
	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}
