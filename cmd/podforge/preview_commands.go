package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"podforge/internal/api"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		text       string
		url        string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Show the text a source would feed into a podcast",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if countSet(len(args) == 1, text != "", url != "") != 1 {
				return errors.New("provide exactly one of a file argument, --text, or --url")
			}
			client := ctx.client()
			var (
				resp *api.ExtractResponse
				err  error
			)
			switch {
			case len(args) == 1:
				resp, err = client.ExtractFile(cmd.Context(), args[0])
			case text != "":
				resp, err = client.Extract(cmd.Context(), api.ExtractRequest{Source: "text", Text: text})
			default:
				resp, err = client.Extract(cmd.Context(), api.ExtractRequest{Source: "url", URL: url})
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintln(stdout, resp.Text)
			fmt.Fprintf(stdout, "\n%d characters", resp.Length)
			if removed := formatRemoved(resp.Removed); removed != "" {
				fmt.Fprintf(stdout, ", hidden: %s", removed)
			}
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Raw text to clean")
	cmd.Flags().StringVar(&url, "url", "", "Web page to read")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func newScriptCommand(ctx *commandContext) *cobra.Command {
	var (
		text         string
		file         string
		format       string
		style        string
		duration     string
		presentation string
		jsonOutput   bool
	)
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Generate a script without creating a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if countSet(text != "", file != "") != 1 {
				return errors.New("provide exactly one of --text or --file")
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				text = string(data)
			}
			resp, err := ctx.client().Script(cmd.Context(), api.ScriptRequest{
				Text:         text,
				Format:       format,
				Style:        style,
				Duration:     duration,
				Presentation: presentation,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			for _, line := range resp.Script {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", line.Speaker, line.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Text to script")
	cmd.Flags().StringVar(&file, "file", "", "Plain text file to script")
	cmd.Flags().StringVar(&format, "format", "", "dialog, podcast, or monologue")
	cmd.Flags().StringVar(&style, "style", "", "formal, conversational, or energetic")
	cmd.Flags().StringVar(&duration, "duration", "", "very_short, short, or standard")
	cmd.Flags().StringVar(&presentation, "presentation", "", "Presentation mode, for example educational or storytelling")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func countSet(flags ...bool) int {
	n := 0
	for _, set := range flags {
		if set {
			n++
		}
	}
	return n
}

func formatRemoved(removed map[string]int) string {
	keys := make([]string, 0, len(removed))
	for key := range removed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", removed[key], key))
	}
	return strings.Join(parts, ", ")
}
