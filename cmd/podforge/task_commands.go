package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podforge/internal/api"
	"podforge/internal/apiclient"
)

type submitFlags struct {
	text           string
	url            string
	session        string
	format         string
	style          string
	duration       string
	presentation   string
	voices         map[string]string
	music          string
	musicGain      float64
	speed          float64
	separateTracks bool
	title          string
	description    string
	coverPrompt    string
	watch          bool
	jsonOutput     bool
}

func (f submitFlags) request() api.SubmitRequest {
	return api.SubmitRequest{
		Format:         f.format,
		Style:          f.style,
		Duration:       f.duration,
		Presentation:   f.presentation,
		VoiceMap:       f.voices,
		Music:          f.music,
		Speed:          f.speed,
		SeparateTracks: f.separateTracks,
		Title:          f.title,
		Description:    f.description,
		CoverPrompt:    f.coverPrompt,
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Submit a document, text, or URL for podcast generation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if countSet(len(args) == 1, flags.text != "", flags.url != "") != 1 {
				return errors.New("provide exactly one of a file argument, --text, or --url")
			}

			client := ctx.client()
			req := flags.request()
			if cmd.Flags().Changed("music-gain") {
				req.MusicGainDB = &flags.musicGain
			}
			var (
				resp *api.SubmitResponse
				err  error
			)
			switch {
			case len(args) == 1:
				resp, err = client.SubmitFile(cmd.Context(), flags.session, args[0], req)
			case flags.text != "":
				req.Source = "text"
				req.Text = flags.text
				resp, err = client.Submit(cmd.Context(), flags.session, req)
			default:
				req.Source = "url"
				req.URL = flags.url
				resp, err = client.Submit(cmd.Context(), flags.session, req)
			}
			if err != nil {
				return err
			}
			if flags.jsonOutput && !flags.watch {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Submitted task %s (session %s, %d queued)\n", resp.TaskID, resp.SessionID, resp.QueuePending)
			if !flags.watch {
				return nil
			}
			return watchTask(cmd, client, resp.TaskID, flags.jsonOutput)
		},
	}
	cmd.Flags().StringVar(&flags.text, "text", "", "Raw text to convert")
	cmd.Flags().StringVar(&flags.url, "url", "", "Web page to convert")
	cmd.Flags().StringVar(&flags.session, "session", "", "Session id to group the task under")
	cmd.Flags().StringVar(&flags.format, "format", "", "dialog, podcast, or monologue")
	cmd.Flags().StringVar(&flags.style, "style", "", "formal, conversational, or energetic")
	cmd.Flags().StringVar(&flags.duration, "duration", "", "very_short, short, or standard")
	cmd.Flags().StringVar(&flags.presentation, "presentation", "", "Presentation mode, for example educational or storytelling")
	cmd.Flags().StringToStringVar(&flags.voices, "voice", nil, "Speaker to voice mapping, for example Host=alloy")
	cmd.Flags().StringVar(&flags.music, "music", "", "Background track id, auto, or none")
	cmd.Flags().Float64Var(&flags.musicGain, "music-gain", 0, "Music bed gain in dB for this task (-60 to 0)")
	cmd.Flags().Float64Var(&flags.speed, "speed", 0, "Speech speed (0.5 to 2.0; other values use 1.0)")
	cmd.Flags().BoolVar(&flags.separateTracks, "separate-tracks", false, "Also export one track per speaker")
	cmd.Flags().StringVar(&flags.title, "title", "", "Episode title")
	cmd.Flags().StringVar(&flags.description, "description", "", "Episode description")
	cmd.Flags().StringVar(&flags.coverPrompt, "cover-prompt", "", "Custom cover image prompt")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Follow progress until the task finishes")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func newTaskCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "task <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showTask(cmd, ctx, args[0], jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func showTask(cmd *cobra.Command, ctx *commandContext, id string, jsonOutput bool) error {
	status, err := ctx.client().Task(cmd.Context(), id)
	if apiclient.IsNotFound(err) {
		return fmt.Errorf("task %s not found", id)
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, status)
	}
	printTaskDetail(cmd.OutOrStdout(), status)
	return nil
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a task's progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchTask(cmd, ctx.client(), args[0], jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print each snapshot as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ctx.client().Cancel(cmd.Context(), args[0])
			if apiclient.IsNotFound(err) {
				return fmt.Errorf("task %s not found or already finished", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled task %s\n", args[0])
			return nil
		},
	}
}

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var (
		session    string
		statuses   []string
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := ctx.client().Tasks(cmd.Context(), session, statuses, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, tasks)
			}
			stdout := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(stdout, "No tasks found")
				return nil
			}
			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				rows = append(rows, []string{
					task.TaskID,
					titleCase(task.Status),
					task.Stage,
					strconv.Itoa(task.Progress) + "%",
					taskMessage(task),
					task.CreatedAt,
				})
			}
			fmt.Fprint(stdout, renderTable([]column{
				{Header: "ID"},
				{Header: "Status"},
				{Header: "Stage"},
				{Header: "Progress", Align: alignRight},
				{Header: "Activity", MaxWidth: 60},
				{Header: "Created"},
			}, rows))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Only tasks from this session")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only tasks with these statuses")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of tasks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

// watchTask streams progress lines and fails when the task does.
func watchTask(cmd *cobra.Command, client *apiclient.Client, id string, jsonOutput bool) error {
	stdout := cmd.OutOrStdout()
	colorize := !jsonOutput && shouldColorize(stdout)
	var encodeErr error
	last, err := client.Watch(cmd.Context(), id, func(status api.TaskStatus) {
		if jsonOutput {
			if err := writeJSON(cmd, status); err != nil && encodeErr == nil {
				encodeErr = err
			}
			return
		}
		fmt.Fprintln(stdout, paint(taskStatusKind(status.Status), formatProgress(status), colorize))
	})
	if apiclient.IsNotFound(err) {
		return fmt.Errorf("task %s not found", id)
	}
	if err != nil {
		return err
	}
	if encodeErr != nil {
		return encodeErr
	}
	if last == nil {
		return nil
	}
	if !jsonOutput && last.Result != nil {
		printResult(stdout, last.Result)
	}
	if last.Status == "failed" {
		return fmt.Errorf("task %s failed: %s", id, last.ErrorMessage)
	}
	return nil
}

func formatProgress(status api.TaskStatus) string {
	return fmt.Sprintf("[%3d%%] %-12s %s", status.Progress, status.Stage, taskMessage(status))
}

func taskMessage(status api.TaskStatus) string {
	if status.ErrorMessage != "" {
		return status.ErrorMessage
	}
	return status.ActivityMessage
}

func printTaskDetail(out io.Writer, status *api.TaskStatus) {
	fmt.Fprintf(out, "Task:      %s\n", status.TaskID)
	fmt.Fprintf(out, "Session:   %s\n", status.SessionID)
	fmt.Fprintf(out, "Status:    %s\n", titleCase(status.Status))
	fmt.Fprintf(out, "Stage:     %s (%d%%)\n", status.Stage, status.Progress)
	if msg := taskMessage(*status); msg != "" {
		fmt.Fprintf(out, "Activity:  %s\n", msg)
	}
	fmt.Fprintf(out, "Created:   %s\n", status.CreatedAt)
	fmt.Fprintf(out, "Updated:   %s\n", status.UpdatedAt)
	if status.Result != nil {
		printResult(out, status.Result)
	}
}

func printResult(out io.Writer, result *api.TaskResult) {
	fmt.Fprintf(out, "Title:     %s\n", result.Title)
	fmt.Fprintf(out, "Duration:  %s\n", formatSeconds(result.DurationSeconds))
	fmt.Fprintf(out, "Audio:     %s\n", result.AudioURL)
	if result.CoverURL != "" {
		fmt.Fprintf(out, "Cover:     %s\n", result.CoverURL)
	}
	fmt.Fprintf(out, "Feed:      %s\n", result.FeedURL)
	speakers := make([]string, 0, len(result.SpeakerTracks))
	for speaker := range result.SpeakerTracks {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	for _, speaker := range speakers {
		fmt.Fprintf(out, "Track:     %s %s\n", speaker, result.SpeakerTracks[speaker])
	}
}

func formatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

var titleCaser = cases.Title(language.English)

func titleCase(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}
