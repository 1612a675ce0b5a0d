package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPodcastsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "podcasts",
		Short: "List finished podcasts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			podcasts, err := ctx.client().Podcasts(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, podcasts)
			}
			stdout := cmd.OutOrStdout()
			if len(podcasts) == 0 {
				fmt.Fprintln(stdout, "No podcasts yet")
				return nil
			}
			rows := make([][]string, 0, len(podcasts))
			for _, podcast := range podcasts {
				rows = append(rows, []string{
					podcast.TaskID,
					podcast.Title,
					formatSeconds(podcast.DurationSeconds),
					podcast.AudioURL,
				})
			}
			fmt.Fprint(stdout, renderTable([]column{
				{Header: "ID"},
				{Header: "Title", MaxWidth: 50},
				{Header: "Length", Align: alignRight},
				{Header: "Audio"},
			}, rows))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of podcasts (at most 100)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List synthesis voices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := ctx.client().Voices(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			stdout := cmd.OutOrStdout()
			if !resp.FromProvider {
				fmt.Fprintln(stdout, "Voice provider unavailable; showing built-in defaults")
			}
			rows := make([][]string, 0, len(resp.Voices))
			for _, voice := range resp.Voices {
				rows = append(rows, []string{voice.ID, voice.Name, voice.PreviewURL})
			}
			fmt.Fprint(stdout, renderTable([]column{{Header: "ID"}, {Header: "Name", MaxWidth: 30}, {Header: "Preview"}}, rows))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

func newMusicCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "music",
		Short: "List background music tracks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracks, err := ctx.client().Music(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, tracks)
			}
			stdout := cmd.OutOrStdout()
			if len(tracks) == 0 {
				fmt.Fprintln(stdout, "Music library is empty")
				return nil
			}
			rows := make([][]string, 0, len(tracks))
			for _, track := range tracks {
				rows = append(rows, []string{track.ID, track.Name, track.URL})
			}
			fmt.Fprint(stdout, renderTable([]column{{Header: "ID"}, {Header: "File"}, {Header: "URL"}}, rows))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run the retention sweep now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := ctx.client().Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Removed %d task directories, %d tasks, %d results, %d sessions, %d uploads, %d log files\n",
				report.TaskDirs, report.Tasks, report.Results, report.Sessions, report.Uploads, report.LogFiles)
			return nil
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := ctx.client().TestNotification(cmd.Context())
			if err != nil {
				return err
			}
			switch {
			case resp.Message != "":
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			case resp.Sent:
				fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
			}
			return nil
		},
	}
}
