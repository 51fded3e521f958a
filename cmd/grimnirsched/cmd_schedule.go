/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
)

const cliTimeLayout = "2006-01-02 15:04:05"

var (
	scheduleAt     string
	entriesFrom    string
	entriesTo      string
	playlistTitle  string
	playlistLength time.Duration
	verifyMaxGap   time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <playlist-id>",
	Short: "Book a playlist at a start time",
	Long: `Book a stored playlist for its full play length starting at --at.

Times without a zone are read as UTC.

Example:
  grimnirsched schedule 42 --at "2004-07-23 10:00:00"
`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List schedule entries overlapping a timeframe",
	RunE:  runEntries,
}

var playlistCmd = &cobra.Command{
	Use:   "playlist-add <playlist-id>",
	Short: "Register a playlist and its play length",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlaylistAdd,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a timeframe for overlapping entries and long gaps",
	Long: `Scan the schedule between --from and --to.

Overlapping entries are errors and make the command exit non-zero.
Gaps longer than --max-gap are listed as warnings.
`,
	RunE: runVerify,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", "Start time (\"2006-01-02 15:04:05\" or RFC3339)")
	_ = scheduleCmd.MarkFlagRequired("at")

	entriesCmd.Flags().StringVar(&entriesFrom, "from", "", "Window start")
	entriesCmd.Flags().StringVar(&entriesTo, "to", "", "Window end")
	_ = entriesCmd.MarkFlagRequired("from")
	_ = entriesCmd.MarkFlagRequired("to")

	playlistCmd.Flags().StringVar(&playlistTitle, "title", "", "Display title")
	playlistCmd.Flags().DurationVar(&playlistLength, "length", 0, "Play length (e.g. 1h30m)")
	_ = playlistCmd.MarkFlagRequired("length")

	verifyCmd.Flags().StringVar(&entriesFrom, "from", "", "Window start")
	verifyCmd.Flags().StringVar(&entriesTo, "to", "", "Window end")
	verifyCmd.Flags().DurationVar(&verifyMaxGap, "max-gap", 0, "Report silences longer than this (0 disables)")
	_ = verifyCmd.MarkFlagRequired("from")
	_ = verifyCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(scheduleCmd, entriesCmd, playlistCmd, verifyCmd)
}

func parseCLITime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(cliTimeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use %q or RFC3339", value, cliTimeLayout)
	}
	return t, nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	start, err := parseCLITime(scheduleAt)
	if err != nil {
		return err
	}

	svc, _, closeDB, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	entry, err := svc.UploadPlaylist(cmd.Context(), args[0], start)
	if err != nil {
		return fmt.Errorf("schedule playlist %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s as entry %s: %s - %s\n",
		entry.PlaylistID, entry.ID,
		entry.StartsAt.Format(cliTimeLayout), entry.EndsAt.Format(cliTimeLayout))
	return nil
}

func runEntries(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	from, err := parseCLITime(entriesFrom)
	if err != nil {
		return err
	}
	to, err := parseCLITime(entriesTo)
	if err != nil {
		return err
	}

	svc, _, closeDB, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := svc.GetScheduleEntries(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tPLAYLIST\tSTARTS\tENDS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.PlaylistID, e.StartsAt.Format(cliTimeLayout), e.EndsAt.Format(cliTimeLayout))
	}
	return w.Flush()
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	from, err := parseCLITime(entriesFrom)
	if err != nil {
		return err
	}
	to, err := parseCLITime(entriesTo)
	if err != nil {
		return err
	}

	svc, _, closeDB, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := svc.VerifyTimeline(cmd.Context(), from, to, verifyMaxGap)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checked %d entries between %s and %s\n",
		report.Entries, from.Format(cliTimeLayout), to.Format(cliTimeLayout))
	for _, v := range report.Overlaps {
		fmt.Fprintf(out, "  ERROR  %s\n", v.Message)
	}
	for _, v := range report.Gaps {
		fmt.Fprintf(out, "  WARN   %s\n", v.Message)
	}
	if !report.Consistent {
		return fmt.Errorf("found %d overlapping entries", len(report.Overlaps))
	}
	fmt.Fprintln(out, "No overlapping entries.")
	return nil
}

func runPlaylistAdd(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	_, provider, closeDB, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	pl := &models.Playlist{
		ID:           args[0],
		Title:        playlistTitle,
		PlaylengthMS: playlistLength.Milliseconds(),
	}
	if err := provider.Save(cmd.Context(), pl); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Playlist %s saved (%s).\n", pl.ID, pl.Playlength())
	return nil
}
