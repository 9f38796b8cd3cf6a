package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"studium/subject"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent sessions",
	RunE:  runListSessions,
}

func init() {
	lsCmd.Flags().IntP("limit", "n", 20, "Maximum number of sessions to list")
}

func runListSessions(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	classes, err := store.GetRecentClasses(cmd.Context(), limit)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(
		[]string{"ID", "Created", "Subject", "Title", "Level", "Duration", "Analyzed"},
	)

	for _, c := range classes {
		subj := subject.Lookup(c.Subject)
		analyzed := ""
		if c.Summary != "" {
			analyzed = "✓"
		}
		table.Append([]string{
			strconv.FormatInt(c.ID, 10),
			c.CreatedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%s %s", subj.Icon, subj.ID),
			c.Title,
			c.Level,
			formatDuration(c.DurationSec),
			analyzed,
		})
	}

	table.Render()
	return nil
}

func formatDuration(seconds int) string {
	if seconds == 0 {
		return ""
	}
	d := time.Duration(seconds) * time.Second
	return d.String()
}
