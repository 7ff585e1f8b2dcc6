package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"muninn/internal/models"
	"muninn/internal/store"
)

var (
	threadsOwnerID  int64
	threadsArchived bool
	threadsLimit    int
)

// threadsCmd is an admin view of one owner's chat threads.
var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List an owner's chat threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		if threadsOwnerID <= 0 {
			return fmt.Errorf("--owner is required")
		}

		filter := store.ThreadFilter{Limit: threadsLimit}
		if threadsArchived {
			status := models.ThreadStatusArchived
			filter.Status = &status
		}

		threads, err := appInstance.ChatService.ListThreads(cmd.Context(), threadsOwnerID, filter)
		if err != nil {
			return fmt.Errorf("failed to list threads: %w", err)
		}
		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		color.Cyan("Threads for owner %d:", threadsOwnerID)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Title", "Scope", "Status", "Last Activity"})
		table.SetBorder(true)
		for _, t := range threads {
			table.Append([]string{
				strconv.FormatInt(t.ID, 10),
				t.Title,
				t.Scope.String(),
				string(t.Status),
				t.LastActivityAt.Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	threadsCmd.Flags().Int64Var(&threadsOwnerID, "owner", 0, "Owner id whose threads to list")
	threadsCmd.Flags().BoolVar(&threadsArchived, "archived", false, "Show only archived threads")
	threadsCmd.Flags().IntVar(&threadsLimit, "limit", 50, "Maximum number of threads to list")
	rootCmd.AddCommand(threadsCmd)
}
