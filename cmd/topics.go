package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"muninn/internal/textutil"
)

var topicsOwnerID int64

// topicsCmd is an admin view of one owner's topics.
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List an owner's topics with entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		if topicsOwnerID <= 0 {
			return fmt.Errorf("--owner is required")
		}

		overviews, err := appInstance.TopicService.ListOverviews(cmd.Context(), topicsOwnerID)
		if err != nil {
			return fmt.Errorf("failed to list topics: %w", err)
		}
		if len(overviews) == 0 {
			fmt.Println("No topics found.")
			return nil
		}

		color.Cyan("Topics for owner %d:", topicsOwnerID)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name", "Entries", "Latest Entry", "Created At"})
		table.SetBorder(true)
		for _, o := range overviews {
			table.Append([]string{
				strconv.FormatInt(o.ID, 10),
				o.Name,
				strconv.Itoa(o.EntryCount),
				textutil.Snippet(o.LatestPreview, 1, 60),
				o.CreatedAt.Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	topicsCmd.Flags().Int64Var(&topicsOwnerID, "owner", 0, "Owner id whose topics to list")
	rootCmd.AddCommand(topicsCmd)
}
