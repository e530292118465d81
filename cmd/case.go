package cmd

import (
	"context"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "case commands",
}

func init() {
	rootCmd.AddCommand(caseCmd)
	caseCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	caseCmd.AddCommand(createCaseCmd())
	caseCmd.AddCommand(listCasesCmd())

	rootCmd.AddCommand(manifestCmd())
}

func createCaseCmd() *cobra.Command {
	var title string

	required := []string{"title"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a case",
		Example: "warroom case create -t <title>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			ctx := context.Background()
			client, err := newClient(ctx)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			c, err := client.Service.CreateCase(ctx, title)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Title"})
			table.Append([]string{c.ID, c.Title})
			table.Render()
		},
	}

	command.Flags().StringVarP(&title, "title", "t", "", "case title (required)")
	command.Flags().SortFlags = false

	return command
}

func listCasesCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "list",
		Short: "list cases",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, err := newClient(ctx)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			cases, err := client.Service.ListCases(ctx)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Title", "Created"})
			for _, c := range cases {
				table.Append([]string{c.ID, c.Title, c.CreatedAt.Format("2006-01-02")})
			}
			table.Render()
		},
	}

	return command
}

func manifestCmd() *cobra.Command {
	var caseID string

	required := []string{"case-id"}

	command := &cobra.Command{
		Use:     "manifest",
		Short:   "show the derived case manifest",
		Example: "warroom manifest -c <case-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			ctx := context.Background()
			client, err := newClient(ctx)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			m, err := client.Service.GetManifest(ctx, caseID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Parties", strconv.Itoa(len(m.Parties)))
			for _, p := range m.Parties {
				cmd.Printf("  %s\n", p)
			}
			printField("Claims", strconv.Itoa(len(m.Claims)))
			for _, c := range m.Claims {
				cmd.Printf("  %s\n", c)
			}

			if len(m.Timeline) > 0 {
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"Date", "Description", "Document", "Page"})
				for _, t := range m.Timeline {
					table.Append([]string{t.Date, t.Description, t.DocumentID, strconv.Itoa(t.Page)})
				}
				table.Render()
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Filename", "Type", "Status", "Pages"})
			for _, d := range m.Documents {
				table.Append([]string{d.ID, d.Filename, d.DocumentType, string(d.ProcessingStatus), strconv.Itoa(d.PageCount)})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&caseID, "case-id", "c", "", "case id (required)")
	command.Flags().SortFlags = false

	return command
}
