package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ianbrucey/war-room-sub000/internal/config"
	"github.com/ianbrucey/war-room-sub000/internal/index"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/notify"
)

func init() {
	rootCmd.AddCommand(ingestDocCmd())
	rootCmd.AddCommand(getDocCmd())
	rootCmd.AddCommand(listDocsCmd())
	rootCmd.AddCommand(retryDocCmd())
	rootCmd.AddCommand(deleteDocCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(watchCmd())
}

func ingestDocCmd() *cobra.Command {
	var caseID string
	var file string
	var wait bool

	required := []string{"case-id", "file"}

	command := &cobra.Command{
		Use:     "ingest",
		Short:   "ingest a document into a case",
		Example: "warroom ingest -c <case-id> -f <file>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			content, err := os.ReadFile(file)
			if err != nil {
				logrus.Error(err)
				return
			}

			ctx := context.Background()
			client, err := newClient(ctx)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			doc, err := client.Service.Ingest(ctx, caseID, content, filepath.Base(file))
			if err != nil {
				logrus.Error(err)
				if doc == nil {
					return
				}
			}

			if wait {
				client.Pipeline.Wait()
				doc, err = client.Service.GetDocument(ctx, doc.ID)
				if err != nil {
					logrus.Error(err)
					return
				}
			}

			printDocument(doc)
		},
	}

	command.Flags().StringVarP(&caseID, "case-id", "c", "", "case id (required)")
	command.Flags().StringVarP(&file, "file", "f", "", "path of the file to ingest (required)")
	command.Flags().BoolVarP(&wait, "wait", "w", true, "wait for processing to finish")
	command.Flags().SortFlags = false

	return command
}

func getDocCmd() *cobra.Command {
	var docID string

	required := []string{"doc-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get a document",
		Example: "warroom get -d <doc-id>",
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

			doc, err := client.Service.GetDocument(ctx, docID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printDocument(doc)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().SortFlags = false

	return command
}

func listDocsCmd() *cobra.Command {
	var caseID string

	required := []string{"case-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list documents of a case",
		Example: "warroom list -c <case-id>",
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

			docs, err := client.Service.ListDocuments(ctx, caseID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Filename", "Type", "Status", "Pages", "Indexed"})
			for _, doc := range docs {
				table.Append([]string{
					doc.ID,
					doc.Filename,
					doc.DocumentType,
					string(doc.ProcessingStatus),
					strconv.Itoa(doc.PageCount),
					strconv.FormatBool(doc.RagIndexed),
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&caseID, "case-id", "c", "", "case id (required)")
	command.Flags().SortFlags = false

	return command
}

func retryDocCmd() *cobra.Command {
	var docID string

	required := []string{"doc-id"}

	command := &cobra.Command{
		Use:     "retry",
		Short:   "retry the failed stage of a document",
		Example: "warroom retry -d <doc-id>",
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

			if err := client.Service.RetryDocument(ctx, docID); err != nil {
				logrus.Error(err)
				return
			}

			client.Pipeline.Wait()
			doc, err := client.Service.GetDocument(ctx, docID)
			if err != nil {
				logrus.Error(err)
				return
			}
			printDocument(doc)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().SortFlags = false

	return command
}

func deleteDocCmd() *cobra.Command {
	var docID string

	required := []string{"doc-id"}

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a document",
		Example: "warroom delete -d <doc-id>",
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

			if err := client.Service.DeleteDocument(ctx, docID); err != nil {
				logrus.Error(err)
				return
			}

			color.Green("document deleted")
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().SortFlags = false

	return command
}

func searchCmd() *cobra.Command {
	var caseID string
	var query string
	var docType string
	var docID string
	var limit int

	required := []string{"case-id", "query"}

	command := &cobra.Command{
		Use:     "search",
		Short:   "semantic search within a case",
		Example: "warroom search -c <case-id> -q <query>",
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

			hits, err := client.Service.Search(ctx, caseID, query, index.Filters{
				DocumentID:   docID,
				DocumentType: docType,
			}, limit)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Document", "Page", "Score", "Excerpt"})
			for _, hit := range hits {
				table.Append([]string{hit.DocumentID, strconv.Itoa(hit.Page), fmt.Sprintf("%.3f", hit.Score), hit.Excerpt})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&caseID, "case-id", "c", "", "case id (required)")
	command.Flags().StringVarP(&query, "query", "q", "", "search query (required)")
	command.Flags().StringVarP(&docType, "type", "t", "", "filter by document type")
	command.Flags().StringVarP(&docID, "doc-id", "d", "", "filter by document id")
	command.Flags().IntVarP(&limit, "limit", "n", 10, "max results")
	command.Flags().SortFlags = false

	return command
}

func reconcileCmd() *cobra.Command {
	var caseID string

	required := []string{"case-id"}

	command := &cobra.Command{
		Use:     "reconcile",
		Short:   "run a reconcile pass over a case",
		Example: "warroom reconcile -c <case-id>",
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

			report, err := client.Reconciler.Reconcile(ctx, caseID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Orphaned records", strconv.Itoa(report.OrphanedRecords))
			printField("Repaired stale", strconv.Itoa(report.RepairedStale))
			printField("Archived folders", strconv.Itoa(report.ArchivedFolders))
			printField("Purged from trash", strconv.Itoa(report.RemovedFromTrash))
		},
	}

	command.Flags().StringVarP(&caseID, "case-id", "c", "", "case id (required)")
	command.Flags().SortFlags = false

	return command
}

func watchCmd() *cobra.Command {
	var caseID string

	required := []string{"case-id"}

	command := &cobra.Command{
		Use:     "watch",
		Short:   "follow progress events of a case",
		Example: "warroom watch -c <case-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			cfg := config.LoadConfig()
			notifier := notify.NewRedisNotifier(cfg.RedisAddr, cfg.RedisPassword)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			events, err := notifier.Subscribe(ctx, caseID)
			if err != nil {
				logrus.Error(err)
				return
			}
			for event := range events {
				line := fmt.Sprintf("%s %s %3d%% %s", event.DocumentID, event.Stage, event.Percent, event.Message)
				if event.Stage == model.StatusFailed {
					color.Red("%s\n", line)
				} else {
					fmt.Println(line)
				}
			}
		},
	}

	command.Flags().StringVarP(&caseID, "case-id", "c", "", "case id (required)")
	command.Flags().SortFlags = false

	return command
}

func printDocument(doc *model.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Filename", "Type", "Status", "Pages", "Words"})
	table.Append([]string{
		doc.ID,
		doc.Filename,
		doc.DocumentType,
		string(doc.ProcessingStatus),
		strconv.Itoa(doc.PageCount),
		strconv.Itoa(doc.WordCount),
	})
	table.Render()

	if doc.ProcessingStatus == model.StatusFailed {
		printField("Failed stage", string(doc.FailedStage))
		printField("Cause", doc.FailureCause)
		printField("Error", doc.FailureError)
	}
}
