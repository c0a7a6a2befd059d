package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/importer"
)

var (
	importCommit bool
	importReport string
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Extract, score and reconcile policy documents",
	Long:  "Runs a batch over the given documents and prints one line per document. With --commit the batch is persisted; with --report an XLSX report is written.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		docs, err := readDocuments(args)
		if err != nil {
			return err
		}

		env, err := initImporter(ctx, "import", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := runImport(ctx, env.Importer, docs, importCommit)
		if err != nil {
			return err
		}

		formatItems(cmd.OutOrStdout(), st)

		if importReport != "" {
			if err := writeReportFile(importReport, st); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", importReport))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importCommit, "commit", false, "persist the batch after processing")
	importCmd.Flags().StringVar(&importReport, "report", "", "write an XLSX report to this path")
	rootCmd.AddCommand(importCmd)
}

// runImport processes docs as one batch and optionally commits it. It
// returns the final batch status. Interrupting ctx cancels the batch.
func runImport(ctx context.Context, imp *importer.Orchestrator, docs []importer.Document, commit bool) (importer.BatchStatus, error) {
	id, err := imp.StartBatch(ctx, docs)
	if err != nil {
		return importer.BatchStatus{}, eris.Wrap(err, "start batch")
	}

	if err := imp.Wait(ctx, id); err != nil {
		_ = imp.CancelBatch(id)
		return importer.BatchStatus{}, eris.Wrap(err, "wait for batch")
	}

	st, err := imp.GetBatchStatus(id)
	if err != nil {
		return importer.BatchStatus{}, err
	}
	if st.State == importer.StateAborted {
		return st, eris.Errorf("batch aborted: %s", st.Reason)
	}

	if commit {
		results, err := imp.CommitBatch(ctx, id)
		if err != nil {
			return st, eris.Wrap(err, "commit batch")
		}
		committed := 0
		for _, r := range results {
			if r.Status == importer.StatusCommitted {
				committed++
			}
		}
		zap.L().Info("batch committed",
			zap.String("batch_id", id),
			zap.Int("committed", committed),
			zap.Int("failed", len(results)-committed),
		)
		if st, err = imp.GetBatchStatus(id); err != nil {
			return st, err
		}
	}
	return st, nil
}

func readDocuments(paths []string) ([]importer.Document, error) {
	docs := make([]importer.Document, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", p)
		}
		docs = append(docs, importer.Document{Name: filepath.Base(p), Content: content})
	}
	return docs, nil
}

func writeReportFile(path string, st importer.BatchStatus) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create report")
	}
	if err := importer.WriteReport(f, st); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "close report")
}

func formatItems(out io.Writer, st importer.BatchStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOCUMENT\tSTATUS\tSCORE\tCATEGORY\tCLIENT\tPOLICY\tERROR")
	_, _ = fmt.Fprintln(w, "--------\t------\t-----\t--------\t------\t------\t-----")

	for _, it := range st.Items {
		errMsg := ""
		if it.Error != nil {
			errMsg = string(it.Error.Kind) + ": " + it.Error.Reason
			if len(errMsg) > 60 {
				errMsg = errMsg[:57] + "..."
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			it.Source,
			it.Status,
			it.Confidence.Value,
			it.Confidence.Category,
			it.Record.Client.Name,
			it.Record.Policy.Number,
			errMsg,
		)
	}
	_, _ = fmt.Fprintf(w, "\nbatch %s: %s %s\n", st.ID, st.State, st.Reason)
	_ = w.Flush()
}
