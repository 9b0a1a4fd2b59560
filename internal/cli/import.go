package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coach/internal/core"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import meet entries or results",
	}
	cmd.AddCommand(newImportEntriesCmd(a), newImportResultsCmd(a))
	return cmd
}

func newImportEntriesCmd(a *app) *cobra.Command {
	var meetID string

	cmd := &cobra.Command{
		Use:   "entries --meet ID FILE...",
		Short: "Import one or more vendor CSV entry exports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			docs, closeAll, err := openDocuments(args)
			if err != nil {
				return err
			}
			defer closeAll()

			st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := a.service(st).ImportEntries(ctx, meetID, docs)
			return a.finish(cmd, result, err)
		},
	}

	cmd.Flags().StringVar(&meetID, "meet", "", "Meet id (required)")
	cmd.MarkFlagRequired("meet")
	return cmd
}

func newImportResultsCmd(a *app) *cobra.Command {
	var (
		meetID string
		fetch  bool
	)

	cmd := &cobra.Command{
		Use:   "results --meet ID [FILE | --fetch]",
		Short: "Import an HTML results report from a file or RESULTS_URL",
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case fetch && len(args) > 0:
				return fmt.Errorf("--fetch does not take a file argument")
			case !fetch && len(args) != 1:
				return fmt.Errorf("expected exactly one results file, or --fetch")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			svc := a.service(st)

			if fetch {
				result, err := svc.FetchResults(ctx, meetID)
				return a.finish(cmd, result, err)
			}

			docs, closeAll, err := openDocuments(args)
			if err != nil {
				return err
			}
			defer closeAll()

			result, err := svc.ImportResults(ctx, meetID, docs[0])
			return a.finish(cmd, result, err)
		},
	}

	cmd.Flags().StringVar(&meetID, "meet", "", "Meet id (required)")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Download the report from RESULTS_URL")
	cmd.MarkFlagRequired("meet")
	return cmd
}

// finish prints result (even a partial one) and maps skipped records to
// errPartial.
func (a *app) finish(cmd *cobra.Command, result *core.ImportResult, err error) error {
	if result != nil {
		if werr := writeResult(cmd.OutOrStdout(), result, a.format); werr != nil {
			return fmt.Errorf("writing output: %w", werr)
		}
	}
	if err != nil {
		return err
	}
	if result.Skipped() > 0 {
		return errPartial
	}
	return nil
}

// openDocuments opens every path. The returned func closes them all.
func openDocuments(paths []string) ([]core.Document, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	docs := make([]core.Document, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, &core.DocumentError{File: filepath.Base(p), Err: err}
		}
		files = append(files, f)
		docs = append(docs, core.Document{Name: filepath.Base(p), Reader: f})
	}
	return docs, closeAll, nil
}
