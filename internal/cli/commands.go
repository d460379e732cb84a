package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/mapping"
	"github.com/cuongbtq/coursehub/internal/workflow"
	"github.com/spf13/cobra"
)

// errNotConfirmed is returned by manage when --confirm is missing
var errNotConfirmed = errors.New("rerun with --confirm to proceed")

// readCSV loads a local CSV for submission
func readCSV(path string) (workflow.File, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.File{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return workflow.File{
		Name:    filepath.Base(path),
		Size:    int64(len(data)),
		Content: bytes.NewReader(data),
	}, data, nil
}

func (a *app) newPreviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE",
		Short: "Show the column mapping built from a CSV header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			preview, err := a.service.PreviewMapping(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := writeMapping(out, a.format(), preview.Rows); err != nil {
				return err
			}
			if a.format() != "json" {
				fmt.Fprintf(out, "%d records\n", preview.Records)
				if preview.Quoted {
					fmt.Fprintln(out, "warning: the header has quoted names; try --header-split=csv if columns look cut")
				}
			}
			return nil
		},
	}
}

// mappingEdits are the bulk command's edits, applied in flag order per kind
type mappingEdits struct {
	key     string
	renames []string
	moves   []string
	drops   []string
}

func rowID(m *mapping.Mapping, column string) (int, error) {
	for _, r := range m.Rows() {
		if r.SourceColumn == column {
			return r.ID, nil
		}
	}
	return 0, domain.NewError(domain.ErrValidation, fmt.Sprintf("column %q is not in the file header", column), nil)
}

// apply runs drops, renames, moves and finally the key selection
func (e mappingEdits) apply(m *mapping.Mapping) error {
	for _, col := range e.drops {
		id, err := rowID(m, col)
		if err != nil {
			return err
		}
		if err := m.Delete(id); err != nil {
			return err
		}
	}

	for _, spec := range e.renames {
		col, name, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return domain.NewError(domain.ErrValidation, fmt.Sprintf("rename %q must look like COLUMN=NAME", spec), nil)
		}
		id, err := rowID(m, col)
		if err != nil {
			return err
		}
		if err := m.Rename(id, name); err != nil {
			return err
		}
	}

	for _, spec := range e.moves {
		from, to, err := parseMove(spec)
		if err != nil {
			return err
		}
		if err := m.Move(from, to); err != nil {
			return err
		}
	}

	if e.key != "" {
		id, err := rowID(m, e.key)
		if err != nil {
			return err
		}
		return m.SetKey(id)
	}
	return nil
}

func parseMove(spec string) (int, int, error) {
	fromStr, toStr, ok := strings.Cut(spec, ":")
	from, errFrom := strconv.Atoi(fromStr)
	to, errTo := strconv.Atoi(toStr)
	if !ok || errFrom != nil || errTo != nil {
		return 0, 0, domain.NewError(domain.ErrValidation, fmt.Sprintf("move %q must look like FROM:TO", spec), nil)
	}
	return from, to, nil
}

func (a *app) newBulkCommand() *cobra.Command {
	var (
		edits     mappingEdits
		reasoning bool
		chunkSize int
		wait      bool
		outPath   string
		idemKey   string
	)

	cmd := &cobra.Command{
		Use:   "bulk FILE",
		Short: "Upload a CSV and start a bulk course inference run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, data, err := readCSV(args[0])
			if err != nil {
				return err
			}

			m, _, err := mapping.Parse(bytes.NewReader(data), a.split())
			if err != nil {
				return err
			}
			if err := edits.apply(m); err != nil {
				return err
			}

			svc := a.service
			if chunkSize > 0 {
				svc = workflow.NewService(a.client, a.client, nil, workflow.Config{
					ChunkSize:   chunkSize,
					HeaderSplit: a.split(),
				}, a.logger.Component("workflow"))
			}

			sub, err := svc.SubmitBulkInference(cmd.Context(), workflow.BulkRequest{
				File:             file,
				Mapping:          m,
				RequireReasoning: reasoning,
				IdempotencyKey:   idemKey,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "task %s started\n", sub.TaskID)
			fmt.Fprintf(out, "key column: %s\n", sub.KeyColumn)
			fmt.Fprintf(out, "results: %s\n", sub.OutputPath)

			if !wait {
				return nil
			}
			if err := a.wait(cmd.Context(), out, sub.TaskID); err != nil {
				return err
			}
			if outPath != "" {
				return a.downloadTo(cmd.Context(), out, sub.OutputPath, outPath)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&edits.key, "key", "", "source column used as the primary key (required)")
	flags.StringArrayVar(&edits.renames, "rename", nil, "rename a column in the template, COLUMN=NAME (repeatable)")
	flags.StringArrayVar(&edits.moves, "move", nil, "move a mapping row, FROM:TO zero-based (repeatable)")
	flags.StringArrayVar(&edits.drops, "drop", nil, "leave a column out of the template (repeatable)")
	flags.BoolVar(&reasoning, "reasoning", false, "ask the backend for reasoning")
	flags.IntVar(&chunkSize, "chunk-size", 0, "rows per backend chunk (default 100)")
	flags.BoolVar(&wait, "wait", false, "poll the task until it finishes")
	flags.StringVarP(&outPath, "output", "o", "", "with --wait, download the results CSV here")
	flags.StringVar(&idemKey, "idempotency-key", "", "submission key guarding against double submits")

	return cmd
}

func (a *app) newManageCommand() *cobra.Command {
	var (
		confirm bool
		column  string
		wait    bool
	)

	cmd := &cobra.Command{
		Use:       "manage add|update|delete FILE",
		Short:     "Add, update or delete the courses listed in a CSV",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(workflow.ActionAdd), string(workflow.ActionUpdate), string(workflow.ActionDelete)},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := workflow.ParseAction(args[0])
			if err != nil {
				return err
			}
			spec := action.Spec()

			file, data, err := readCSV(args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !confirm {
				records, err := mapping.RecordCount(bytes.NewReader(data))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, spec.Warning)
				fmt.Fprintln(out, spec.Confirmation(records))
				return errNotConfirmed
			}

			sub, err := a.service.SubmitManagement(cmd.Context(), workflow.ManageRequest{
				Action:     action,
				File:       file,
				Confirm:    true,
				ColumnName: column,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "task %s started for %d records\n", sub.TaskID, sub.Records)
			if !wait {
				return nil
			}
			if err := a.wait(cmd.Context(), out, sub.TaskID); err != nil {
				return err
			}
			fmt.Fprintln(out, spec.Success(sub.Records))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&confirm, "confirm", false, "confirm the action")
	flags.StringVar(&column, "column", "", "column holding the ids to delete (delete only)")
	flags.BoolVar(&wait, "wait", false, "poll the task until it finishes")

	return cmd
}

func (a *app) newStatusCommand() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show the status of a backend task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if wait {
				return a.wait(cmd.Context(), out, args[0])
			}

			status, err := a.client.TaskStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			h := domain.NewTaskHandle(args[0])
			h.Status, h.Progress, h.Total, h.ErrorDetail = status.Status, status.Progress, status.Total, status.Error
			switch status.Status {
			case domain.BackendStatusCompleted:
				h.State = domain.PollStateCompleted
			case domain.BackendStatusFailed:
				h.State = domain.PollStateFailed
			}
			return writeHandle(out, a.format(), h)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "poll the task until it finishes")
	return cmd
}

func (a *app) newDownloadCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "download PATH",
		Short: "Download a file from the backend file store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				outPath = filepath.Base(args[0])
			}
			return a.downloadTo(cmd.Context(), cmd.OutOrStdout(), args[0], outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "destination file (default: base name of PATH)")
	return cmd
}

func (a *app) newSearchCommand() *cobra.Command {
	var (
		num       int
		languages []string
		reasoning bool
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search courses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.service.Search(cmd.Context(), workflow.SearchRequest{
				Query:            strings.Join(args, " "),
				NumCourses:       num,
				Languages:        languages,
				RequireReasoning: reasoning,
			})
			if err != nil {
				return err
			}
			return writeSearchResults(cmd.OutOrStdout(), a.format(), resp.Results, reasoning)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&num, "num", "n", workflow.DefaultNumCourses, "number of courses to return")
	flags.StringArrayVar(&languages, "language", nil, "restrict to a language (repeatable): "+strings.Join(workflow.Languages, ", "))
	flags.BoolVar(&reasoning, "reasoning", false, "ask the backend for reasoning")

	return cmd
}

// wait polls taskID to a terminal state, printing one line per update
func (a *app) wait(ctx context.Context, out io.Writer, taskID string) error {
	final, err := a.poller.Run(ctx, taskID, func(h domain.TaskHandle) {
		if !h.Terminal() {
			fmt.Fprintf(out, "%s %d/%d (%.0f%%)\n", h.State, h.Progress, h.Total, h.Percent())
		}
	})
	if werr := writeHandle(out, a.format(), final); werr != nil {
		return werr
	}
	return err
}

func (a *app) downloadTo(ctx context.Context, out io.Writer, remote, local string) error {
	f, err := os.Create(local)
	if err != nil {
		return err
	}

	n, err := a.client.Download(ctx, remote, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(local)
		return err
	}

	fmt.Fprintf(out, "saved %s (%d bytes)\n", local, n)
	return nil
}
