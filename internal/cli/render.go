package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cuongbtq/coursehub/internal/backend"
	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/mapping"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderers maps --format values to table renderers. json bypasses the table.
var renderers = map[string]func(table.Writer) string{
	"table":    table.Writer.Render,
	"markdown": table.Writer.RenderMarkdown,
	"csv":      table.Writer.RenderCSV,
	"json":     nil,
}

// courseTitleKeys are tried in order to label a search result
var courseTitleKeys = []string{"title", "name", "course_name", "course_title"}

func writeTable(out io.Writer, format string, header table.Row, rows []table.Row, configs []table.ColumnConfig, raw any) error {
	render := renderers[format]
	if render == nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(raw)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.SetColumnConfigs(configs)

	_, err := fmt.Fprintln(out, render(t))
	return err
}

func writeMapping(out io.Writer, format string, rows []mapping.Row) error {
	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		key := ""
		if r.IsKey {
			key = "yes"
		}
		tableRows[i] = table.Row{i, r.ID, r.SourceColumn, r.DisplayName, key}
	}

	return writeTable(out, format,
		table.Row{"#", "id", "column", "display name", "key"},
		tableRows,
		[]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight},
			{Number: 2, Align: text.AlignRight},
			{Number: 5, Align: text.AlignCenter},
		},
		rows,
	)
}

func writeHandle(out io.Writer, format string, h domain.TaskHandle) error {
	return writeTable(out, format,
		table.Row{"task", "state", "status", "progress", "total", "percent", "error"},
		[]table.Row{{
			h.TaskID,
			h.State,
			h.Status,
			h.Progress,
			h.Total,
			strconv.FormatFloat(h.Percent(), 'f', 0, 64) + "%",
			h.ErrorDetail,
		}},
		[]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
		},
		h,
	)
}

func writeSearchResults(out io.Writer, format string, results []backend.SearchResult, reasoning bool) error {
	header := table.Row{"#", "course", "score"}
	if reasoning {
		header = append(header, "reasoning")
	}

	rows := make([]table.Row, len(results))
	for i, r := range results {
		row := table.Row{i + 1, courseTitle(r.Course), strconv.FormatFloat(r.Score, 'f', 3, 64)}
		if reasoning {
			row = append(row, r.Reasoning)
		}
		rows[i] = row
	}

	return writeTable(out, format, header, rows,
		[]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight},
			{Number: 2, WidthMax: 60},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, WidthMax: 80},
		},
		results,
	)
}

// courseTitle labels a course by its first title-like field, or by its
// fields in key order when none is present.
func courseTitle(course map[string]any) string {
	for _, k := range courseTitleKeys {
		if v, ok := course[k]; ok {
			return fmt.Sprint(v)
		}
	}

	keys := make([]string, 0, len(course))
	for k := range course {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := ""
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", k, course[k])
	}
	return s
}
