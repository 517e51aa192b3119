package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/operations"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func printStageSummary(w io.Writer, m *operations.RunManifest) {
	fmt.Fprintln(w, "Run:", m.ID)
	table := newTable(w, []string{"Stage", "Status", "Duration", "Tables", "Diagnostics", "Error"})
	for _, s := range m.Stages {
		table.Append([]string{
			s.StageID,
			string(s.Status),
			s.Duration,
			strconv.Itoa(len(s.Tables)),
			strconv.Itoa(s.Diagnostics),
			s.Error,
		})
	}
	table.Render()
}

func printOutputSummary(w io.Writer, outputs domain.Tables) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	table := newTable(w, []string{"Table", "Rows", "Columns"})
	for _, name := range names {
		t := outputs[name]
		table.Append([]string{name, strconv.Itoa(t.NumRows()), strconv.Itoa(t.NumColumns())})
	}
	table.Render()
}

func printDiagnosticSummary(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No diagnostics")
		return
	}
	types := make([]string, 0, len(counts))
	for typ := range counts {
		types = append(types, typ)
	}
	sort.Strings(types)

	table := newTable(w, []string{"Diagnostic", "Count"})
	for _, typ := range types {
		table.Append([]string{typ, strconv.Itoa(counts[typ])})
	}
	table.Render()
}

func printRawSchemas(w io.Writer) {
	datasets := make([]string, 0, len(domain.RawSchemas))
	for name := range domain.RawSchemas {
		datasets = append(datasets, name)
	}
	sort.Strings(datasets)

	table := newTable(w, []string{"Dataset", "File", "Column", "Type"})
	for _, dataset := range datasets {
		file := domain.RawDatasetFiles[dataset]
		if domain.OptionalDatasets[dataset] {
			file += " (optional)"
		}
		for _, field := range domain.RawSchemas[dataset] {
			table.Append([]string{dataset, file, field.Name, field.Type.String()})
		}
	}
	table.Render()
}
