package importer

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
)

// Report sheet names.
const (
	ReportItemsSheet = "Items"
	ReportNotesSheet = "Notes"
)

var reportHeader = []string{
	"Source", "Status", "Confidence", "Category", "Document Type",
	"Client", "Client Document", "Client Resolution",
	"Insurer", "Branch", "Policy Number", "Start Date", "End Date",
	"Net Premium", "Total Premium", "Policy ID", "Error Kind", "Error",
}

var notesHeader = []string{"Source", "Kind", "Field", "Reason"}

// WriteReport writes the batch items as an XLSX workbook to w: one row per
// item on the Items sheet and one row per note on the Notes sheet.
func WriteReport(w io.Writer, st BatchStatus) error {
	f := xlsx.NewFile()

	items, err := f.AddSheet(ReportItemsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add items sheet")
	}
	addRow(items, reportHeader...)
	for _, it := range st.Items {
		rec := it.Record
		errKind, errReason := "", ""
		if it.Error != nil {
			errKind, errReason = string(it.Error.Kind), it.Error.Reason
		}
		row := items.AddRow()
		row.AddCell().SetString(it.Source)
		row.AddCell().SetString(string(it.Status))
		row.AddCell().SetInt(it.Confidence.Value)
		for _, v := range []string{
			string(it.Confidence.Category),
			string(rec.DocumentType),
			rec.Client.Name,
			rec.Client.DocumentID,
			string(it.Reconciliation.Client.Resolution),
			rec.Policy.InsurerName,
			rec.Policy.Branch,
			rec.Policy.Number,
			rec.Policy.StartDate,
			rec.Policy.EndDate,
		} {
			row.AddCell().SetString(v)
		}
		addAmount(row, rec.Values.NetPremium)
		addAmount(row, rec.Values.TotalPremium)
		row.AddCell().SetString(it.PolicyID)
		row.AddCell().SetString(errKind)
		row.AddCell().SetString(errReason)
	}

	notes, err := f.AddSheet(ReportNotesSheet)
	if err != nil {
		return eris.Wrap(err, "report: add notes sheet")
	}
	addRow(notes, notesHeader...)
	for _, it := range st.Items {
		for _, n := range it.Notes {
			addRow(notes, it.Source, string(n.Kind), n.Field, n.Reason)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// addAmount writes a premium as a number cell, or an empty cell when absent.
func addAmount(row *xlsx.Row, v decimal.NullDecimal) {
	cell := row.AddCell()
	if !v.Valid {
		return
	}
	cell.SetFloat(v.Decimal.Round(2).InexactFloat64())
}
