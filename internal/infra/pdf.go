package infra

// pdf.go renders the printable boleta on 80mm thermal paper using go-pdf/fpdf.
// Layout: business header, folio and date, item table, net / IVA / total,
// SII timbre reference and footer. The result is returned in memory; the
// caller decides where it is stored.

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

type BoletaItem struct {
	Nombre   string
	Cantidad int
	Total    decimal.Decimal
}

// BoletaDocumento is everything printed on the receipt.
type BoletaDocumento struct {
	NombreComercio string
	RUTEmisor      string
	Sucursal       string
	Folio          int64
	FechaEmision   time.Time
	Items          []BoletaItem
	Descuento      decimal.Decimal
	IVA            decimal.Decimal
	Total          decimal.Decimal
	Timbre         string
}

const ticketWidthMM = 80.0

// RenderBoletaPDF returns the PDF bytes for doc.
func RenderBoletaPDF(doc BoletaDocumento) ([]byte, error) {
	// Height grows with the number of lines so long orders are not cut.
	height := 110 + float64(len(doc.Items))*5
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: ticketWidthMM, Ht: height},
	})
	pdf.SetMargins(5, 5, 5)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	contentW := ticketWidthMM - 10

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(doc.NombreComercio), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	if doc.RUTEmisor != "" {
		pdf.CellFormat(contentW, 4, "RUT: "+doc.RUTEmisor, "", 1, "C", false, 0, "")
	}
	if doc.Sucursal != "" {
		pdf.CellFormat(contentW, 4, tr(doc.Sucursal), "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, tr("BOLETA ELECTRÓNICA"), "1", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5, tr(fmt.Sprintf("N° %d", doc.Folio)), "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 5, doc.FechaEmision.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")

	pdf.Line(5, pdf.GetY(), ticketWidthMM-5, pdf.GetY())
	pdf.Ln(2)

	// ── Items ────────────────────────────────────────────────────────────────
	colName := contentW * 0.56
	colQty := contentW * 0.14
	colTotal := contentW * 0.30

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(colName, 5, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colQty, 5, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(colTotal, 5, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, it := range doc.Items {
		nombre := []rune(it.Nombre)
		if len(nombre) > 28 {
			nombre = append(nombre[:27], '.')
		}
		pdf.CellFormat(colName, 5, tr(string(nombre)), "", 0, "L", false, 0, "")
		pdf.CellFormat(colQty, 5, fmt.Sprintf("%d", it.Cantidad), "", 0, "C", false, 0, "")
		pdf.CellFormat(colTotal, 5, pesos(it.Total), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(5, pdf.GetY(), ticketWidthMM-5, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	if !doc.Descuento.IsZero() {
		pdf.CellFormat(colName+colQty, 5, "Descuento:", "", 0, "L", false, 0, "")
		pdf.CellFormat(colTotal, 5, "-"+pesos(doc.Descuento), "", 1, "R", false, 0, "")
	}
	pdf.CellFormat(colName+colQty, 5, "IVA incluido:", "", 0, "L", false, 0, "")
	pdf.CellFormat(colTotal, 5, pesos(doc.IVA), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(colName+colQty, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(colTotal, 6, pesos(doc.Total), "", 1, "R", false, 0, "")

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "", 6)
	if doc.Timbre != "" {
		pdf.MultiCell(contentW, 3, "Timbre SII: "+doc.Timbre, "", "C", false)
	}
	pdf.CellFormat(contentW, 4, tr("Verifique documento en www.sii.cl"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, tr("¡Gracias por su compra!"), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render boleta %d: %w", doc.Folio, err)
	}
	return buf.Bytes(), nil
}

// pesos formats an amount as Chilean pesos without decimals: $12.500
func pesos(v decimal.Decimal) string {
	s := v.Round(0).StringFixed(0)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg, s = true, s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-$" + string(out)
	}
	return "$" + string(out)
}
