// Package pdfexport renders invoices to PDF. Export is a paid feature; the
// template's accent color is only applied when the tier includes custom
// branding, otherwise the default scheme is used.
package pdfexport

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/invoice"
	"github.com/quillbill/quillbill/internal/template"
)

var (
	colorDefault   = [3]int{30, 58, 95}    // navy, used when branding is locked
	colorTextDark  = [3]int{44, 62, 80}
	colorTextMuted = [3]int{127, 140, 141}
	colorTableAlt  = [3]int{241, 245, 249}
)

// Renderer generates invoice PDFs.
type Renderer struct{}

// NewRenderer creates a new PDF renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces an A4 invoice PDF. When branded is false the template's
// accent color is ignored and the default scheme is used.
func (r *Renderer) Render(inv *invoice.Invoice, biller *account.User, tpl template.Template, branded bool) ([]byte, error) {
	accent := colorDefault
	if branded {
		if rgb, err := parseHexColor(tpl.Accent); err == nil {
			accent = rgb
		}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()

	// Top accent bar
	pdf.SetFillColor(accent[0], accent[1], accent[2])
	pdf.Rect(0, 0, pageWidth, 8, "F")

	// Header: business name and invoice number
	pdf.SetY(20)
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(accent[0], accent[1], accent[2])
	businessName := biller.BusinessName
	if businessName == "" {
		businessName = biller.Name
	}
	pdf.CellFormat(0, 10, businessName, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 6, fmt.Sprintf("Invoice %s", inv.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued %s   Due %s",
		inv.IssueDate.Format("Jan 2, 2006"), inv.DueDate.Format("Jan 2, 2006")), "", 1, "L", false, 0, "")

	// Biller / client blocks
	pdf.Ln(8)
	blockY := pdf.GetY()
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(85, 6, "From", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, line := range billerLines(biller) {
		pdf.CellFormat(85, 5, line, "", 1, "L", false, 0, "")
	}

	pdf.SetXY(110, blockY)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(80, 6, "Bill To", "", 2, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(80, 5, inv.ClientName, "", 2, "L", false, 0, "")
	if inv.ClientEmail != "" {
		pdf.CellFormat(80, 5, inv.ClientEmail, "", 2, "L", false, 0, "")
	}

	// Line item table
	pdf.SetY(blockY + 40)
	pdf.SetFillColor(accent[0], accent[1], accent[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(95, 8, "Description", "", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Qty", "", 0, "R", true, 0, "")
	pdf.CellFormat(25, 8, "Rate", "", 0, "R", true, 0, "")
	pdf.CellFormat(25, 8, "Amount", "", 1, "R", true, 0, "")

	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.SetFont("Arial", "", 10)
	for i, li := range inv.Items {
		fill := i%2 == 1
		if fill {
			pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		}
		pdf.CellFormat(95, 7, li.Description, "", 0, "L", fill, 0, "")
		pdf.CellFormat(25, 7, trimFloat(li.Quantity), "", 0, "R", fill, 0, "")
		pdf.CellFormat(25, 7, formatCents(li.UnitCents, inv.Currency), "", 0, "R", fill, 0, "")
		pdf.CellFormat(25, 7, formatCents(li.TotalCents(), inv.Currency), "", 1, "R", fill, 0, "")
	}

	// Total row
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(accent[0], accent[1], accent[2])
	pdf.CellFormat(145, 9, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(25, 9, formatCents(inv.SubtotalCents(), inv.Currency), "", 1, "R", false, 0, "")

	if inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.MultiCell(0, 5, inv.Notes, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output error: %w", err)
	}
	return buf.Bytes(), nil
}

func billerLines(u *account.User) []string {
	var lines []string
	if u.BusinessName != "" && u.BusinessName != u.Name {
		lines = append(lines, u.Name)
	}
	if u.BusinessAddress != "" {
		lines = append(lines, u.BusinessAddress)
	}
	if u.TaxID != "" {
		lines = append(lines, "Tax ID: "+u.TaxID)
	}
	lines = append(lines, u.Email)
	return lines
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%s %.2f", currency, float64(cents)/100)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseHexColor(hex string) ([3]int, error) {
	if len(hex) != 7 || hex[0] != '#' {
		return [3]int{}, fmt.Errorf("invalid hex color %q", hex)
	}
	var rgb [3]int
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseInt(hex[1+i*2:3+i*2], 16, 0)
		if err != nil {
			return [3]int{}, fmt.Errorf("invalid hex color %q", hex)
		}
		rgb[i] = int(v)
	}
	return rgb, nil
}
