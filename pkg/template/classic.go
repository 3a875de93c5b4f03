package template

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// landscape A4 in millimetres
const (
	pageWidth  = 297.0
	pageHeight = 210.0
)

// ClassicTemplate is the built-in formal certificate layout drawn directly
// with gofpdf. It is always available regardless of the templates directory.
type ClassicTemplate struct{}

// NewClassicTemplate constructs the default layout.
func NewClassicTemplate() *ClassicTemplate {
	return &ClassicTemplate{}
}

// Name returns the registry identifier.
func (t *ClassicTemplate) Name() string { return "default" }

// Description returns a human readable summary.
func (t *ClassicTemplate) Description() string {
	return "Formal landscape certificate with border and validation footer"
}

// Render draws the certificate and writes the PDF to outPath.
func (t *ClassicTemplate) Render(data Data, outPath string) (string, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	// core fonts expect cp1252, so every string goes through the translator
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// double border
	pdf.SetLineWidth(1.2)
	pdf.Rect(8, 8, pageWidth-16, pageHeight-16, "D")
	pdf.SetLineWidth(0.3)
	pdf.Rect(11, 11, pageWidth-22, pageHeight-22, "D")

	pdf.SetFont("Arial", "B", 30)
	pdf.SetY(35)
	pdf.CellFormat(0, 14, tr("CERTIFICADO"), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 13)
	pdf.SetY(60)
	pdf.CellFormat(0, 8, tr("Certificamos que"), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 12, tr(data.StudentName), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("CPF: %s", formatCPF(data.StudentCPF))), "", 1, "C", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, tr("concluiu com aproveitamento o curso"), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 10, tr(data.CourseName), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	detail := fmt.Sprintf("Carga horária: %d horas", data.CourseWorkload)
	if data.ClassName != "" {
		detail = fmt.Sprintf("Turma: %s  •  %s", data.ClassName, detail)
	}
	pdf.CellFormat(0, 8, tr(detail), "", 1, "C", false, 0, "")

	pdf.SetY(150)
	pdf.SetFont("Arial", "I", 11)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Emitido em %s", data.IssueDate.Format("02/01/2006"))), "", 1, "C", false, 0, "")

	pdf.SetY(pageHeight - 30)
	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Código de validação: %s", data.UUID)), "", 1, "C", false, 0, "")
	if data.ValidationURL != "" {
		pdf.CellFormat(0, 5, tr(data.ValidationURL), "", 1, "C", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", fmt.Errorf("render classic certificate: %w", err)
	}
	return outPath, nil
}

// MinimalTemplate is a plain layout without borders for bulk printing.
type MinimalTemplate struct{}

// NewMinimalTemplate constructs the minimal layout.
func NewMinimalTemplate() *MinimalTemplate {
	return &MinimalTemplate{}
}

// Name returns the registry identifier.
func (t *MinimalTemplate) Name() string { return "minimal" }

// Description returns a human readable summary.
func (t *MinimalTemplate) Description() string {
	return "Plain text-only certificate for economical printing"
}

// Render draws the minimal certificate and writes the PDF to outPath.
func (t *MinimalTemplate) Render(data Data, outPath string) (string, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(25, 30, 25)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 22)
	pdf.SetY(45)
	pdf.CellFormat(0, 12, tr("Certificado de Conclusão"), "", 1, "C", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Arial", "", 12)
	body := fmt.Sprintf(
		"%s (CPF %s) concluiu o curso %s, com carga horária de %d horas.",
		data.StudentName, formatCPF(data.StudentCPF), data.CourseName, data.CourseWorkload,
	)
	pdf.MultiCell(0, 8, tr(body), "", "C", false)

	pdf.Ln(12)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Emitido em %s", data.IssueDate.Format("02/01/2006"))), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Validação: %s", data.UUID)), "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", fmt.Errorf("render minimal certificate: %w", err)
	}
	return outPath, nil
}

// formatCPF renders the stored 11-digit value as XXX.XXX.XXX-XX for display.
func formatCPF(cpf string) string {
	if len(cpf) != 11 {
		return cpf
	}
	return fmt.Sprintf("%s.%s.%s-%s", cpf[0:3], cpf[3:6], cpf[6:9], cpf[9:11])
}
