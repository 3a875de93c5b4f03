package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"os"
	"strings"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// HTMLTemplate renders a certificate from an HTML file discovered in the
// templates directory. The file is re-read on every render so edits on disk
// take effect without a restart, matching the directory-discovery contract.
type HTMLTemplate struct {
	name     string
	filePath string
}

// NewHTMLTemplate wraps an HTML file as a certificate renderer. The template
// name is the file name without its extension.
func NewHTMLTemplate(name, filePath string) *HTMLTemplate {
	return &HTMLTemplate{name: name, filePath: filePath}
}

// Name returns the registry identifier.
func (t *HTMLTemplate) Name() string { return t.name }

// Description returns a human readable summary.
func (t *HTMLTemplate) Description() string {
	return fmt.Sprintf("HTML template: %s", t.name)
}

// Render substitutes the certificate data into the HTML file and converts the
// result to PDF via wkhtmltopdf.
func (t *HTMLTemplate) Render(data Data, outPath string) (string, error) {
	raw, err := os.ReadFile(t.filePath)
	if err != nil {
		return "", fmt.Errorf("read html template %s: %w", t.name, err)
	}

	tmpl, err := htmltemplate.New(t.name).Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse html template %s: %w", t.name, err)
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, t.templateVars(data)); err != nil {
		return "", fmt.Errorf("execute html template %s: %w", t.name, err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return "", fmt.Errorf("init pdf generator: %w", err)
	}
	pdfg.Orientation.Set(wkhtmltopdf.OrientationLandscape)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.AddPage(wkhtmltopdf.NewPageReader(strings.NewReader(rendered.String())))

	if err := pdfg.Create(); err != nil {
		return "", fmt.Errorf("convert html template %s: %w", t.name, err)
	}
	if err := pdfg.WriteFile(outPath); err != nil {
		return "", fmt.Errorf("write certificate pdf: %w", err)
	}
	return outPath, nil
}

// templateVars exposes the data under the field names HTML templates use.
// Dates are presented as DD/MM/YYYY.
func (t *HTMLTemplate) templateVars(data Data) map[string]interface{} {
	return map[string]interface{}{
		"student_name":    data.StudentName,
		"student_cpf":     formatCPF(data.StudentCPF),
		"course_name":     data.CourseName,
		"course_workload": data.CourseWorkload,
		"class_name":      data.ClassName,
		"issue_date":      data.IssueDate.Format("02/01/2006"),
		"uuid":            data.UUID,
		"validation_url":  data.ValidationURL,
	}
}
