package notifier

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/alerting"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed email templates.
type Templates struct {
	html  *template.Template
	plain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	Event            string
	AreaName         string
	Severity         string
	SeverityColor    string
	BleachingCount   int
	Threshold        int
	Description      string
	Latitude         float64
	Longitude        float64
	AffectedRadiusKm float64
	Timestamp        string
	PreviousSeverity string
	PreviousCount    int
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}

	htmlTmpl, err := template.New("alert.html").Funcs(funcs).ParseFS(templateFS, "templates/alert.html")
	if err != nil {
		return nil, err
	}

	plainTmpl, err := template.New("alert.txt").Funcs(funcs).ParseFS(templateFS, "templates/alert.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		html:  htmlTmpl,
		plain: plainTmpl,
	}, nil
}

// RenderHTML renders the HTML email body.
func (t *Templates) RenderHTML(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.html.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlain renders the plain text email body.
func (t *Templates) RenderPlain(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.plain.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// severityColor returns the color for a severity level.
func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "#d32f2f" // red
	case models.SeverityHigh:
		return "#f57c00" // orange
	case models.SeverityMedium:
		return "#fbc02d" // yellow
	case models.SeverityLow:
		return "#388e3c" // green
	default:
		return "#757575" // gray
	}
}

// changeHeadline returns a human readable label for an outcome's change type.
func changeHeadline(change models.ChangeType) string {
	switch change {
	case models.ChangeCreated:
		return "New bleaching alert"
	case models.ChangeCountUpdated:
		return "Case count updated"
	case models.ChangeSeverityChanged:
		return "Severity changed"
	case models.ChangeDeactivated:
		return "Alert deactivated"
	case models.ChangeReactivated:
		return "Alert reactivated"
	default:
		return "Alert changed"
	}
}

// OutcomeToTemplateData converts a reconciliation outcome to template data.
func OutcomeToTemplateData(out *alerting.Outcome) TemplateData {
	alert := out.Alert
	return TemplateData{
		Event:            changeHeadline(out.Change),
		AreaName:         alert.AreaName,
		Severity:         string(alert.SeverityLevel),
		SeverityColor:    severityColor(alert.SeverityLevel),
		BleachingCount:   alert.BleachingCount,
		Threshold:        alert.Threshold,
		Description:      alert.Description,
		Latitude:         alert.Latitude,
		Longitude:        alert.Longitude,
		AffectedRadiusKm: alert.AffectedRadiusKm,
		Timestamp:        alert.UpdatedAt.Format("2006-01-02 15:04:05 MST"),
		PreviousSeverity: string(out.PreviousSeverity),
		PreviousCount:    out.PreviousCount,
	}
}
