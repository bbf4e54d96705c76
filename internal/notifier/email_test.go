package notifier

import (
	"strings"
	"testing"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

func TestEmailConfigValidate(t *testing.T) {
	valid := EmailConfig{
		Host:       "smtp.example.com",
		Port:       587,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*EmailConfig)
	}{
		{"missing host", func(c *EmailConfig) { c.Host = "" }},
		{"missing port", func(c *EmailConfig) { c.Port = 0 }},
		{"missing from", func(c *EmailConfig) { c.From = "" }},
		{"no recipients", func(c *EmailConfig) { c.Recipients = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTemplateRendering(t *testing.T) {
	templates, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}

	data := OutcomeToTemplateData(testOutcome(models.ChangeSeverityChanged))

	plain, err := templates.RenderPlain(&data)
	if err != nil {
		t.Fatalf("RenderPlain: %v", err)
	}
	for _, want := range []string{"Manila Bay", "650", "critical", "CRITICAL"} {
		if !strings.Contains(plain, want) {
			t.Errorf("plain body missing %q:\n%s", want, plain)
		}
	}

	html, err := templates.RenderHTML(&data)
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	for _, want := range []string{"Manila Bay", "650", "#d32f2f"} {
		if !strings.Contains(html, want) {
			t.Errorf("html body missing %q", want)
		}
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	notifier := &EmailNotifier{
		config: EmailConfig{
			Host:       "smtp.example.com",
			Port:       587,
			From:       "Coral Watch <alerts@example.com>",
			Recipients: []string{"ops@example.com", "science@example.com"},
		},
	}

	msg := string(notifier.buildMIMEMessage("[CRITICAL] Coral Bleaching Alert: Manila Bay", "plain body", "<p>html body</p>"))

	for _, want := range []string{
		"From: Coral Watch <alerts@example.com>",
		"To: ops@example.com, science@example.com",
		"Subject: [CRITICAL] Coral Bleaching Alert: Manila Bay",
		"multipart/alternative",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	notifier := &EmailNotifier{}
	tests := []struct {
		in, want string
	}{
		{"alerts@example.com", "alerts@example.com"},
		{"Coral Watch <alerts@example.com>", "alerts@example.com"},
	}
	for _, tt := range tests {
		if got := notifier.extractEmail(tt.in); got != tt.want {
			t.Errorf("extractEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
