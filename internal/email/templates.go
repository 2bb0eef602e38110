package email

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Template names used by the credential flows.
const (
	TemplateVerification  = "verification"
	TemplatePasswordReset = "password_reset"
)

const defaultVerificationTemplate = `<html><body>
<h2>Welcome to CareWorks</h2>
<p>Please confirm your email address by clicking the link below. The link is valid for 24 hours.</p>
<p><a href="{{.Link}}">Verify my account</a></p>
<p>If you did not create an account, you can ignore this email.</p>
</body></html>`

const defaultPasswordResetTemplate = `<html><body>
<h2>Password reset</h2>
<p>Your one-time code is:</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>The code expires in 15 minutes. If you did not request a reset, you can ignore this email.</p>
</body></html>`

// TemplateManager implements TemplateRenderer. It ships with built-in
// defaults for the credential mails; LoadTemplates can override them from
// a directory of .html files.
type TemplateManager struct {
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{
		templates: make(map[string]*template.Template),
	}
	// Built-in defaults; parse errors here are programmer errors.
	_ = tm.AddTemplate(TemplateVerification, defaultVerificationTemplate)
	_ = tm.AddTemplate(TemplatePasswordReset, defaultPasswordResetTemplate)
	return tm
}

// Render executes a named template.
func (tm *TemplateManager) Render(templateName string, data TemplateData) (string, error) {
	tm.mutex.RLock()
	tpl, exists := tm.templates[templateName]
	tm.mutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// AddTemplate registers or replaces a template.
func (tm *TemplateManager) AddTemplate(name string, templateStr string) error {
	tpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	tm.mutex.Lock()
	tm.templates[name] = tpl
	tm.mutex.Unlock()

	return nil
}

// LoadTemplates loads every .html file in a directory, keyed by base name.
func (tm *TemplateManager) LoadTemplates(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", path, err)
		}

		templateName := strings.TrimSuffix(filepath.Base(path), ".html")
		if err := tm.AddTemplate(templateName, string(content)); err != nil {
			return fmt.Errorf("failed to add template %s: %w", templateName, err)
		}

		return nil
	})
}
