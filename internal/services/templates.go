package services

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

var ErrUnknownTemplate = errors.New("unknown email template")

// Имена шаблонов и заголовки писем.
var templateTitles = map[string]string{
	"verification_request":       "Volunteer Hours Verification Request",
	"approval":                   "Hours Approved",
	"denial":                     "Hours Denied",
	"hours_approved":             "Your Volunteer Hours Have Been Approved!",
	"hours_denied":               "Volunteer Hours Update",
	"student_notification":       "Volunteer Hours Update",
	"opportunity_registration":   "Registration Confirmed",
	"opportunity_reminder":       "Upcoming Volunteer Opportunity",
	"opportunity_unregistration": "Unregistration Confirmed",
}

type TemplateService struct {
	set *template.Template
}

// NewTemplateService парсит встроенные шаблоны или, если dir не пустой, шаблоны из каталога.
func NewTemplateService(dir string) (*TemplateService, error) {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	set, err := template.New("email").Option("missingkey=zero").ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	for name := range templateTitles {
		if set.Lookup(name+".html") == nil {
			return nil, fmt.Errorf("%w: %s.html is missing", ErrUnknownTemplate, name)
		}
	}
	return &TemplateService{set: set}, nil
}

// Render рендерит именованный шаблон. data не изменяется.
func (s *TemplateService) Render(name string, data map[string]any) (string, error) {
	title, ok := templateTitles[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	vars := make(map[string]any, len(data)+1)
	vars["title"] = title
	for k, v := range data {
		vars[k] = v
	}

	var buf bytes.Buffer
	if err := s.set.ExecuteTemplate(&buf, name+".html", vars); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
