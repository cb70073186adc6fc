package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

// knownTemplates — шаблоны, для которых есть HTML-файл.
var knownTemplates = []string{
	TemplateFileCreated,
	TemplateFileUpdated,
	TemplateFileStateChanged,
	TemplateNewComment,
	TemplateNewRating,
	TemplateNewReport,
}

// Renderer рендерит HTML-тело письма по имени шаблона.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer разбирает встроенные шаблоны. Каждый шаблон собирается
// вместе с общим layout в отдельный набор.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(knownTemplates))}
	for _, name := range knownTemplates {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("разбор шаблона %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render возвращает HTML письма. Неизвестный шаблон — ошибка.
func (r *Renderer) Render(msg Message) (string, error) {
	t, ok := r.templates[msg.Template]
	if !ok {
		return "", fmt.Errorf("неизвестный шаблон письма: %q", msg.Template)
	}

	data := make(map[string]any, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["subject"] = msg.Subject

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("рендеринг шаблона %s: %w", msg.Template, err)
	}
	return buf.String(), nil
}
