// Package views は HTML テンプレートを埋め込みで提供します。
package views

import (
	"embed"
	"html/template"
)

//go:embed templates/partials/*.html templates/pages/*.html
var files embed.FS

// ページテンプレート名
const (
	PageHome     = "home.html"
	PageLogin    = "login.html"
	PageRegister = "register.html"
	PageDiscover = "discover.html"
)

// Load は全テンプレートを解析します。
func Load() (*template.Template, error) {
	return template.New("").ParseFS(files, "templates/partials/*.html", "templates/pages/*.html")
}

// MustLoad は Load に失敗すると panic します。
func MustLoad() *template.Template {
	return template.Must(Load())
}
