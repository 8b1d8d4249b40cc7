package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kanban/internal/model"
)

// ProjectLister はトップページに表示するプロジェクト一覧を取得する。
type ProjectLister interface {
	List(ctx context.Context, userID string) ([]model.ProjectWithRole, error)
}

// PageHandler はサーバー側で描画する最小限のHTMLページを返す。
// ボード画面は外部のクライアントが担当する。
type PageHandler struct {
	projects ProjectLister
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(projects ProjectLister) *PageHandler {
	return &PageHandler{projects: projects}
}

var loginErrorMessages = map[string]string{
	loginErrorAuthFailed:  "Authentication failed. Please try again.",
	loginErrorNoCode:      "No authorization code was returned by the identity provider.",
	loginErrorServerError: "A server error occurred while signing in.",
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in - Kanban</title></head>
<body>
<main>
<h1>Kanban</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<a href="/api/auth/login">Sign in</a>
</main>
</body>
</html>
`))

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Projects - Kanban</title></head>
<body>
<main>
<h1>Projects</h1>
<ul>
{{range .}}<li>{{.Project.Name}} ({{.Role}})</li>
{{else}}<li>No projects yet.</li>
{{end}}</ul>
<form method="post" action="/api/auth/logout"><button type="submit">Sign out</button></form>
</main>
</body>
</html>
`))

// Login はログインページを返す。?error= があれば対応するメッセージを表示する。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	msg := ""
	if code := r.URL.Query().Get("error"); code != "" {
		var ok bool
		if msg, ok = loginErrorMessages[code]; !ok {
			msg = loginErrorMessages[loginErrorAuthFailed]
		}
	}
	renderPage(w, loginPage, struct{ Error string }{Error: msg})
}

// Index はログインユーザーのプロジェクト一覧ページを返す。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.List(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list projects for index page",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	renderPage(w, indexPage, projects)
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("failed to render page",
			slog.String("template", tmpl.Name()),
			slog.String("error", err.Error()),
		)
	}
}
