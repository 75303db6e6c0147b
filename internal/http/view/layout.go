package view

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const layout = `
{{define "head"}}
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{.}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			--danger: #fca5a5;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(720px, 94vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			backdrop-filter: blur(18px);
		}
		h1 { font-size: 1.5rem; margin-bottom: 6px; }
		p { color: var(--muted); margin-top: 0; }
		a { color: var(--accent); }
		.button {
			display: inline-flex;
			align-items: center;
			justify-content: center;
			padding: 0 28px;
			height: 44px;
			border: 0;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			font-size: 0.95rem;
			text-decoration: none;
			cursor: pointer;
		}
		.button[disabled] { opacity: 0.5; cursor: default; }
		.error { color: var(--danger); margin: 12px 0 0; }
		.muted { color: var(--muted); font-size: 0.85rem; }
		.spinner {
			display: inline-block;
			width: 12px;
			height: 12px;
			border: 2px solid var(--border);
			border-top-color: var(--accent);
			border-radius: 50%;
			animation: spin 0.8s linear infinite;
		}
		@keyframes spin { to { transform: rotate(360deg); } }
	</style>
</head>
<body>
{{end}}
{{define "foot"}}
</body>
</html>
{{end}}
`

var funcs = template.FuncMap{
	"remaining": func(now, expiresAt time.Time) string {
		d := expiresAt.Sub(now).Round(time.Second)
		if d <= 0 {
			return "expired"
		}
		return d.String()
	},
	"add": func(a, b int) int { return a + b },
}

func mustPage(name, body string) *template.Template {
	t := template.Must(template.New(name).Funcs(funcs).Parse(layout))
	return template.Must(t.Parse(body))
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("view: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
