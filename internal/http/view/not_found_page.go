package view

// NotFoundPageData describes what could not be found.
type NotFoundPageData struct {
	Path string
}

var notFoundPageTmpl = mustPage("not_found_page", `
{{template "head" "Not found"}}
	<div class="card">
		<h1>Page not found</h1>
		<p>Nothing lives at <strong>{{.Path}}</strong>.</p>
		<a class="button" href="/">Back to PowerLink</a>
	</div>
{{template "foot"}}
`)

// RenderNotFoundPage expands the not found template.
func RenderNotFoundPage(data NotFoundPageData) (string, error) {
	return render(notFoundPageTmpl, data)
}
