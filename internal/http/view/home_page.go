package view

import (
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
)

// HomePageData feeds the create form and the paginated link list.
type HomePageData struct {
	Page model.Page
	Now  time.Time
	// URL is echoed back into the form after a failed attempt.
	URL   string
	Error string
	// Created is the id minted by the previous request, if any.
	Created string
}

var homePageTmpl = mustPage("home_page", `
{{template "head" "PowerLink"}}
	<div class="card">
		<h1>Shorten a link</h1>
		<p>Links live for a few minutes on this device.</p>

		<form method="post" action="/" class="create">
			<input type="url" name="url" required placeholder="https://example.com/a/long/path" value="{{.URL}}" />
			<button class="button" type="submit">Shorten</button>
		</form>
		{{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}

		{{if .Page.Items}}
		<table class="links">
			<thead>
				<tr><th>Short URL</th><th>Original URL</th><th>Expires in</th><th>Clicks</th></tr>
			</thead>
			<tbody>
			{{range .Page.Items}}
				<tr{{if eq .ShortID $.Created}} class="fresh"{{end}}>
					<td><a href="{{.ShortURL}}" target="_blank" rel="noopener">{{.ShortURL}}</a></td>
					<td class="original">{{.OriginalURL}}</td>
					<td class="muted">{{remaining $.Now .ExpiresAt}}</td>
					<td><span class="clicks" data-id="{{.ShortID}}"><span class="spinner"></span></span></td>
				</tr>
			{{end}}
			</tbody>
		</table>

		<nav class="pager">
			{{if .Page.HasPrev}}<a href="/?page={{add .Page.Number -1}}">&larr; Previous</a>{{end}}
			<span class="muted">Page {{.Page.Number}} of {{.Page.TotalPages}}</span>
			{{if .Page.HasNext}}<a href="/?page={{add .Page.Number 1}}">Next &rarr;</a>{{end}}
		</nav>
		{{else}}
		<p class="muted">No links yet.</p>
		{{end}}
	</div>

	<style>
		.create { display: flex; gap: 12px; margin-top: 20px; }
		.create input {
			flex: 1;
			height: 44px;
			padding: 0 16px;
			border-radius: 999px;
			border: 1px solid var(--border);
			background: rgba(0,0,0,0.25);
			color: var(--text);
		}
		table.links { width: 100%; margin-top: 28px; border-collapse: collapse; font-size: 0.9rem; }
		table.links th { text-align: left; color: var(--muted); font-weight: 500; padding-bottom: 8px; }
		table.links td { padding: 8px 8px 8px 0; border-top: 1px solid var(--border); vertical-align: top; }
		td.original { word-break: break-all; max-width: 260px; }
		tr.fresh td { background: rgba(125, 211, 252, 0.07); }
		.pager { display: flex; justify-content: space-between; margin-top: 16px; }
	</style>

	{{if .Page.Items}}
	<script>
		(function() {
			const spans = {};
			document.querySelectorAll(".clicks").forEach(function(el) { spans[el.dataset.id] = el; });

			let url = "/clicks/stream?page=" + {{.Page.Number}};
			const created = {{.Created}};
			if (created) {
				url += "&created=" + encodeURIComponent(created);
			}

			const stream = new EventSource(url);
			stream.addEventListener("count", function(ev) {
				const update = JSON.parse(ev.data);
				const el = spans[update.shortId];
				if (!el) {
					return;
				}
				if (update.status === "loading") {
					el.innerHTML = '<span class="spinner"></span>';
					return;
				}
				el.textContent = update.label;
			});
			stream.addEventListener("remove", function(ev) {
				const update = JSON.parse(ev.data);
				const el = spans[update.shortId];
				if (el) {
					el.closest("tr").remove();
					delete spans[update.shortId];
				}
			});
			stream.addEventListener("refresh", function() {
				stream.close();
				window.location.reload();
			});
			window.addEventListener("pagehide", function() { stream.close(); });
		})();
	</script>
	{{end}}
{{template "foot"}}
`)

// RenderHomePage expands the home page template.
func RenderHomePage(data HomePageData) (string, error) {
	if data.Now.IsZero() {
		data.Now = time.Now()
	}
	return render(homePageTmpl, data)
}
