package view

// RedirectPageData provides the dynamic fields required by the redirect template.
type RedirectPageData struct {
	ShortID   string
	EventsURL string
	GoURL     string
	Countdown int
}

var redirectPageTmpl = mustPage("redirect_page", `
{{template "head" "Redirecting..."}}
	<div class="card">
		<h1>You’re almost there</h1>
		<p>Short link <strong>/{{.ShortID}}</strong></p>

		<div id="status" class="timer"><span class="spinner"></span> Loading...</div>

		<div id="destination" class="destination" hidden>
			<div class="destination-label">Destination</div>
			<a id="target" href="#"></a>
		</div>

		<div class="actions" hidden id="actions">
			<button id="go" class="button" type="button">Go now</button>
			<span class="timer">Redirecting in <span id="countdown">{{.Countdown}}</span>s…</span>
		</div>

		<p id="failure" class="error" role="alert" hidden></p>
		<noscript><p class="error">JavaScript is required to follow this link.</p></noscript>
	</div>

	<style>
		.destination {
			margin: 24px 0;
			padding: 18px;
			border-radius: 14px;
			background: rgba(125, 211, 252, 0.07);
			border: 1px solid rgba(125, 211, 252, 0.25);
			word-break: break-all;
		}
		.destination-label {
			font-size: 0.82rem;
			text-transform: uppercase;
			letter-spacing: 0.08em;
			color: var(--muted);
			margin-bottom: 8px;
		}
		.actions { display: flex; align-items: center; gap: 12px; margin-top: 24px; flex-wrap: wrap; }
		.timer { font-size: 0.95rem; color: var(--muted); }
	</style>

	<script>
		(function() {
			const stream = new EventSource({{.EventsURL}});
			const goURL = {{.GoURL}};
			const status = document.getElementById("status");
			const destination = document.getElementById("destination");
			const target = document.getElementById("target");
			const actions = document.getElementById("actions");
			const countdown = document.getElementById("countdown");
			const failure = document.getElementById("failure");
			const go = document.getElementById("go");
			let finished = false;

			function fail(message) {
				finished = true;
				stream.close();
				status.hidden = true;
				actions.hidden = true;
				failure.textContent = message;
				failure.hidden = false;
			}

			function preempt(ev) {
				ev.preventDefault();
				go.disabled = true;
				fetch(goURL, { method: "POST" }).then(function(resp) {
					if (!resp.ok && resp.status !== 409) {
						window.location.assign(target.href);
					}
				}).catch(function() {
					window.location.assign(target.href);
				});
			}
			go.addEventListener("click", preempt);
			target.addEventListener("click", preempt);

			stream.addEventListener("state", function(ev) {
				const state = JSON.parse(ev.data);
				switch (state.status) {
				case "running":
					status.hidden = true;
					destination.hidden = false;
					actions.hidden = false;
					target.textContent = state.destination;
					target.href = state.destination;
					countdown.textContent = String(state.remaining);
					break;
				case "failed":
					fail(state.message || "Error fetching the original URL.");
					break;
				}
			});

			stream.addEventListener("navigate", function(ev) {
				finished = true;
				stream.close();
				window.location.assign(JSON.parse(ev.data).destination);
			});

			stream.onerror = function() {
				if (!finished) {
					fail("Error fetching the original URL.");
				}
			};
			window.addEventListener("pagehide", function() { stream.close(); });
		})();
	</script>
{{template "foot"}}
`)

// RenderRedirectPage expands the redirect page template with the provided data.
func RenderRedirectPage(data RedirectPageData) (string, error) {
	return render(redirectPageTmpl, data)
}
