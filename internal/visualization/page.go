package visualization

import (
	"html/template"

	"github.com/nvandessel/co2twin/internal/sector"
)

type indexData struct {
	Presets []string
	Stored  []string
	Sectors []string
	Edges   []sector.Edge
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>co2twin workbench</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.neg { color: forestgreen; } .pos { color: tomato; }
textarea { width: 28em; height: 6em; font-family: monospace; }
pre { background: #f5f5f5; padding: 1em; }
</style>
</head>
<body>
<h1>co2twin workbench</h1>

<h2>Influence graph</h2>
{{if .Edges}}
<table>
<tr><th>Source</th><th>Target</th><th>Coefficient</th></tr>
{{range .Edges}}<tr><td>{{.Source}}</td><td>{{.Target}}</td><td class="{{if lt .Coefficient 0.0}}neg{{else}}pos{{end}}">{{printf "%+.3f" .Coefficient}}</td></tr>
{{end}}</table>
{{else}}<p>The graph has no edges.</p>{{end}}
<p><a href="/api/graph?format=dot">DOT</a> | <a href="/api/graph?format=json">JSON</a></p>

<h2>Simulate</h2>
<form id="sim">
<label>City
<select name="city">
{{range .Presets}}<option value="{{.}}">{{.}}</option>
{{end}}{{range .Stored}}<option value="{{.}}">{{.}} (library)</option>
{{end}}</select></label>
<p>Changes (JSON, fractions or percents):</p>
<textarea name="changes">{ {{- range $i, $s := .Sectors}}{{if $i}}, {{end}}"{{$s}}": 0{{end -}} }</textarea>
<p><button type="submit">Run</button></p>
</form>

<div id="result"></div>

<script>
document.getElementById("sim").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  const form = ev.target;
  const out = document.getElementById("result");
  let changes;
  try {
    changes = JSON.parse(form.changes.value || "{}");
  } catch (e) {
    out.textContent = "Changes are not valid JSON: " + e.message;
    return;
  }
  const resp = await fetch("/api/simulate", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({city: form.city.value, changes: changes}),
  });
  const body = await resp.json();
  if (!resp.ok) {
    out.textContent = body.error || resp.statusText;
    return;
  }
  const table = document.createElement("table");
  table.innerHTML = "<tr><th>Sector</th><th>Baseline</th><th>Simulated</th><th>Delta</th><th>Change %</th></tr>";
  for (const r of body.rows) {
    const tr = table.insertRow();
    for (const v of [r.sector, r.baseline.toFixed(1), r.simulated.toFixed(1), r.delta.toFixed(1), r.pct_change.toFixed(1)]) {
      tr.insertCell().textContent = v;
    }
  }
  const text = document.createElement("pre");
  text.textContent = body.text + "\n\nrun " + body.run_id + ", " + body.rounds + " rounds" + (body.converged ? "" : " (iteration cap reached)");
  out.replaceChildren(table, text);
});
</script>
</body>
</html>
`))
