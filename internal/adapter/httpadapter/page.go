package httpadapter

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>COVID-19 Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; }
.charts { display: flex; flex-wrap: wrap; gap: 1em; }
.charts figure { margin: 0; }
#status { color: #666; margin-left: 1em; }
</style>
</head>
<body>
<h1>COVID-19 Dashboard</h1>
<label for="region">Region</label>
<select id="region">
{{- range .Regions}}
<option value="{{.}}"{{if eq . $.Selected}} selected{{end}}>{{.}}</option>
{{- end}}
</select>
<span id="status"></span>
<div class="charts">
{{- range .Charts}}
<figure><img data-chart="{{.ID}}" alt="{{.Title}}"></figure>
{{- end}}
</div>
<script>
(function () {
  var select = document.getElementById("region");
  var status = document.getElementById("status");
  var version = 0;

  function refresh() {
    var region = encodeURIComponent(select.value);
    document.querySelectorAll("img[data-chart]").forEach(function (img) {
      img.src = "/charts/" + img.dataset.chart + "/" + region + ".png?v=" + version;
    });
  }

  select.addEventListener("change", refresh);
  refresh();

  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (msg.event !== "snapshot") { return; }
    status.textContent = "data through " + msg.data.last_date;
    if (msg.data.version !== version) {
      version = msg.data.version;
      refresh();
    }
  };
})();
</script>
</body>
</html>
`))

type pageData struct {
	Regions  []string
	Selected string
	Charts   []dashboard.Definition
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	regions := s.svc.Regions()
	data := pageData{
		Regions: regions,
		Charts:  s.svc.Catalog(),
	}
	if sel := r.URL.Query().Get("region"); sel != "" {
		data.Selected = sel
	} else if len(regions) > 0 {
		data.Selected = regions[0]
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w) //nolint:errcheck // client went away
}
