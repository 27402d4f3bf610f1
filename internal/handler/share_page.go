package handler

import "html/template"

var sharePageTmpl = template.Must(template.New("share").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Shared attendance {{.Date}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 0.4rem 0.8rem; }
.absent { color: #a00; }
.present { color: #070; }
</style>
</head>
<body>
<h2>Attendance {{.Date}}</h2>
<table>
<tr><th>Name</th><th>Status</th></tr>
{{range .Records}}<tr><td>{{.Student.Name}}</td><td class="{{if .Present}}present{{else}}absent{{end}}">{{if .Present}}Present{{else}}Absent{{end}}</td></tr>
{{end}}</table>
</body>
</html>
`))
