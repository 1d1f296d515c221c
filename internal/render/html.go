package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/kapilsaini46/rks/internal/models"
)

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"segments": renderSegments,
	"imageSrc": imageSrc,
}).Parse(`<div class="qp-page qp-{{.Mode}}" lang="{{.Language}}" style="width:210mm;min-height:297mm">
{{- if eq .Mode "ANSWER_KEY"}}
<header class="qp-header">
<h1>{{.Labels.AnswerKey}}</h1>
<h2>{{.Header.School}}</h2>
<p class="qp-caption">{{.Header.Caption}}</p>
</header>
{{- else}}
<header class="qp-header">
<h1>{{.Header.School}}</h1>
<h2>{{.Header.Title}}</h2>
<table class="qp-meta"><tr>
<td>{{.Labels.Time}}: {{.Header.Time}}</td>
<td>{{.Labels.Class}}: {{.Header.Class}}</td>
<td>{{.Labels.Session}}: {{.Header.Session}}</td>
<td>{{.Labels.MaxMarks}}: {{.Header.MaxMarks}}</td>
</tr><tr><td colspan="4">{{.Labels.Subject}}: {{.Header.Subject}}</td></tr></table>
<section class="qp-instructions"><h3>{{.Labels.GeneralInstructions}}</h3>
{{- range .Header.Instructions}}<p>{{.}}</p>{{end}}</section>
</header>
{{- end}}
{{- $mode := .Mode}}
{{- range .Sections}}
<section class="qp-section">
<h3 class="qp-section-title">{{.Title}}</h3>
{{- range .Questions}}
<div class="qp-question" data-id="{{.ID}}">
<span class="qp-number">{{.Number}}</span>
{{- if eq $mode "ANSWER_KEY"}}
<div class="qp-answer">{{segments .Answer}}</div>
{{- else}}
<div class="qp-text">{{segments .Text}}</div>
{{- if .ImageURL}}<img class="qp-image" src="{{imageSrc .ImageURL}}" style="width:{{.ImageWidth}}%" alt="">{{end}}
{{- if .Options}}
<ol class="qp-options" style="grid-template-columns:repeat({{.Columns}},1fr)">
{{- range .Options}}<li><span>{{.Label}}</span> {{segments .Text}}</li>{{end}}
</ol>
{{- end}}
{{- with .Match}}
<p class="qp-match-heading">{{.Heading}}</p>
<table class="qp-match"><tr><th>{{.LeftHeader}}</th><th>{{.RightHeader}}</th></tr>
{{- range .Rows}}<tr><td>{{.LeftLabel}} {{segments .Left}}</td><td>{{.RightLabel}} {{segments .Right}}</td></tr>{{end}}
</table>
{{- end}}
{{- end}}
<span class="qp-marks">{{.Marks}}</span>
</div>
{{- end}}
</section>
{{- end}}
</div>
`))

// HTML renders the paper fragment for mode.
func HTML(p *models.QuestionPaper, mode Mode) (string, error) {
	return Fragment(Build(p, mode))
}

// Fragment renders a prepared document.
func Fragment(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render %s: %w", doc.Mode, err)
	}
	return buf.String(), nil
}

func renderSegments(segs []Segment) template.HTML {
	var buf bytes.Buffer
	for _, s := range segs {
		escaped := template.HTMLEscapeString(s.Raw)
		switch s.Kind {
		case SegmentMath:
			fmt.Fprintf(&buf, `<span class="math" data-expr="%s">%s</span>`, template.HTMLEscapeString(s.Expr), escaped)
		case SegmentMalformed:
			fmt.Fprintf(&buf, `<span class="math-error">%s</span>`, escaped)
		default:
			buf.WriteString(escaped)
		}
	}
	return template.HTML(buf.String())
}

// PlainText flattens segments for non-HTML outputs such as PDF.
func PlainText(segs []Segment) string {
	var buf bytes.Buffer
	for _, s := range segs {
		buf.WriteString(s.Raw)
	}
	return buf.String()
}

// imageSrc admits inline image data and http(s) links; anything else is dropped.
func imageSrc(raw string) template.URL {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:image/") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return template.URL(raw)
	}
	return ""
}
