package mailing

import (
	"bytes"
	"html/template"
)

var envelopeTmpl = template.Must(template.New("envelope").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { padding: 20px; border: 1px solid #ddd; border-radius: 5px; max-width: 600px; margin: 0 auto; background-color: #f9f9f9; }
.header { font-size: 24px; margin-bottom: 20px; }
.content { font-size: 18px; margin-bottom: 20px; }
.footer { font-size: 16px; color: #666; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h2>{{.Subject}}</h2><br>
New Info From NewsLetter !!!
</div>
<div class="content">
<strong>{{.Body}}</strong>
</div>
<div class="footer">
Thank you,<br>
Team NewsLetter
</div>
</div>
</body>
</html>
`))

// WrapEnvelope places rendered body HTML inside the newsletter layout. The
// subject is escaped; the body is trusted HTML.
func WrapEnvelope(subject, body string) string {
	var buf bytes.Buffer
	// Execute only fails on writer errors, which bytes.Buffer never returns.
	_ = envelopeTmpl.Execute(&buf, struct {
		Subject string
		Body    template.HTML
	}{subject, template.HTML(body)})
	return buf.String()
}
