package notify

import (
	"bytes"
	"html/template"
)

var (
	transactionsTmpl = template.Must(template.New("transactions").Parse(
		`<p>Hi {{.FullName}},</p>` +
			`<p>{{.Count}} new transaction{{if ne .Count 1}}s{{end}} arrived for {{.TeamName}}.</p>` +
			`<p>Open Finflow to review and categorize them.</p>`))

	inviteTmpl = template.Must(template.New("invite").Parse(
		`<p>{{.InvitedBy}} invited you to join {{.TeamName}} on Finflow.</p>` +
			`<p>Your invite code: <strong>{{.Code}}</strong></p>`))
)

type TransactionsData struct {
	FullName string
	TeamName string
	Count    int
}

type InviteData struct {
	InvitedBy string
	TeamName  string
	Code      string
}

func TransactionsEmail(data TransactionsData) (string, error) {
	return render(transactionsTmpl, data)
}

func InviteEmail(data InviteData) (string, error) {
	return render(inviteTmpl, data)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
