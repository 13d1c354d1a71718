// file: internals/features/finance/receipts/service/receipt.go
package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	Reference   string
	StudentID   string
	ClassID     string
	Type        string
	Method      string
	Amount      decimal.Decimal
	Description string
	IssuedAt    time.Time
	IssuedBy    string
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":  func(t time.Time) string { return t.Format("02 Jan 2006 15:04 MST") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Receipt {{.Reference}}</title></head>
<body>
<h1>Impact Digital Academy</h1>
<h2>Payment receipt</h2>
<table>
<tr><th>Reference</th><td>{{.Reference}}</td></tr>
<tr><th>Date</th><td>{{date .IssuedAt}}</td></tr>
<tr><th>Student</th><td>{{.StudentID}}</td></tr>
{{- if .ClassID}}
<tr><th>Class</th><td>{{.ClassID}}</td></tr>
{{- end}}
<tr><th>Payment type</th><td>{{.Type}}</td></tr>
<tr><th>Method</th><td>{{.Method}}</td></tr>
<tr><th>Amount</th><td>{{money .Amount}}</td></tr>
{{- if .Description}}
<tr><th>Description</th><td>{{.Description}}</td></tr>
{{- end}}
<tr><th>Issued by</th><td>{{.IssuedBy}}</td></tr>
</table>
</body>
</html>
`))

// Render produces the HTML receipt document.
func Render(r Receipt) ([]byte, error) {
	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectKey places receipts under prefix/YYYY/MM/<reference>.html.
func ObjectKey(prefix, reference string, at time.Time) string {
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, at.Format("2006"), at.Format("01"), safeName(reference)+".html")
	return strings.Join(parts, "/")
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Issuer renders a receipt and stores it, returning the locator persisted
// on the transaction.
type Issuer struct {
	Store  Store
	Prefix string
}

func (i *Issuer) Issue(ctx context.Context, r Receipt) (string, error) {
	body, err := Render(r)
	if err != nil {
		return "", err
	}
	loc, err := i.Store.Put(ctx, ObjectKey(i.Prefix, r.Reference, r.IssuedAt), body, "text/html; charset=utf-8")
	if err != nil {
		return "", fmt.Errorf("store receipt: %w", err)
	}
	return loc, nil
}
