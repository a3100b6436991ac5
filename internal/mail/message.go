package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const confirmationSubject = "Confirm your email"

// Message is one confirmation mail. It is also the JSON body published to the
// broker, so field names are part of the queue contract.
type Message struct {
	To          string `json:"to"`
	DisplayName string `json:"display_name"`
	Subject     string `json:"subject"`
	Link        string `json:"link"`
}

// Sender delivers a message over one transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func ConfirmationMessage(address string, displayName string, link string) Message {
	return Message{
		To:          address,
		DisplayName: displayName,
		Subject:     confirmationSubject,
		Link:        link,
	}
}

var plainBody = texttemplate.Must(texttemplate.New("plain").Parse(
	`Hello {{if .DisplayName}}{{.DisplayName}}{{else}}there{{end}},

thanks for signing up. Please confirm your email address by opening the link below:

{{.Link}}

If you did not create an account, you can ignore this message.
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<!doctype html>
<html>
  <body style="font-family: sans-serif">
    <p>Hello {{if .DisplayName}}{{.DisplayName}}{{else}}there{{end}},</p>
    <p>thanks for signing up. Please confirm your email address:</p>
    <p><a href="{{.Link}}">Confirm email</a></p>
    <p style="color:#666">If you did not create an account, you can ignore this message.</p>
  </body>
</html>
`))

func renderBodies(msg Message) (string, string, error) {
	var plain, html bytes.Buffer

	if err := plainBody.Execute(&plain, msg); err != nil {
		return "", "", fmt.Errorf("render plain body: %w", err)
	}
	if err := htmlBody.Execute(&html, msg); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}

	return plain.String(), html.String(), nil
}
