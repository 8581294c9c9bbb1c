package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// Message holds the rendering input for one email. For the "custom" type,
// Subject and CustomHTML are used verbatim and no template runs.
type Message struct {
	Type       string
	Subject    string
	Token      string
	Name       string
	CustomHTML string
	FromName   string
}

type templateData struct {
	Token    string
	Name     string
	FromName string
}

const baseStyle = `body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #f4f4f5; margin: 0; padding: 40px 20px; }
    .container { max-width: 480px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
    .header { background: #18181b; padding: 32px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 20px; font-weight: 600; }
    .body { padding: 40px 32px; }
    .btn { display: inline-block; background: #18181b; color: #fff !important; text-decoration: none; padding: 14px 28px; border-radius: 8px; font-weight: 600; font-size: 15px; margin: 24px 0; }
    .btn-danger { background: #dc2626; }
    .otp-box { background: #f4f4f5; border-radius: 8px; padding: 24px; text-align: center; margin: 24px 0; letter-spacing: 12px; font-size: 36px; font-weight: 700; color: #18181b; font-family: monospace; }
    .footer { padding: 24px 32px; border-top: 1px solid #e4e4e7; color: #71717a; font-size: 13px; text-align: center; }`

const otpHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>` + baseStyle + `</style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>{{.FromName}}</h1></div>
    <div class="body">
      <p style="color:#3f3f46; font-size:16px; margin-top:0;">Hi{{if .Name}} {{.Name}}{{end}},</p>
      <p style="color:#3f3f46; font-size:16px;">Use the code below to verify your identity. It expires in <strong>10 minutes</strong>.</p>
      <div class="otp-box">{{.Token}}</div>
      <p style="color:#71717a; font-size:14px;">If you didn't request this code, you can safely ignore this email.</p>
    </div>
    <div class="footer">This email was sent by {{.FromName}}. Do not reply.</div>
  </div>
</body>
</html>`

const magicLinkHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>` + baseStyle + `</style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>{{.FromName}}</h1></div>
    <div class="body">
      <p style="color:#3f3f46; font-size:16px; margin-top:0;">Hi{{if .Name}} {{.Name}}{{end}},</p>
      <p style="color:#3f3f46; font-size:16px;">Click the button below to sign in. This link expires in <strong>15 minutes</strong>.</p>
      <div style="text-align:center;">
        <a href="{{.Token}}" class="btn">Sign In</a>
      </div>
      <p style="color:#71717a; font-size:13px; word-break:break-all;">Or paste this link: {{.Token}}</p>
      <p style="color:#71717a; font-size:14px;">If you didn't request this, ignore this email.</p>
    </div>
    <div class="footer">This email was sent by {{.FromName}}. Do not reply.</div>
  </div>
</body>
</html>`

const passwordResetHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>` + baseStyle + `</style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>{{.FromName}}</h1></div>
    <div class="body">
      <p style="color:#3f3f46; font-size:16px; margin-top:0;">Hi{{if .Name}} {{.Name}}{{end}},</p>
      <p style="color:#3f3f46; font-size:16px;">We received a request to reset your password. Click the button below. This link expires in <strong>1 hour</strong>.</p>
      <div style="text-align:center;">
        <a href="{{.Token}}" class="btn btn-danger">Reset Password</a>
      </div>
      <p style="color:#71717a; font-size:14px;"><strong>Didn't request this?</strong> Your account is safe. You can ignore this email.</p>
    </div>
    <div class="footer">This email was sent by {{.FromName}}. Do not reply.</div>
  </div>
</body>
</html>`

const welcomeHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>` + baseStyle + `</style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>Welcome to {{.FromName}} 🎉</h1></div>
    <div class="body">
      <p style="color:#3f3f46; font-size:16px; margin-top:0;">Hi{{if .Name}} {{.Name}}{{else}} there{{end}},</p>
      <p style="color:#3f3f46; font-size:16px;">Thanks for signing up! We're excited to have you on board.</p>
      <p style="color:#3f3f46; font-size:16px;">If you have any questions, just reply to this email.</p>
    </div>
    <div class="footer">Sent by {{.FromName}}.</div>
  </div>
</body>
</html>`

var templates = map[string]*template.Template{
	"otp":            template.Must(template.New("otp").Parse(otpHTML)),
	"magic_link":     template.Must(template.New("magic_link").Parse(magicLinkHTML)),
	"password_reset": template.Must(template.New("password_reset").Parse(passwordResetHTML)),
	"welcome":        template.Must(template.New("welcome").Parse(welcomeHTML)),
}

// Render produces the subject and HTML body for a message. The custom type
// bypasses rendering entirely; unrecognized types return an error so the
// caller can route them through its normal failure path.
func Render(msg Message) (subject, html string, err error) {
	if msg.Type == "custom" {
		return msg.Subject, msg.CustomHTML, nil
	}

	tmpl, ok := templates[msg.Type]
	if !ok {
		return "", "", fmt.Errorf("unknown email type: %s", msg.Type)
	}

	switch msg.Type {
	case "otp":
		subject = fmt.Sprintf("Your verification code is %s", msg.Token)
	case "magic_link":
		subject = "Your sign-in link"
	case "password_reset":
		subject = "Reset your password"
	case "welcome":
		subject = fmt.Sprintf("Welcome to %s!", msg.FromName)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, templateData{
		Token:    msg.Token,
		Name:     msg.Name,
		FromName: msg.FromName,
	})
	if err != nil {
		return "", "", fmt.Errorf("rendering %s template: %w", msg.Type, err)
	}

	return subject, buf.String(), nil
}
