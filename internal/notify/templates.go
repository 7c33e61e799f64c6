package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/brasillegalize/agency-server/internal/locale"
)

// Template names
const (
	TemplatePortalAccess    = "portal_access"
	TemplateDocumentRequest = "document_request"
)

type localized struct {
	subject string
	body    string
}

var catalog = map[string]map[string]localized{
	TemplatePortalAccess: {
		locale.English: {
			subject: "Your Brasil Legalize case tracker is ready",
			body: `Hello {{.Name}},

We have received your payment for case {{.ApplicationID}}. You can now follow every step of your process online.

Tracker: {{.TrackerURL}}
Password: {{.Password}}

Keep this password private. You will be asked for it when opening the tracker.

Brasil Legalize
`,
		},
		locale.Portuguese: {
			subject: "Seu acompanhamento de processo Brasil Legalize está pronto",
			body: `Olá {{.Name}},

Recebemos o seu pagamento referente ao processo {{.ApplicationID}}. Agora você pode acompanhar cada etapa online.

Acompanhamento: {{.TrackerURL}}
Senha: {{.Password}}

Guarde esta senha. Ela será solicitada ao abrir a página de acompanhamento.

Brasil Legalize
`,
		},
		locale.Spanish: {
			subject: "Su seguimiento de caso Brasil Legalize está listo",
			body: `Hola {{.Name}},

Hemos recibido su pago para el caso {{.ApplicationID}}. Ya puede seguir cada etapa de su proceso en línea.

Seguimiento: {{.TrackerURL}}
Contraseña: {{.Password}}

Guarde esta contraseña. Se le pedirá al abrir la página de seguimiento.

Brasil Legalize
`,
		},
	},
	TemplateDocumentRequest: {
		locale.English: {
			subject: "Documents requested for your Brasil Legalize process",
			body: `Hello {{.Name}},

Please upload the following documents:
{{range .Documents}}- {{.}}
{{end}}{{if .Message}}
{{.Message}}
{{end}}{{if .DueDate}}
Due date: {{.DueDate}}
{{end}}
Upload here: {{.UploadURL}}

Brasil Legalize
`,
		},
		locale.Portuguese: {
			subject: "Documentos solicitados para o seu processo Brasil Legalize",
			body: `Olá {{.Name}},

Por favor, envie os seguintes documentos:
{{range .Documents}}- {{.}}
{{end}}{{if .Message}}
{{.Message}}
{{end}}{{if .DueDate}}
Prazo: {{.DueDate}}
{{end}}
Envie aqui: {{.UploadURL}}

Brasil Legalize
`,
		},
		locale.Spanish: {
			subject: "Documentos solicitados para su proceso Brasil Legalize",
			body: `Hola {{.Name}},

Por favor, suba los siguientes documentos:
{{range .Documents}}- {{.}}
{{end}}{{if .Message}}
{{.Message}}
{{end}}{{if .DueDate}}
Fecha límite: {{.DueDate}}
{{end}}
Suba aquí: {{.UploadURL}}

Brasil Legalize
`,
		},
	},
}

// compiled templates keyed by name then locale
var compiled = func() map[string]map[string]*template.Template {
	out := make(map[string]map[string]*template.Template, len(catalog))
	for name, byLocale := range catalog {
		out[name] = make(map[string]*template.Template, len(byLocale))
		for loc, l := range byLocale {
			out[name][loc] = template.Must(template.New(name + "." + loc).Parse(l.body))
		}
	}
	return out
}()

// PortalAccessData fills the portal credentials email.
type PortalAccessData struct {
	Name          string
	ApplicationID string
	TrackerURL    string
	Password      string
}

// DocumentRequestData fills the document request email.
type DocumentRequestData struct {
	Name      string
	Documents []string
	Message   string
	DueDate   string
	UploadURL string
}

// Render builds the message for a template in the recipient's locale.
func Render(name, loc, to string, data any) (Message, error) {
	byLocale, ok := catalog[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	loc = locale.Normalize(loc)
	l, ok := byLocale[loc]
	if !ok {
		loc = locale.English
		l = byLocale[loc]
	}

	var buf bytes.Buffer
	if err := compiled[name][loc].Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s/%s: %w", name, loc, err)
	}
	return Message{To: to, Subject: l.subject, Text: buf.String()}, nil
}
