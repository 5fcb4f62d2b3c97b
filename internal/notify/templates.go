package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/nhle/lead-ingest/internal/model"
)

// Template is one welcome-mail variant with its subject line and body.
type Template struct {
	Subject string
	Body    *template.Template
}

// templateData is what the body templates are executed against.
type templateData struct {
	LastName string
}

// templates maps the lead's gender to the welcome-mail variant sent to it.
var templates = map[model.Gender]Template{
	model.GenderMale: {
		Subject: "Welcome aboard, Sir!",
		Body: template.Must(template.New("male").Parse(`Dear Mr. {{.LastName}},

We're thrilled to have you join our service tailored for gentlemen. Our premium offerings are designed to meet the sophisticated needs of modern men like yourself.

Attached, you'll find our exclusive product brochure showcasing our gentleman's collection.

Should you have any inquiries, our dedicated team is at your service.

Best regards,
Your Company Name`)),
	},
	model.GenderFemale: {
		Subject: "Welcome to our community, Madam!",
		Body: template.Must(template.New("female").Parse(`Dear Ms. {{.LastName}},

We're delighted to welcome you to our service crafted for discerning women. Our curated selection is designed to cater to the unique preferences of today's empowered women.

Please find attached our product brochure featuring our exclusive women's line.

If you have any questions, our team is here to assist you.

Warm regards,
Your Company Name`)),
	},
	model.GenderOther: {
		Subject: "Welcome to our inclusive community!",
		Body: template.Must(template.New("other").Parse(`Dear {{.LastName}},

We're excited to welcome you to our inclusive service that celebrates diversity. Our offerings are designed to cater to the unique needs and preferences of all individuals.

Attached is our product brochure showcasing our inclusive and diverse range of products.

If you have any questions or need assistance, our inclusive support team is here for you.

Best wishes,
Your Company Name`)),
	},
}

// Render produces the subject and body of the welcome mail for a lead.
// Unrecognized genders resolve to the inclusive variant.
func Render(lead model.Lead) (subject, body string, err error) {
	tmpl, ok := templates[lead.Gender]
	if !ok {
		tmpl = templates[model.GenderOther]
	}

	var buf bytes.Buffer
	if err := tmpl.Body.Execute(&buf, templateData{
		LastName: lead.LastName(),
	}); err != nil {
		return "", "", fmt.Errorf("rendering welcome mail: %w", err)
	}

	return tmpl.Subject, buf.String(), nil
}
