package oracle

import (
	"github.com/osteele/liquid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Previewer renders copy variants for a sample lead the way the sending
// platform would fill its {{placeholders}}.
type Previewer struct {
	engine *liquid.Engine
}

// NewPreviewer creates a Previewer.
func NewPreviewer() *Previewer {
	return &Previewer{engine: liquid.NewEngine()}
}

// SampleLead is used when a preview names no lead.
var SampleLead = model.Lead{
	Email:     "jane@example.com",
	FirstName: "Jane",
	LastName:  "Doe",
	Company:   "Example Co",
	Title:     "Head of Growth",
	Website:   "example.com",
}

func bindings(l model.Lead) map[string]any {
	return map[string]any{
		"firstName":   l.FirstName,
		"lastName":    l.LastName,
		"company":     l.Company,
		"companyName": l.Company,
		"email":       l.Email,
		"jobTitle":    l.Title,
		"website":     l.Website,
		"city":        l.City,
		"state":       l.State,
		"country":     l.Country,
	}
}

// Render fills every variant for lead.
func (p *Previewer) Render(vs []model.CopyVariant, lead model.Lead) ([]model.CopyVariant, error) {
	b := bindings(lead)
	out := make([]model.CopyVariant, len(vs))
	for i, v := range vs {
		subject, err := p.engine.ParseAndRenderString(v.Subject, b)
		if err != nil {
			return nil, eris.Wrapf(err, "oracle: render subject of variant %d", i+1)
		}
		body, err := p.engine.ParseAndRenderString(v.Body, b)
		if err != nil {
			return nil, eris.Wrapf(err, "oracle: render body of variant %d", i+1)
		}
		out[i] = model.CopyVariant{Subject: subject, Body: body}
	}
	return out, nil
}
