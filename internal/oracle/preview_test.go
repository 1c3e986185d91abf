package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestPreviewer_Render(t *testing.T) {
	p := NewPreviewer()
	vs := []model.CopyVariant{
		{Subject: "Quick question about {{company}}", Body: "Hi {{firstName}},\n\n{{ unknownVar }}Thanks,\nDana"},
	}
	out, err := p.Render(vs, model.Lead{FirstName: "Ann", Company: "Acme"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Quick question about Acme", out[0].Subject)
	assert.Equal(t, "Hi Ann,\n\nThanks,\nDana", out[0].Body)
	assert.Contains(t, vs[0].Subject, "{{company}}")
}

func TestPreviewer_FallbackCopyRenders(t *testing.T) {
	out, err := NewPreviewer().Render(FallbackCopy("acme.io", "CTOs"), SampleLead)
	require.NoError(t, err)
	for _, v := range out {
		assert.NotContains(t, v.Subject, "{{")
		assert.NotContains(t, v.Body, "{{")
	}
	assert.Equal(t, "Quick question about Example Co", out[0].Subject)
}

func TestPreviewer_ParseError(t *testing.T) {
	_, err := NewPreviewer().Render([]model.CopyVariant{{Subject: "{% if company %}unterminated", Body: "b"}}, SampleLead)
	assert.Error(t, err)
}
