package drafter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestLoadTemplatesCoversAllIndustries(t *testing.T) {
	r, err := LoadTemplates()
	require.NoError(t, err)

	for _, ind := range model.AllIndustries() {
		tmpl := r.Select(ind)
		assert.NotEmpty(t, tmpl.Name, "industry %s", ind)
		assert.NotEmpty(t, tmpl.Angle, "industry %s", ind)
	}
}

func TestSelectExactMatch(t *testing.T) {
	r, err := LoadTemplates()
	require.NoError(t, err)

	assert.Equal(t, "gym", r.Select(model.IndustryGym).Name)
	assert.Equal(t, "saas", r.Select(model.IndustrySaaS).Name)
}

func TestSelectUnknownFallsBackToGeneric(t *testing.T) {
	r, err := LoadTemplates()
	require.NoError(t, err)

	// Unknown values never partially match; they get the generic
	// template deterministically.
	assert.Equal(t, "generic", r.Select(model.Industry("gymnasium")).Name)
	assert.Equal(t, "generic", r.Select(model.Industry("")).Name)
	assert.Equal(t, "generic", r.Select(model.IndustryOther).Name)
}
