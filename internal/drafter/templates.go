// Package drafter scores lead fit and generates personalized outreach
// drafts from industry templates.
package drafter

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template is one industry-specific outreach angle. The model fills in
// the personalized copy; the template constrains tone and pitch.
type Template struct {
	Industry    string `yaml:"industry"`
	Name        string `yaml:"name"`
	SubjectHint string `yaml:"subject_hint"`
	Angle       string `yaml:"angle"`
	ProofPoint  string `yaml:"proof_point"`
}

// Registry holds the embedded template set.
type Registry struct {
	byIndustry map[model.Industry]Template
	generic    Template
}

// LoadTemplates parses the embedded template registry. Every industry
// in the enum must be covered and a generic fallback must exist.
func LoadTemplates() (*Registry, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(templatesYAML, &doc); err != nil {
		return nil, eris.Wrap(err, "drafter: parse templates")
	}

	r := &Registry{byIndustry: make(map[model.Industry]Template)}
	for _, t := range doc.Templates {
		ind := model.Industry(t.Industry)
		r.byIndustry[ind] = t
		if ind == model.IndustryOther {
			r.generic = t
		}
	}
	if r.generic.Name == "" {
		return nil, eris.New("drafter: registry missing generic template")
	}
	for _, ind := range model.AllIndustries() {
		if _, ok := r.byIndustry[ind]; !ok {
			return nil, eris.Errorf("drafter: registry missing template for %s", ind)
		}
	}
	return r, nil
}

// Select returns the template for an industry. Selection is an exact
// enum match; anything else deterministically gets the generic template.
func (r *Registry) Select(industry model.Industry) Template {
	if t, ok := r.byIndustry[industry]; ok {
		return t
	}
	return r.generic
}
