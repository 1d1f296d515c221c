// Package catalog holds the product's built-in reference data: plan pricing, the default curriculum,
// the default question-type labels and the default content pages.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kapilsaini46/rks/internal/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Page is a default content page.
type Page struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// Catalog is the parsed reference data.
type Catalog struct {
	AppName       string                 `yaml:"app_name"`
	Plans         []models.PricingTier   `yaml:"plans"`
	QuestionTypes []string               `yaml:"question_types"`
	Curriculum    []models.ClassSubjects `yaml:"curriculum"`
	Pages         []Page                 `yaml:"pages"`
}

// Default parses the embedded catalog. It panics on a malformed embed since that is a build defect.
func Default() *Catalog {
	c, err := Parse(defaultsYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[models.SubscriptionPlan]struct{}, len(c.Plans))
	for _, tier := range c.Plans {
		if !tier.Plan.Valid() {
			return nil, fmt.Errorf("catalog: unknown plan %q", tier.Plan)
		}
		if _, dup := seen[tier.Plan]; dup {
			return nil, fmt.Errorf("catalog: plan %q listed twice", tier.Plan)
		}
		if tier.Papers < 0 || tier.ValidityDays <= 0 {
			return nil, fmt.Errorf("catalog: plan %q has invalid allotment", tier.Plan)
		}
		seen[tier.Plan] = struct{}{}
	}
	return &c, nil
}

// Tier returns the pricing entry for a plan.
func (c *Catalog) Tier(plan models.SubscriptionPlan) (models.PricingTier, bool) {
	for _, tier := range c.Plans {
		if tier.Plan == plan {
			return tier, true
		}
	}
	return models.PricingTier{}, false
}

// DefaultCurriculum returns a copy of the built-in class to subject mapping.
func (c *Catalog) DefaultCurriculum() []models.ClassSubjects {
	out := make([]models.ClassSubjects, len(c.Curriculum))
	for i, row := range c.Curriculum {
		out[i] = models.ClassSubjects{Class: row.Class, Subjects: append([]string(nil), row.Subjects...)}
	}
	return out
}

// DefaultQuestionTypes returns a copy of the built-in question-type labels.
func (c *Catalog) DefaultQuestionTypes() []string {
	return append([]string(nil), c.QuestionTypes...)
}

// DefaultPage returns the built-in content for a page id.
func (c *Catalog) DefaultPage(id string) (Page, bool) {
	for _, p := range c.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}
