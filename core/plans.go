package core

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is a purchasable membership plan from the catalog.
type Plan struct {
	Key        string `yaml:"key" json:"key"`
	Name       string `yaml:"name" json:"name"`
	Months     int    `yaml:"months" json:"months"`
	PriceCents int64  `yaml:"price_cents" json:"priceCents"`
}

// PlanCatalog is the read-only set of plans offered by the gym, loaded once
// at startup.
type PlanCatalog struct {
	plans []Plan
	byKey map[string]Plan
}

// DefaultPlanCatalog returns the built-in catalog used when no file is configured.
func DefaultPlanCatalog() *PlanCatalog {
	catalog, _ := newPlanCatalog([]Plan{
		{Key: "monthly", Name: "Monthly", Months: 1, PriceCents: 4900},
		{Key: "quarterly", Name: "Quarterly", Months: 3, PriceCents: 12900},
		{Key: "yearly", Name: "Yearly", Months: 12, PriceCents: 44900},
	})
	return catalog
}

// LoadPlanCatalog parses a YAML catalog file of the form:
//
//	plans:
//	  - key: monthly
//	    name: Monthly
//	    months: 1
//	    price_cents: 4900
func LoadPlanCatalog(path string) (*PlanCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", path, err)
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", path, err)
	}
	return newPlanCatalog(doc.Plans)
}

func newPlanCatalog(plans []Plan) (*PlanCatalog, error) {
	if len(plans) == 0 {
		return nil, errors.New("plan catalog is empty")
	}
	byKey := make(map[string]Plan, len(plans))
	for _, p := range plans {
		if p.Key == "" || p.Months < 1 || p.PriceCents < 0 {
			return nil, fmt.Errorf("invalid plan %q", p.Key)
		}
		if _, dup := byKey[p.Key]; dup {
			return nil, fmt.Errorf("duplicate plan key %q", p.Key)
		}
		byKey[p.Key] = p
	}
	return &PlanCatalog{plans: plans, byKey: byKey}, nil
}

// Plans returns the catalog in file order.
func (c *PlanCatalog) Plans() []Plan {
	return c.plans
}

// Find returns the plan for key.
func (c *PlanCatalog) Find(key string) (Plan, bool) {
	p, ok := c.byKey[key]
	return p, ok
}
