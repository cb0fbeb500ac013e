package config

import (
	"fmt"
	"os"

	"github.com/ledgerly/backend/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type planCatalog struct {
	Plans []struct {
		ID    string `yaml:"id"`
		Slug  string `yaml:"slug"`
		Name  string `yaml:"name"`
		Price string `yaml:"price"`
	} `yaml:"plans"`
}

// LoadPlanCatalog reads the subscription plans seeded into the plans table.
func LoadPlanCatalog(path string) ([]models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParsePlanCatalog(data)
}

func ParsePlanCatalog(data []byte) ([]models.Plan, error) {
	var catalog planCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Plans))
	plans := make([]models.Plan, 0, len(catalog.Plans))
	for _, p := range catalog.Plans {
		if p.ID == "" || p.Slug == "" {
			return nil, fmt.Errorf("plan entry missing id or slug")
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("duplicate plan slug %q", p.Slug)
		}
		seen[p.Slug] = true

		price, err := decimal.NewFromString(p.Price)
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("plan %q: invalid price %q", p.Slug, p.Price)
		}
		plans = append(plans, models.Plan{ID: p.ID, Slug: p.Slug, Name: p.Name, Price: price})
	}
	return plans, nil
}
