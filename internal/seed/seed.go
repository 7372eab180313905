// Package seed loads the category and roll package catalog from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

// Catalog is the seed file layout:
//
//	categories:
//	  - {name: Fashion, slug: fashion, sortOrder: 1, active: true}
//	packages:
//	  - {name: Starter, rollCount: 10, price: 9.99, currency: USD, active: true}
type Catalog struct {
	Categories []models.Category    `yaml:"categories"`
	Packages   []models.RollPackage `yaml:"packages"`
}

type Store interface {
	store.CategoryStore
	store.PackageStore
}

func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &c, c.Validate()
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (c *Catalog) Validate() error {
	var errs []error
	slugs := make(map[string]bool)
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" || strings.TrimSpace(cat.Slug) == "" {
			errs = append(errs, fmt.Errorf("categories[%d]: name and slug are required", i))
		}
		if slugs[cat.Slug] {
			errs = append(errs, fmt.Errorf("categories[%d]: duplicate slug %q", i, cat.Slug))
		}
		slugs[cat.Slug] = true
	}
	names := make(map[string]bool)
	for i, p := range c.Packages {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("packages[%d]: name is required", i))
		}
		if p.RollCount <= 0 {
			errs = append(errs, fmt.Errorf("packages[%d]: rollCount must be positive", i))
		}
		if p.Price < 0 {
			errs = append(errs, fmt.Errorf("packages[%d]: price cannot be negative", i))
		}
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("packages[%d]: duplicate name %q", i, p.Name))
		}
		names[p.Name] = true
	}
	return errors.Join(errs...)
}

// Apply upserts categories by slug and packages by name.
func (c *Catalog) Apply(ctx context.Context, st Store) error {
	for i := range c.Categories {
		cat := c.Categories[i]
		cat.Slug = strings.ToLower(strings.TrimSpace(cat.Slug))
		if err := st.UpsertCategoryBySlug(ctx, &cat); err != nil {
			return fmt.Errorf("category %s: %w", cat.Slug, err)
		}
	}
	for i := range c.Packages {
		p := c.Packages[i]
		if p.Currency == "" {
			p.Currency = "USD"
		}
		if err := st.UpsertPackageByName(ctx, &p); err != nil {
			return fmt.Errorf("package %s: %w", p.Name, err)
		}
	}
	slog.Info("Catalog seeded", "categories", len(c.Categories), "packages", len(c.Packages))
	return nil
}
