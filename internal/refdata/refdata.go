// Package refdata loads the static country/city/category reference tables
// the pipeline iterates over. The tables are read-only lookup data.
package refdata

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// City is the atomic unit of discovery iteration.
type City struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
	// Languages optionally overrides the country language set for this city.
	Languages []string `yaml:"languages,omitempty"`
}

// Country groups cities under one discovery scope.
type Country struct {
	Code      string   `yaml:"code"`
	Name      string   `yaml:"name"`
	Languages []string `yaml:"languages"`
	Cities    []City   `yaml:"cities"`
}

// Category describes a business vertical with per-language search terms.
type Category struct {
	Slug string `yaml:"slug"`
	Name string `yaml:"name"`
	// Queries maps language code to the provider query term for it.
	Queries map[string]string `yaml:"queries"`
}

// Catalog is the loaded reference set.
type Catalog struct {
	countries  map[string]Country
	categories map[string]Category
}

type countriesFile struct {
	Countries []Country `yaml:"countries"`
}

type categoriesFile struct {
	Categories []Category `yaml:"categories"`
}

// Load reads countries.yaml and categories.yaml from dir.
func Load(dir string) (*Catalog, error) {
	var cf countriesFile
	if err := readYAML(filepath.Join(dir, "countries.yaml"), &cf); err != nil {
		return nil, err
	}
	var gf categoriesFile
	if err := readYAML(filepath.Join(dir, "categories.yaml"), &gf); err != nil {
		return nil, err
	}

	cat := &Catalog{
		countries:  make(map[string]Country, len(cf.Countries)),
		categories: make(map[string]Category, len(gf.Categories)),
	}
	for _, c := range cf.Countries {
		if c.Code == "" || len(c.Cities) == 0 {
			return nil, fmt.Errorf("country %q: code and at least one city required", c.Name)
		}
		cat.countries[c.Code] = c
	}
	for _, g := range gf.Categories {
		if g.Slug == "" {
			return nil, fmt.Errorf("category %q: slug required", g.Name)
		}
		cat.categories[g.Slug] = g
	}
	return cat, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Country resolves a country code.
func (c *Catalog) Country(code string) (Country, error) {
	country, ok := c.countries[code]
	if !ok {
		return Country{}, fmt.Errorf("unknown country %q", code)
	}
	return country, nil
}

// Category resolves a category slug.
func (c *Catalog) Category(slug string) (Category, error) {
	category, ok := c.categories[slug]
	if !ok {
		return Category{}, fmt.Errorf("unknown category %q", slug)
	}
	return category, nil
}

// CategorySlugs lists all configured category slugs.
func (c *Catalog) CategorySlugs() []string {
	out := make([]string, 0, len(c.categories))
	for slug := range c.categories {
		out = append(out, slug)
	}
	return out
}

// CityLanguages returns the language set for a city, falling back to the
// country languages when the city has no override. Order is configured
// order; discovery processes languages in this order.
func CityLanguages(country Country, city City) []string {
	if len(city.Languages) > 0 {
		return city.Languages
	}
	return country.Languages
}
