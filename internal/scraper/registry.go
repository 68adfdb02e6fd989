package scraper

import "jobagent.local/internal/domain"

// Registry holds registered job board scrapers.
type Registry struct {
	scrapers []domain.Scraper
}

// NewRegistry creates a new scraper registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a scraper to the registry.
func (r *Registry) Register(s domain.Scraper) {
	r.scrapers = append(r.scrapers, s)
}

// All returns all registered scrapers in registration order.
func (r *Registry) All() []domain.Scraper {
	return r.scrapers
}
