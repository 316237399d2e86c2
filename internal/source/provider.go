package source

import (
	"context"

	"github.com/pwhittaker/playpulse/pkg/models"
)

// Provider yields now-playing snapshots for a family of media sources. The
// discovery/connection layer behind it (network scanning, pairing, OAuth) is
// opaque to the tracker; implementations live outside this module's core.
type Provider interface {
	// ListSources enumerates the sources this provider can currently poll.
	ListSources(ctx context.Context) ([]models.SourceDescriptor, error)

	// FetchNowPlaying returns the current snapshot for one source, or nil
	// when the source is reachable but reports nothing playing. Errors are
	// classified via the taxonomy in errors.go.
	FetchNowPlaying(ctx context.Context, desc models.SourceDescriptor) (*models.RawSnapshot, error)
}

// Registry combines multiple providers into one source list.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
}

// Entry pairs a descriptor with the provider that can poll it.
type Entry struct {
	Descriptor models.SourceDescriptor
	Provider   Provider
}

// ListAll enumerates every source across all providers. A provider that
// fails to enumerate is skipped; its error is returned alongside the sources
// that were found so one broken provider does not hide the others.
func (r *Registry) ListAll(ctx context.Context) ([]Entry, []error) {
	var entries []Entry
	var errs []error

	for _, p := range r.providers {
		descs, err := p.ListSources(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, d := range descs {
			entries = append(entries, Entry{Descriptor: d, Provider: p})
		}
	}

	return entries, errs
}
