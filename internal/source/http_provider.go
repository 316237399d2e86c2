package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pwhittaker/playpulse/pkg/models"
)

// BridgeSource is one source reachable through a bridge endpoint. The bridge
// owns discovery, pairing, and credentials; it serves the current snapshot
// as JSON and 204 when nothing is playing.
type BridgeSource struct {
	Kind        models.SourceKind
	DeviceName  string
	DeviceModel string
	UserName    *string
	URL         string
}

// HTTPProvider polls bridge endpoints for now-playing snapshots.
type HTTPProvider struct {
	sources []BridgeSource
	client  *http.Client
}

// NewHTTPProvider creates a provider over the given bridge sources.
func NewHTTPProvider(sources []BridgeSource) *HTTPProvider {
	return &HTTPProvider{
		sources: sources,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListSources enumerates the configured bridge sources.
func (p *HTTPProvider) ListSources(ctx context.Context) ([]models.SourceDescriptor, error) {
	descs := make([]models.SourceDescriptor, 0, len(p.sources))
	for _, s := range p.sources {
		descs = append(descs, models.SourceDescriptor{
			Kind:        s.Kind,
			DeviceName:  s.DeviceName,
			DeviceModel: s.DeviceModel,
			UserName:    s.UserName,
		})
	}
	return descs, nil
}

// FetchNowPlaying retrieves the current snapshot for one source. Returns nil
// when the bridge reports nothing playing.
func (p *HTTPProvider) FetchNowPlaying(ctx context.Context, desc models.SourceDescriptor) (*models.RawSnapshot, error) {
	identity := models.SourceIdentity{
		DeviceName:  desc.DeviceName,
		UserName:    desc.UserName,
		DeviceModel: desc.DeviceModel,
	}
	key := identity.Key()

	src, ok := p.lookup(desc)
	if !ok {
		return nil, NewFetchError(key, fmt.Errorf("unknown source"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, NewFetchError(key, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewConnectError(key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewAuthError(key, fmt.Errorf("bridge returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, NewFetchError(key, fmt.Errorf("bridge returned %d", resp.StatusCode))
	}

	var snap models.RawSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, NewFetchError(key, fmt.Errorf("failed to decode snapshot: %w", err))
	}

	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = time.Now().UTC()
	}
	if snap.Device.Name == "" {
		snap.Device.Name = desc.DeviceName
	}
	if snap.Device.Model == "" {
		snap.Device.Model = desc.DeviceModel
	}

	return &snap, nil
}

func (p *HTTPProvider) lookup(desc models.SourceDescriptor) (BridgeSource, bool) {
	for _, s := range p.sources {
		if s.DeviceName == desc.DeviceName && strPtrMatch(s.UserName, desc.UserName) {
			return s, true
		}
	}
	return BridgeSource{}, false
}

func strPtrMatch(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
