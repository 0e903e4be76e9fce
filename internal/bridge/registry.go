package bridge

import (
	"fmt"

	"github.com/obcmarine/bridgegap/internal/models"
)

// DefaultBridgeID is the bridge used when a query names none.
const DefaultBridgeID = "panmure"

// Registry holds the bridges the service answers for. Configuration is
// static at runtime; a fresh registry replaces the old one on reload.
type Registry struct {
	bridges map[string]models.BridgeConfig
}

// NewRegistry builds a registry from explicit bridges, or the built-in
// Tamaki River set when none are given.
func NewRegistry(bridges ...models.BridgeConfig) *Registry {
	if len(bridges) == 0 {
		bridges = DefaultBridges()
	}
	r := &Registry{bridges: make(map[string]models.BridgeConfig, len(bridges))}
	for _, b := range bridges {
		r.bridges[b.ID] = b
	}
	return r
}

// Find returns the bridge with the given id.
func (r *Registry) Find(id string) (*models.BridgeConfig, error) {
	b, ok := r.bridges[id]
	if !ok {
		return nil, fmt.Errorf("bridge not found: %s", id)
	}
	return &b, nil
}

// FindSpan resolves a bridge and one of its spans in a single lookup.
func (r *Registry) FindSpan(bridgeID, spanID string) (*models.BridgeConfig, *models.SpanConfig, error) {
	b, err := r.Find(bridgeID)
	if err != nil {
		return nil, nil, err
	}
	span := b.Span(spanID)
	if span == nil {
		return nil, nil, fmt.Errorf("span not found: %s/%s", bridgeID, spanID)
	}
	return b, span, nil
}

// All returns every configured bridge.
func (r *Registry) All() []models.BridgeConfig {
	out := make([]models.BridgeConfig, 0, len(r.bridges))
	for _, b := range r.bridges {
		out = append(out, b)
	}
	return out
}

// DefaultBridges carries the published OBC clearance chart values for the
// Panmure bridge: IN/OUT span 6.2 m and HIGH span 6.5 m at chart datum.
func DefaultBridges() []models.BridgeConfig {
	return []models.BridgeConfig{
		{
			ID:               "panmure",
			Name:             "Panmure Bridge (Tamaki River)",
			ChartDatumOffset: 0,
			Spans: []models.SpanConfig{
				{ID: "IN_OUT", Name: "IN/OUT Span - Main navigation channel", ClearanceAtDatum: 6.2},
				{ID: "HIGH", Name: "HIGH Span - Maximum clearance", ClearanceAtDatum: 6.5},
			},
		},
	}
}
