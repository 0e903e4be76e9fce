package models

// SpanConfig is one navigable span of a bridge. ClearanceAtDatum is the
// published air gap in metres when the water sits at chart datum.
type SpanConfig struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ClearanceAtDatum float64 `json:"clearanceAtDatum"`
}

// BridgeConfig is a bridge with its spans. ChartDatumOffset corrects for a
// bridge whose published clearances reference a datum other than the tide
// station's chart datum; it is normally zero.
type BridgeConfig struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ChartDatumOffset float64      `json:"chartDatumOffset"`
	Spans            []SpanConfig `json:"spans"`
}

// Span returns the span with the given id, or nil if the bridge has none.
func (b *BridgeConfig) Span(id string) *SpanConfig {
	for i := range b.Spans {
		if b.Spans[i].ID == id {
			return &b.Spans[i]
		}
	}
	return nil
}
