package domain

// Field names a market metric resolved per ticker.
type Field string

const (
	FieldPrice             Field = "price"
	FieldVolume            Field = "volume"
	FieldAverageVolume     Field = "average_volume"
	FieldFloat             Field = "float"
	FieldSharesOutstanding Field = "shares_outstanding"
)

// Fields lists every snapshot field in a stable order.
var Fields = []Field{FieldPrice, FieldVolume, FieldAverageVolume, FieldFloat, FieldSharesOutstanding}

// Metric is a single market value with the provider that produced it.
// A zero Metric is unknown.
type Metric struct {
	Value  float64 `json:"value"`
	Known  bool    `json:"known"`
	Source string  `json:"source,omitempty"`
}

// KnownMetric builds a resolved metric.
func KnownMetric(value float64, source string) Metric {
	return Metric{Value: value, Known: true, Source: source}
}

// MarketSnapshot is the per-filing market picture. Any field may be unknown.
type MarketSnapshot struct {
	Price             Metric `json:"price"`
	Volume            Metric `json:"volume"`
	AverageVolume     Metric `json:"average_volume"`
	Float             Metric `json:"float"`
	SharesOutstanding Metric `json:"shares_outstanding"`
}

// Get returns the metric for a field.
func (m MarketSnapshot) Get(f Field) Metric {
	switch f {
	case FieldPrice:
		return m.Price
	case FieldVolume:
		return m.Volume
	case FieldAverageVolume:
		return m.AverageVolume
	case FieldFloat:
		return m.Float
	case FieldSharesOutstanding:
		return m.SharesOutstanding
	default:
		return Metric{}
	}
}

// Set stores the metric for a field.
func (m *MarketSnapshot) Set(f Field, v Metric) {
	switch f {
	case FieldPrice:
		m.Price = v
	case FieldVolume:
		m.Volume = v
	case FieldAverageVolume:
		m.AverageVolume = v
	case FieldFloat:
		m.Float = v
	case FieldSharesOutstanding:
		m.SharesOutstanding = v
	}
}

// SORatio is float over shares outstanding as a percentage.
func (m MarketSnapshot) SORatio() (float64, bool) {
	if !m.Float.Known || !m.SharesOutstanding.Known || m.SharesOutstanding.Value <= 0 {
		return 0, false
	}
	return m.Float.Value / m.SharesOutstanding.Value * 100, true
}

// VolumeRatio is traded volume over average volume.
func (m MarketSnapshot) VolumeRatio() (float64, bool) {
	if !m.Volume.Known || !m.AverageVolume.Known || m.AverageVolume.Value <= 0 {
		return 0, false
	}
	return m.Volume.Value / m.AverageVolume.Value, true
}
