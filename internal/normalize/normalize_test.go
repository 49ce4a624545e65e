package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cribs1908/specpipe/internal/model"
)

func rawValue(fieldID, value, unit string) model.ExtractionRaw {
	return model.ExtractionRaw{
		ID:         "raw-1",
		DocumentID: "doc-1",
		FieldID:    fieldID,
		ValueRaw:   value,
		UnitRaw:    unit,
		Source:     "page 1",
		Confidence: 0.9,
		Provenance: model.Provenance{Page: 1, Method: "llm"},
	}
}

func TestDetectRange(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *RangeMatch
	}{
		{"dash", "3.0-5.5V", &RangeMatch{Type: RangeMinMax, Min: "3.0", Max: "5.5"}},
		{"to", "1.2 to 3.4", &RangeMatch{Type: RangeMinMax, Min: "1.2", Max: "3.4"}},
		{"tilde", "10~20", &RangeMatch{Type: RangeMinMax, Min: "10", Max: "20"}},
		{"min typ max", "min: 1.0, typ: 3.3, max: 5.0", &RangeMatch{Type: RangeMinMax, Min: "1.0", Max: "5.0"}},
		{"typical", "3.3 (typ)", &RangeMatch{Type: RangeTypical, Typical: "3.3"}},
		{"plain number", "3.3", nil},
		{"text", "OAuth 2.0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectRange(tt.value))
		})
	}
}

func TestNormalizeValue_Range(t *testing.T) {
	got := NormalizeValue(rawValue("supply_voltage", "3.0-5.5", "V"))
	assert.Equal(t, "3.0-5.5", got.Value)
	assert.Contains(t, got.Flags, FlagRange)
	assert.Equal(t, "Range: min 3.0, max 5.5", got.Note)

	got = NormalizeValue(rawValue("supply_voltage", "3.3 (typ)", "V"))
	assert.Equal(t, "3.3", got.Value)
	assert.Contains(t, got.Flags, FlagRange)
	assert.Equal(t, "Typical value: 3.3", got.Note)
}

func TestNormalizeValue_UnitMapping(t *testing.T) {
	got := NormalizeValue(rawValue("supply_current", "100", "mA"))
	assert.Equal(t, "A", got.Unit)
	assert.Contains(t, got.Flags, FlagUnitNormalized)
	// The numeric value is not rescaled by design.
	assert.Equal(t, "100", got.Value)
	assert.Contains(t, got.Note, "Unit normalized from mA")
}

func TestNormalizeValue_UnitMappingTable(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"mA", "A"},
		{"mV", "V"},
		{"MHz", "Hz"},
		{"GHz", "Hz"},
		{"ms", "s"},
		{"USD", "$"},
		{"percent", "%"},
	}
	for _, tt := range tests {
		got := NormalizeValue(rawValue("some_field", "1", tt.in))
		assert.Equal(t, tt.want, got.Unit, "unit %s", tt.in)
	}

	// Unknown units pass through untouched.
	got := NormalizeValue(rawValue("some_field", "1", "furlongs"))
	assert.Equal(t, "furlongs", got.Unit)
	assert.NotContains(t, got.Flags, FlagUnitNormalized)
}

func TestNormalizeValue_EnumCanonicalization(t *testing.T) {
	got := NormalizeValue(rawValue("auth_type", "oauth2", ""))
	assert.Equal(t, "OAuth 2.0", got.Value)
	assert.Contains(t, got.Flags, FlagEnumCanonical)
	assert.Contains(t, got.Note, "Canonicalized from oauth2")

	// Field-specific table wins over the general fallback: "basic" is an
	// auth type here, not a pricing tier.
	got = NormalizeValue(rawValue("auth_type", "basic", ""))
	assert.Equal(t, "Basic Authentication", got.Value)

	// General fallback applies for unprofiled fields.
	got = NormalizeValue(rawValue("plan", "enterprise", ""))
	assert.Equal(t, "Enterprise", got.Value)

	got = NormalizeValue(rawValue("auth_type", "Kerberos", ""))
	assert.Equal(t, "Kerberos", got.Value)
	assert.NotContains(t, got.Flags, FlagEnumCanonical)
}

func TestNormalizeValue_OutlierGate(t *testing.T) {
	baseline := NormalizeValue(rawValue("supply_current", "50", "mA"))
	flagged := NormalizeValue(rawValue("supply_current", "5000", "mA"))

	assert.Contains(t, flagged.Flags, FlagPotentialOutlier)
	assert.NotContains(t, baseline.Flags, FlagPotentialOutlier)
	assert.InDelta(t, baseline.Confidence*0.7, flagged.Confidence, 0.001)
}

func TestNormalizeValue_OutlierBounds(t *testing.T) {
	tests := []struct {
		fieldID string
		value   string
		flagged bool
	}{
		{"supply_voltage", "1500", true},
		{"supply_voltage", "999", false},
		{"supply_current", "101", true},
		{"clock_frequency", "20000000000", true},
		{"pricing_price", "200000", true},
		{"pricing", "200000", false}, // bound keyed on "price" substring only
		{"supply_voltage", "not a number", false},
	}
	for _, tt := range tests {
		got := NormalizeValue(rawValue(tt.fieldID, tt.value, ""))
		if tt.flagged {
			assert.Contains(t, got.Flags, FlagPotentialOutlier, "%s=%s", tt.fieldID, tt.value)
		} else {
			assert.NotContains(t, got.Flags, FlagPotentialOutlier, "%s=%s", tt.fieldID, tt.value)
		}
	}
}

func TestNormalizeValue_Ambiguity(t *testing.T) {
	for _, v := range []string{"TBD", "n/a", "varies by region", "contact sales", "99...", "maybe?"} {
		got := NormalizeValue(rawValue("pricing", v, ""))
		assert.Contains(t, got.Flags, FlagAmbiguous, "value %q", v)
		assert.InDelta(t, 0.9*0.8, got.Confidence, 0.001, "value %q", v)
	}

	got := NormalizeValue(rawValue("pricing", "49.99", "USD"))
	assert.NotContains(t, got.Flags, FlagAmbiguous)
}

func TestNormalizeValue_ConfidenceBounds(t *testing.T) {
	// Stacked penalties stay within [0.1, 1.0].
	got := NormalizeValue(rawValue("supply_current", "5000 (TBD)", "mA"))
	assert.GreaterOrEqual(t, got.Confidence, 0.1)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.InDelta(t, 0.9*0.7*0.8, got.Confidence, 0.001)
}

func TestNormalizeValue_Idempotent(t *testing.T) {
	raw := rawValue("supply_voltage", "3.0-5.5", "mV")
	first := NormalizeValue(raw)
	second := NormalizeValue(raw)
	assert.Equal(t, first, second)
}

func TestNormalizeExtractions(t *testing.T) {
	raws := []model.ExtractionRaw{
		rawValue("supply_voltage", "3.3", "V"),
		rawValue("supply_current", "100", "mA"),
	}
	raws[1].ID = "raw-2"

	got := NormalizeExtractions(raws)
	require.Len(t, got, 2)

	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, "raw-1", got[0].ProvenanceRef)
	assert.Equal(t, "raw-2", got[1].ProvenanceRef)
	assert.Equal(t, "doc-1", got[0].DocumentID)
	assert.Equal(t, "supply_voltage", got[0].FieldID)
	assert.Equal(t, "A", got[1].Unit)
	assert.True(t, got[1].HasFlag(FlagUnitNormalized))

	assert.Empty(t, NormalizeExtractions(nil))
}
