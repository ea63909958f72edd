package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterminism(t *testing.T) {
	a := Scope{"metric_key": "absenteeism_rate", "department": "ops"}
	b := Scope{"department": "ops", "metric_key": "absenteeism_rate"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "key order must not matter")
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFingerprintNullStripping(t *testing.T) {
	withNil := Scope{"department": "ops", "location": nil}
	without := Scope{"department": "ops"}

	assert.Equal(t, without.Fingerprint(), withNil.Fingerprint(),
		"nil-valued dimensions are treated as absent")

	assert.Equal(t, Scope{}.Fingerprint(), Scope{"x": nil}.Fingerprint())
}

func TestFingerprintDistinguishesValues(t *testing.T) {
	base := Scope{"department": "ops"}

	assert.NotEqual(t, base.Fingerprint(), Scope{"department": "sales"}.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), Scope{"division": "ops"}.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), Scope{}.Fingerprint())

	// A string value and a numeric value are different dimensions values.
	assert.NotEqual(t, Scope{"tier": "1"}.Fingerprint(), Scope{"tier": 1}.Fingerprint())

	// Field boundaries cannot be shifted between key and value.
	assert.NotEqual(t, Scope{"ab": "c"}.Fingerprint(), Scope{"a": "bc"}.Fingerprint())
}

func TestFingerprintNumericNormalization(t *testing.T) {
	assert.Equal(t, Scope{"tier": 2}.Fingerprint(), Scope{"tier": float64(2)}.Fingerprint(),
		"int and float of equal value are the same dimension value")
	assert.Equal(t, Scope{"tier": int64(2)}.Fingerprint(), Scope{"tier": int32(2)}.Fingerprint())
}

func TestEqual(t *testing.T) {
	assert.True(t, Scope{"a": 1, "b": nil}.Equal(Scope{"a": 1}))
	assert.False(t, Scope{"a": 1}.Equal(Scope{"a": 2}))
}
