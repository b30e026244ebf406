package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLegacyDUTLabel(t *testing.T) {
	s := Classify("[DUT#|12345:87654321]")
	assert.Equal(t, DUTScan, s.Kind)
	assert.EqualValues(t, 12345, s.DUT.MN)
	assert.EqualValues(t, 87654321, s.DUT.SN)
	assert.Empty(t, s.DUT.Option)
}

func TestClassifyDUTWithOptionLabel(t *testing.T) {
	s := Classify("[DUT|12345:87654321:ABCDEFGHIJKL]")
	assert.Equal(t, DUTScan, s.Kind)
	assert.Equal(t, "ABCDEFGHIJKL", s.DUT.Option)
}

func TestClassifyPSULabel(t *testing.T) {
	s := Classify("[PSU#|ABCD:123-4567]")
	assert.Equal(t, PSUScan, s.Kind)
	assert.Equal(t, "ABCD:123-4567", s.PSU)
}

func TestClassifyUnknownForUnrecognizedRaw(t *testing.T) {
	s := Classify("garbage-scan-data")
	assert.Equal(t, Unknown, s.Kind)
	assert.Equal(t, "garbage-scan-data", s.Raw)
}
