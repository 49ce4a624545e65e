//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cribs1908/specpipe/internal/synonym"
)

func TestFormatSynonyms(t *testing.T) {
	ws := []synonym.Entry{
		{FieldID: "pricing", Score: 0.75, Variants: []string{"price", "cost", "fee"}, WorkspaceID: "ws-1"},
	}
	global := []synonym.Entry{
		{FieldID: "supply_voltage", Score: 0.9, Variants: []string{"vcc", "vdd"}},
	}

	var buf bytes.Buffer
	formatSynonyms(&buf, ws, global)

	output := buf.String()
	assert.Contains(t, output, "global")
	assert.Contains(t, output, "workspace")
	assert.Contains(t, output, "supply_voltage")
	assert.Contains(t, output, "vcc, vdd")
	assert.Contains(t, output, "pricing")
	assert.Contains(t, output, "0.75")
}

func TestJoinVariants_Truncates(t *testing.T) {
	long := []string{
		"maximum recommended operating supply voltage",
		"absolute maximum supply voltage rating",
	}
	got := joinVariants(long)
	assert.Len(t, got, 60)
	assert.Contains(t, got, "...")

	short := joinVariants([]string{"vcc", "vdd"})
	assert.Equal(t, "vcc, vdd", short)
}
