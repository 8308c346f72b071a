package web

import (
	"encoding/json"

	"github.com/sweeney/cloudcover-switch/internal/store"
)

// CyclesJSON is the JSON envelope for /cycles.json.
type CyclesJSON struct {
	Cycles []store.CycleRecord `json:"cycles"`
}

func formatCycles(recs []store.CycleRecord) []byte {
	if recs == nil {
		recs = []store.CycleRecord{}
	}
	data, _ := json.MarshalIndent(CyclesJSON{Cycles: recs}, "", "  ")
	return data
}
