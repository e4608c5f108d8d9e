package blight

// EngineMetrics is a read-only view refreshed at the end of every tick.
// Safe to read from any goroutine via Metrics().
type EngineMetrics struct {
	Tick      uint64  `json:"tick"`
	GameHours float64 `json:"game_hours"`
	Paused    bool    `json:"paused"`

	Sources        int `json:"sources"`
	HealingSources int `json:"healing_sources"`
	SaturatedCount int `json:"saturated"`
	Rifts          int `json:"rifts"`
	RegrowQueue    int `json:"regrow_queue"`

	LoadedChunks    int `json:"loaded_chunks"`
	CorruptedChunks int `json:"corrupted_chunks"`

	TickConverted int `json:"tick_converted"`
	TickHealed    int `json:"tick_healed"`
	TickReverted  int `json:"tick_reverted"`
	TickSpawned   int `json:"tick_spawned"`
	TickEvicted   int `json:"tick_evicted"`

	InboxDepth  int     `json:"inbox_depth"`
	StepMS      float64 `json:"step_ms"`
	PanicsTotal uint64  `json:"panics_total"`

	SourceList []SourceStatus `json:"source_list,omitempty"`
}

// SourceStatus is the per-source slice of the metrics view, consumed by
// the status transport.
type SourceStatus struct {
	ID            uint64  `json:"id"`
	Pos           [3]int  `json:"pos"`
	Range         int     `json:"range"`
	CurrentRadius float64 `json:"current_radius"`
	Generation    int     `json:"generation"`
	BlocksTotal   int     `json:"blocks_total"`
	Healing       bool    `json:"healing,omitempty"`
	Saturated     bool    `json:"saturated,omitempty"`
	Protected     bool    `json:"protected,omitempty"`
}

func (e *Engine) Metrics() EngineMetrics {
	m, _ := e.metrics.Load().(EngineMetrics)
	return m
}

func (e *Engine) storeMetrics(stepMS float64) {
	healing, saturated := 0, 0
	var list []SourceStatus
	for _, s := range e.registry.Active() {
		if s.Healing {
			healing++
		}
		if s.Saturated {
			saturated++
		}
		list = append(list, SourceStatus{
			ID:            uint64(s.ID),
			Pos:           s.Pos.ToArray(),
			Range:         s.Range,
			CurrentRadius: s.CurrentRadius,
			Generation:    s.Generation,
			BlocksTotal:   s.BlocksTotal,
			Healing:       s.Healing,
			Saturated:     s.Saturated,
			Protected:     s.Protected,
		})
	}
	corruptedChunks := 0
	for k, n := range e.corruptedCount {
		if e.chunkCorrupted(k, n) {
			corruptedChunks++
		}
	}
	e.metrics.Store(EngineMetrics{
		Tick:            e.tick.Load(),
		GameHours:       e.gameHours(),
		Paused:          e.paused,
		Sources:         e.registry.Len(),
		HealingSources:  healing,
		SaturatedCount:  saturated,
		Rifts:           len(e.rifts),
		RegrowQueue:     len(e.regrow),
		LoadedChunks:    len(e.chunks.chunks),
		CorruptedChunks: corruptedChunks,
		TickConverted:   e.tickConverted,
		TickHealed:      e.tickHealed,
		TickReverted:    e.tickReverted,
		TickSpawned:     e.tickSpawned,
		TickEvicted:     e.tickEvicted,
		InboxDepth:      len(e.inbox),
		StepMS:          stepMS,
		PanicsTotal:     e.panicsTotal,
		SourceList:      list,
	})
}
