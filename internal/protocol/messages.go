package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ClientName      string   `json:"client_name"`
	Subscribe       [][3]int `json:"subscribe,omitempty"` // points for intensity sampling
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz int   `json:"tick_rate_hz"`
	Height     int   `json:"height"`
	BoundaryR  int   `json:"boundary_r"`
	Seed       int64 `json:"seed"`
}

type CatalogDigests struct {
	BlockPalette      DigestRef `json:"block_palette"`
	ConversionsDigest string    `json:"conversions_digest"`
	HealingDigest     string    `json:"healing_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// STATUS (server -> client): periodic simulation summary.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Tick      uint64  `json:"tick"`
	GameHours float64 `json:"game_hours"`
	Paused    bool    `json:"paused"`

	Sources         []SourceSummary  `json:"sources"`
	Rifts           int              `json:"rifts"`
	RegrowQueue     int              `json:"regrow_queue"`
	CorruptedChunks [][2]int         `json:"corrupted_chunks,omitempty"`
	Intensity       []PointIntensity `json:"intensity,omitempty"`
}

type SourceSummary struct {
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

type PointIntensity struct {
	Pos   [3]int  `json:"pos"`
	Score float64 `json:"score"`
}

// COMMAND (client -> server): operator action. Fields beyond Cmd are
// verb-dependent; unused ones stay zero.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`

	Cmd    string  `json:"cmd"`
	Pos    *[3]int `json:"pos,omitempty"`
	Range  int     `json:"range,omitempty"`
	Amount int     `json:"amount,omitempty"`
	ID     uint64  `json:"id,omitempty"`    // REMOVE_SOURCE
	Hours  float64 `json:"hours,omitempty"` // ADVANCE_TIME, may be negative
}

// RESULT (server -> client): outcome of one command.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`

	Cmd     string `json:"cmd"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	ID      uint64 `json:"id,omitempty"` // id of the affected source
	Tick    uint64 `json:"tick"`
}
