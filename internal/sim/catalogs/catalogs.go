package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Blocks      BlockCatalog
	Conversions ConversionCatalog
	Healing     HealCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
}

// ConversionCatalog holds corruption rules in file order. Matching is
// first-prefix-wins, so more specific prefixes must come earlier in the file.
type ConversionCatalog struct {
	Rules  []ConversionRule
	Digest string
}

type ConversionRule struct {
	Prefix    string `json:"prefix"`
	Corrupted string `json:"corrupted"`
	// RevertTo is the block restored on regrowth; "none" means air.
	RevertTo string `json:"revert_to"`
}

type HealCatalog struct {
	Rules  []HealRule
	Digest string
}

type HealRule struct {
	Prefix string `json:"prefix"`
	// Healed is the replacement block; "none" means air.
	Healed string `json:"healed"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadConversions(filepath.Join(configDir, "conversions.json"), &c.Conversions); err != nil {
		return nil, err
	}
	if err := loadHealing(filepath.Join(configDir, "healing.json"), &c.Healing); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadConversions(path string, out *ConversionCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := json.Unmarshal(raw, &out.Rules); err != nil {
		return fmt.Errorf("conversions.json: %w", err)
	}
	for i, r := range out.Rules {
		if r.Prefix == "" || r.Corrupted == "" || r.RevertTo == "" {
			return fmt.Errorf("conversions.json: rule %d incomplete", i)
		}
	}
	return nil
}

func loadHealing(path string, out *HealCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := json.Unmarshal(raw, &out.Rules); err != nil {
		return fmt.Errorf("healing.json: %w", err)
	}
	for i, r := range out.Rules {
		if r.Prefix == "" || r.Healed == "" {
			return fmt.Errorf("healing.json: rule %d incomplete", i)
		}
	}
	return nil
}

// validate checks that every non-"none" block a rule produces or restores
// exists in the palette, so a bad config fails at startup rather than
// mid-tick.
func (c *Catalogs) validate() error {
	for i, r := range c.Conversions.Rules {
		if _, ok := c.Blocks.Defs[r.Corrupted]; !ok {
			return fmt.Errorf("conversions.json: rule %d: unknown corrupted block %q", i, r.Corrupted)
		}
		if r.RevertTo != "none" {
			if _, ok := c.Blocks.Defs[r.RevertTo]; !ok {
				return fmt.Errorf("conversions.json: rule %d: unknown revert_to block %q", i, r.RevertTo)
			}
		}
	}
	for i, r := range c.Healing.Rules {
		if r.Healed != "none" {
			if _, ok := c.Blocks.Defs[r.Healed]; !ok {
				return fmt.Errorf("healing.json: rule %d: unknown healed block %q", i, r.Healed)
			}
		}
	}
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
