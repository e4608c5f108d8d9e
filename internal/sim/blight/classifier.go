package blight

import "blightworld.ai/internal/sim/catalogs"

// RevertNone is the reversion sentinel meaning "clear to air" instead of
// substituting a block kind.
const RevertNone = "none"

// Classifier answers, for a block kind, what it corrupts into, what a
// corrupted block heals into, and whether a kind is corrupted at all.
// Rules are ordered prefix matches; the first hit wins, so overlapping
// prefixes (SANDSTONE before SAND) resolve by file order.
type Classifier struct {
	conv []catalogs.ConversionRule
	heal []catalogs.HealRule
}

func NewClassifier(cats *catalogs.Catalogs) *Classifier {
	return &Classifier{
		conv: cats.Conversions.Rules,
		heal: cats.Healing.Rules,
	}
}

func (c *Classifier) ForCorruption(kind string) (corrupted, revertTo string, ok bool) {
	for _, r := range c.conv {
		if hasPrefix(kind, r.Prefix) {
			return r.Corrupted, r.RevertTo, true
		}
	}
	return "", "", false
}

func (c *Classifier) ForHealing(kind string) (healed string, ok bool) {
	for _, r := range c.heal {
		if hasPrefix(kind, r.Prefix) {
			return r.Healed, true
		}
	}
	return "", false
}

// IsCorrupted reports whether the kind belongs to a corrupted family. The
// heal table enumerates exactly those families, so membership is a prefix
// match against it.
func (c *Classifier) IsCorrupted(kind string) bool {
	for _, r := range c.heal {
		if hasPrefix(kind, r.Prefix) {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
