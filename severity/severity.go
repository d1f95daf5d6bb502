// Package severity defines the closed risk taxonomy attached to highlighted
// findings. Levels map to presentation classes at compile time instead of
// string-keyed lookup tables.
package severity

import "strings"

// Level is a risk bucket assigned to a classified block.
type Level int

const (
	None Level = iota
	Low
	Mid
	High
)

// String returns the wire form of the level.
func (l Level) String() string {
	switch l {
	case High:
		return "high"
	case Mid:
		return "mid"
	case Low:
		return "low"
	default:
		return ""
	}
}

// ParseLevel maps a wire string to a Level. Unknown values map to None.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return High
	case "mid", "medium":
		return Mid
	case "low":
		return Low
	default:
		return None
	}
}

// FromProbability buckets a model probability into a Level. Accepts both
// 0–1 and 0–100 scales.
func FromProbability(p float64) Level {
	if p > 1 {
		p = p / 100
	}
	switch {
	case p >= 0.8:
		return High
	case p >= 0.5:
		return Mid
	case p > 0:
		return Low
	default:
		return None
	}
}

const (
	// MarkBaseClass is the class carried by every inline text mark.
	MarkBaseClass = "dm-highlight-mark"
	// ElementBaseClass is the class applied to whole-element targets.
	ElementBaseClass = "dm-highlight-target"
)

// MarkClass returns the full class attribute for an inline text mark.
func (l Level) MarkClass() string {
	switch l {
	case High:
		return MarkBaseClass + " " + MarkBaseClass + "--high"
	case Mid:
		return MarkBaseClass + " " + MarkBaseClass + "--mid"
	case Low:
		return MarkBaseClass + " " + MarkBaseClass + "--low"
	default:
		return MarkBaseClass
	}
}

// ElementClasses returns the class list for a whole-element highlight.
func (l Level) ElementClasses() []string {
	switch l {
	case High:
		return []string{ElementBaseClass, ElementBaseClass + "--high"}
	case Mid:
		return []string{ElementBaseClass, ElementBaseClass + "--mid"}
	case Low:
		return []string{ElementBaseClass, ElementBaseClass + "--low"}
	default:
		return []string{ElementBaseClass}
	}
}

// ElementClassVariants lists every class the element path may have applied,
// for removal when clearing highlights.
func ElementClassVariants() []string {
	return []string{
		ElementBaseClass,
		ElementBaseClass + "--high",
		ElementBaseClass + "--mid",
		ElementBaseClass + "--low",
		"blink",
	}
}
