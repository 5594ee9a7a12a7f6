// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package graph

import "fmt"

// ConstraintKind distinguishes how a single capability field is expressed.
// Exact values must match exactly; range constraints must include the
// proposed value; set constraints must contain it.
type ConstraintKind string

const (
	ConstraintUnresolved ConstraintKind = "" // not yet resolved
	ConstraintExact      ConstraintKind = "exact"
	ConstraintRange      ConstraintKind = "range"
	ConstraintSet        ConstraintKind = "set"
)

// Constraint is one resolved (or not-yet-resolved) field of a Capability.
type Constraint struct {
	Kind ConstraintKind
	// Exact is used when Kind == ConstraintExact.
	Exact uint32
	// Min/Max (inclusive) are used when Kind == ConstraintRange.
	Min, Max uint32
	// Set is used when Kind == ConstraintSet.
	Set []uint32
}

// Exactly builds an exact constraint.
func Exactly(v uint32) Constraint { return Constraint{Kind: ConstraintExact, Exact: v} }

// InRange builds an inclusive range constraint.
func InRange(min, max uint32) Constraint {
	return Constraint{Kind: ConstraintRange, Min: min, Max: max}
}

// OneOf builds a set constraint.
func OneOf(values ...uint32) Constraint { return Constraint{Kind: ConstraintSet, Set: values} }

// Accepts reports whether proposed satisfies the constraint.
func (c Constraint) Accepts(proposed uint32) bool {
	switch c.Kind {
	case ConstraintExact:
		return c.Exact == proposed
	case ConstraintRange:
		return proposed >= c.Min && proposed <= c.Max
	case ConstraintSet:
		for _, v := range c.Set {
			if v == proposed {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// CompatibleWith reports whether a producer constraint (c, the output side)
// can satisfy a consumer constraint (other, the input side). An exact
// producer value must be accepted by the consumer, and an exact consumer
// value must be accepted by the producer. When neither side is exact the
// result is always true; ranges and sets are not checked for overlap.
func (c Constraint) CompatibleWith(other Constraint) bool {
	if c.Kind == ConstraintExact {
		return other.Accepts(c.Exact)
	}
	if other.Kind == ConstraintExact {
		return c.Accepts(other.Exact)
	}
	// Neither side has resolved to a concrete value: accept the edge without
	// comparing the two ranges/sets.
	return true
}

func (c Constraint) String() string {
	switch c.Kind {
	case ConstraintExact:
		return fmt.Sprintf("%d", c.Exact)
	case ConstraintRange:
		return fmt.Sprintf("[%d,%d]", c.Min, c.Max)
	case ConstraintSet:
		return fmt.Sprintf("%v", c.Set)
	default:
		return "<unresolved>"
	}
}

// MediaKind is the RuntimeData variant a capability describes.
type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaText   MediaKind = "text"
	MediaTensor MediaKind = "tensor"
)

// Capability is the resolved format constraint on a node's input or output
// port. Only the fields relevant to MediaKind are meaningful; for MediaText
// both SampleRate and Channels are left unresolved.
type Capability struct {
	Media      MediaKind
	SampleRate Constraint
	Channels   Constraint
}

// CompatibleWith validates a producer (c) against a consumer (other).
// Media kind must match exactly; both SampleRate and Channels (when
// relevant to the media kind) must be compatible.
func (c Capability) CompatibleWith(other Capability) error {
	if c.Media != other.Media {
		return fmt.Errorf("media kind mismatch: %s vs %s", c.Media, other.Media)
	}
	if c.Media != MediaAudio {
		return nil
	}
	if !c.SampleRate.CompatibleWith(other.SampleRate) {
		return fmt.Errorf("sample_rate mismatch: %s vs %s", c.SampleRate, other.SampleRate)
	}
	if !c.Channels.CompatibleWith(other.Channels) {
		return fmt.Errorf("channel_count mismatch: %s vs %s", c.Channels, other.Channels)
	}
	return nil
}

func (c Capability) resolved() bool {
	if c.Media != MediaAudio {
		return true
	}
	return c.SampleRate.Kind != ConstraintUnresolved && c.Channels.Kind != ConstraintUnresolved
}

// DeclKind is how a node's port capability is declared in its manifest
// entry.
type DeclKind string

const (
	DeclStatic            DeclKind = "static"             // fixed at node-type level
	DeclConfigured        DeclKind = "configured"         // derived from params
	DeclPassthrough       DeclKind = "passthrough"        // equals the node's resolved input
	DeclAdaptive          DeclKind = "adaptive"           // resolved from the sole downstream consumer (reverse pass)
	DeclRuntimeDiscovered DeclKind = "runtime_discovered" // two-phase: potential now, actual once the node starts
)

// PortDecl declares how one port (input or output) of a node resolves its
// capability.
type PortDecl struct {
	Kind DeclKind
	// Capability is used directly when Kind is Static or Configured (and
	// provides the "potential" value when Kind is RuntimeDiscovered).
	Capability Capability
}
