// Package selection tracks in-progress variant choices for a single menu
// item or deal unit and enforces the selection-mode and required-variant
// rules before a line may be committed.
package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/warung-pos/api/internal/catalog"
	"github.com/warung-pos/api/internal/enum"
)

var (
	ErrUnknownVariant = errors.New("variant is not bound to this item")
	ErrUnknownOption  = errors.New("option is not available for this variant")
	// ErrNotToggleable is returned for ALL-mode variants, whose full option
	// set is fixed at initialization.
	ErrNotToggleable = errors.New("variant selection is fixed")
)

// ValidationError reports required variants with no selection. It blocks the
// commit locally; a line with this error never reaches the server.
type ValidationError struct {
	MissingVariants []string
}

func (e *ValidationError) Error() string {
	return "selection incomplete, missing: " + strings.Join(e.MissingVariants, ", ")
}

// State holds the current choices for one item (or one unit inside a deal),
// keyed by variant ID.
type State struct {
	bindings []catalog.ResolvedBinding
	chosen   map[uuid.UUID]map[uuid.UUID]bool
}

// New initializes a selection state for the given bindings. ALL-mode
// bindings auto-populate their full option set with zero user interaction.
func New(bindings []catalog.ResolvedBinding) *State {
	s := &State{
		bindings: bindings,
		chosen:   make(map[uuid.UUID]map[uuid.UUID]bool),
	}
	for _, b := range bindings {
		if b.Mode == enum.SelectAll {
			s.selectAll(b)
		}
	}
	return s
}

// NewFromSelections rebuilds a state from an existing line's selections for
// edit-in-place. Options that are no longer available are dropped; ALL-mode
// bindings are re-populated from the current catalog, not the prior line.
func NewFromSelections(bindings []catalog.ResolvedBinding, prior []catalog.VariantSelection) *State {
	s := New(bindings)
	for _, sel := range prior {
		b, ok := s.binding(sel.VariantID)
		if !ok || b.Mode == enum.SelectAll {
			continue
		}
		for _, opt := range sel.Options {
			if _, ok := optionOf(b, opt.OptionID); ok {
				s.add(sel.VariantID, opt.OptionID)
			}
		}
	}
	return s
}

// Toggle flips the option for the given variant. Single mode replaces any
// existing choice (radio semantics); multiple mode adds or removes, dropping
// the variant entry entirely when no options remain; ALL mode rejects.
func (s *State) Toggle(variantID, optionID uuid.UUID) error {
	b, ok := s.binding(variantID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariant, variantID)
	}
	if _, ok := optionOf(b, optionID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
	}

	switch b.Mode {
	case enum.SelectSingle:
		s.chosen[variantID] = map[uuid.UUID]bool{optionID: true}
	case enum.SelectMultiple:
		set := s.chosen[variantID]
		if set != nil && set[optionID] {
			delete(set, optionID)
			if len(set) == 0 {
				delete(s.chosen, variantID)
			}
		} else {
			s.add(variantID, optionID)
		}
	case enum.SelectAll:
		return ErrNotToggleable
	default:
		return fmt.Errorf("unknown selection mode %q", b.Mode)
	}
	return nil
}

// Missing returns the names of required bindings with no selection, in
// binding order.
func (s *State) Missing() []string {
	var missing []string
	for _, b := range s.bindings {
		if b.IsRequired && len(s.chosen[b.Variant.ID]) == 0 {
			missing = append(missing, b.Variant.Name)
		}
	}
	return missing
}

// Complete reports whether every required binding has a selection.
func (s *State) Complete() bool {
	return len(s.Missing()) == 0
}

// AutoResolve fills unselected bindings the way an unprompted add does:
// single mode with exactly one available option selects it; ALL mode is
// already populated; multiple mode with an allowed-option restriction
// selects every allowed option. Administrator-configured modifiers are
// never silently dropped just because the buyer was not prompted.
func (s *State) AutoResolve() {
	for _, b := range s.bindings {
		if len(s.chosen[b.Variant.ID]) > 0 {
			continue
		}
		switch b.Mode {
		case enum.SelectSingle:
			if len(b.Options) == 1 {
				s.add(b.Variant.ID, b.Options[0].ID)
			}
		case enum.SelectMultiple:
			if b.Restricted {
				s.selectAll(b)
			}
		}
	}
}

// Selections gates the commit: it returns the resolved selection set in
// binding order, or a *ValidationError naming every required variant that
// is still unselected.
func (s *State) Selections() ([]catalog.VariantSelection, error) {
	if missing := s.Missing(); len(missing) > 0 {
		return nil, &ValidationError{MissingVariants: missing}
	}

	var out []catalog.VariantSelection
	for _, b := range s.bindings {
		set := s.chosen[b.Variant.ID]
		if len(set) == 0 {
			continue
		}
		sel := catalog.VariantSelection{
			VariantID:   b.Variant.ID,
			VariantName: b.Variant.Name,
			Mode:        b.Mode,
		}
		// Options in catalog order, not map order.
		for _, opt := range b.Options {
			if set[opt.ID] {
				sel.Options = append(sel.Options, catalog.SelectedOption{
					OptionID:      opt.ID,
					Name:          opt.Name,
					PriceModifier: opt.PriceModifier,
				})
			}
		}
		out = append(out, sel)
	}
	return out, nil
}

func (s *State) binding(variantID uuid.UUID) (catalog.ResolvedBinding, bool) {
	for _, b := range s.bindings {
		if b.Variant.ID == variantID {
			return b, true
		}
	}
	return catalog.ResolvedBinding{}, false
}

func (s *State) add(variantID, optionID uuid.UUID) {
	set := s.chosen[variantID]
	if set == nil {
		set = make(map[uuid.UUID]bool)
		s.chosen[variantID] = set
	}
	set[optionID] = true
}

func (s *State) selectAll(b catalog.ResolvedBinding) {
	for _, opt := range b.Options {
		s.add(b.Variant.ID, opt.ID)
	}
}

func optionOf(b catalog.ResolvedBinding, optionID uuid.UUID) (catalog.VariantOption, bool) {
	for _, opt := range b.Options {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return catalog.VariantOption{}, false
}
