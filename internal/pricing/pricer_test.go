package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/catalog"
	"github.com/warung-pos/api/internal/enum"
)

func selection(name string, modifiers ...int64) catalog.VariantSelection {
	sel := catalog.VariantSelection{
		VariantID:   uuid.New(),
		VariantName: name,
		Mode:        enum.SelectMultiple,
	}
	for _, m := range modifiers {
		sel.Options = append(sel.Options, catalog.SelectedOption{
			OptionID:      uuid.New(),
			Name:          name,
			PriceModifier: decimal.NewFromInt(m),
		})
	}
	return sel
}

func TestPriceMenuItemSumsModifiers(t *testing.T) {
	item := catalog.MenuItem{
		ID:        uuid.New(),
		Name:      "Nasi Goreng",
		BasePrice: decimal.NewFromInt(25000),
		IsActive:  true,
	}
	sels := []catalog.VariantSelection{
		selection("Topping", 4000, 7000),
		selection("Spice Level", 0),
	}

	unit, total := PriceMenuItem(item, sels, 2)
	if !unit.Equal(decimal.NewFromInt(36000)) {
		t.Errorf("unit = %s, want 36000", unit)
	}
	if !total.Equal(decimal.NewFromInt(72000)) {
		t.Errorf("total = %s, want 72000", total)
	}
}

func TestPriceMenuItemFloorsNegativeTotal(t *testing.T) {
	item := catalog.MenuItem{BasePrice: decimal.NewFromInt(1000)}
	sels := []catalog.VariantSelection{selection("Promo", -5000)}

	unit, total := PriceMenuItem(item, sels, 3)
	if !unit.Equal(decimal.NewFromInt(-4000)) {
		t.Errorf("unit = %s, want -4000", unit)
	}
	if !total.Equal(decimal.Zero) {
		t.Errorf("total = %s, want 0", total)
	}
}

func TestPriceDealIgnoresMemberSelections(t *testing.T) {
	deal := catalog.Deal{
		ID:        uuid.New(),
		Name:      "Paket Hemat",
		BasePrice: decimal.NewFromInt(30000),
		IsActive:  true,
	}
	member := catalog.ResolvedMember{
		Item:     catalog.MenuItem{ID: uuid.New(), Name: "Nasi Goreng"},
		Quantity: 1,
		Bindings: []catalog.ResolvedBinding{{
			Variant: catalog.Variant{ID: uuid.New(), Name: "Topping"},
			Mode:    enum.SelectMultiple,
		}},
	}

	// Member picks an expensive topping; the bundle price must not move.
	members := []MemberUnits{{
		Member: member,
		Units:  [][]catalog.VariantSelection{{selection("Topping", 7000)}},
	}}

	unit, total, breakdown := PriceDeal(deal, nil, members, 1)
	if !unit.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("unit = %s, want flat 30000", unit)
	}
	if !total.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("total = %s, want flat 30000", total)
	}

	// But the choice is still recorded for the kitchen.
	if len(breakdown) != 1 || len(breakdown[0].Selections) != 1 {
		t.Fatalf("member selection lost from breakdown: %+v", breakdown)
	}
	if breakdown[0].Selections[0].VariantName != "Topping" {
		t.Errorf("wrong breakdown selection: %+v", breakdown[0].Selections)
	}
}

func TestPriceDealAppliesDealLevelModifiers(t *testing.T) {
	deal := catalog.Deal{BasePrice: decimal.NewFromInt(30000)}
	dealSels := []catalog.VariantSelection{selection("Packaging", 2000)}

	unit, total, _ := PriceDeal(deal, dealSels, nil, 2)
	if !unit.Equal(decimal.NewFromInt(32000)) {
		t.Errorf("unit = %s, want 32000", unit)
	}
	if !total.Equal(decimal.NewFromInt(64000)) {
		t.Errorf("total = %s, want 64000", total)
	}
}

func TestExpandBreakdownPerUnit(t *testing.T) {
	withVariants := catalog.ResolvedMember{
		Item:     catalog.MenuItem{ID: uuid.New(), Name: "Es Teh"},
		Quantity: 2,
		Bindings: []catalog.ResolvedBinding{{
			Variant: catalog.Variant{ID: uuid.New(), Name: "Size"},
			Mode:    enum.SelectSingle,
		}},
	}
	plain := catalog.ResolvedMember{
		Item:     catalog.MenuItem{ID: uuid.New(), Name: "Kerupuk"},
		Quantity: 3,
	}

	unit0 := selection("Size", 0)
	unit1 := selection("Size", 3000)
	breakdown := ExpandBreakdown(nil, []MemberUnits{
		{Member: withVariants, Units: [][]catalog.VariantSelection{{unit0}, {unit1}}},
		{Member: plain},
	})

	// Variant member expands per unit, plain member stays collapsed.
	if len(breakdown) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(breakdown))
	}
	if breakdown[0].Quantity != 1 || breakdown[1].Quantity != 1 {
		t.Errorf("variant member units must be quantity 1: %+v", breakdown[:2])
	}
	if breakdown[0].Selections[0].Options[0].PriceModifier.Equal(breakdown[1].Selections[0].Options[0].PriceModifier) {
		t.Error("per-unit selections should be independent")
	}
	if breakdown[2].MenuItemName != "Kerupuk" || breakdown[2].Quantity != 3 {
		t.Errorf("plain member wrong: %+v", breakdown[2])
	}
}

func TestExpandBreakdownMergesDealLevelSelections(t *testing.T) {
	sharedVariant := uuid.New()
	dealSel := catalog.VariantSelection{
		VariantID:   sharedVariant,
		VariantName: "Sauce",
		Mode:        enum.SelectSingle,
		Options:     []catalog.SelectedOption{{OptionID: uuid.New(), Name: "Kecap"}},
	}
	unitSel := catalog.VariantSelection{
		VariantID:   sharedVariant,
		VariantName: "Sauce",
		Mode:        enum.SelectSingle,
		Options:     []catalog.SelectedOption{{OptionID: uuid.New(), Name: "Sambal"}},
	}

	member := catalog.ResolvedMember{
		Item:     catalog.MenuItem{ID: uuid.New(), Name: "Nasi Goreng"},
		Quantity: 1,
		Bindings: []catalog.ResolvedBinding{{Variant: catalog.Variant{ID: sharedVariant, Name: "Sauce"}}},
	}

	breakdown := ExpandBreakdown(
		[]catalog.VariantSelection{dealSel},
		[]MemberUnits{{Member: member, Units: [][]catalog.VariantSelection{{unitSel}}}},
	)

	// The unit's own choice wins over the deal-level one for the same variant.
	if len(breakdown) != 1 || len(breakdown[0].Selections) != 1 {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}
	if breakdown[0].Selections[0].Options[0].Name != "Sambal" {
		t.Errorf("unit selection should win: %+v", breakdown[0].Selections)
	}
}
