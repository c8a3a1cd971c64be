package service

import (
	"math"

	"substance-journal/internal/model"
)

// Dose is an amount in a substance's canonical unit. A nil Amount means the
// dose is unknown.
type Dose struct {
	Amount            *float64 `json:"amount,omitempty"`
	StandardDeviation *float64 `json:"standardDeviation,omitempty"`
	IsEstimate        bool     `json:"isEstimate"`
	Units             string   `json:"units"`
}

// IsUnknown reports whether the dose amount is missing.
func (d Dose) IsUnknown() bool {
	return d.Amount == nil
}

// CustomUnitDose converts an amount of custom units into the substance's
// canonical unit: amount × unit.Dose.
//
// When only one side carries a standard deviation it scales linearly with the
// other side's mean. When both do, the product of two independent variables
// is used: sqrt((σx²+μx²)(σy²+μy²) − μx²μy²).
func CustomUnitDose(amount Dose, unit model.CustomUnit) Dose {
	out := Dose{
		IsEstimate: amount.IsEstimate || unit.IsEstimate,
		Units:      unit.OriginalUnit,
	}
	if amount.Amount == nil || unit.Dose == nil {
		return out
	}
	out.Amount = ptr(*amount.Amount * *unit.Dose)
	out.StandardDeviation = productDeviation(*amount.Amount, amount.StandardDeviation, *unit.Dose, unit.EstimatedDoseStandardDeviation)
	return out
}

func productDeviation(meanX float64, sdX *float64, meanY float64, sdY *float64) *float64 {
	switch {
	case sdX != nil && sdY != nil:
		sx, sy := *sdX, *sdY
		v := (sx*sx+meanX*meanX)*(sy*sy+meanY*meanY) - meanX*meanX*meanY*meanY
		return ptr(math.Sqrt(math.Max(v, 0)))
	case sdX != nil:
		return ptr(*sdX * meanY)
	case sdY != nil:
		return ptr(meanX * *sdY)
	default:
		return nil
	}
}

// ComponentDose is what one recipe subcomponent delivers for a recipe dose.
// Dose is expressed in the subcomponent's units, i.e. in custom units when
// CustomUnitID is set.
type ComponentDose struct {
	SubstanceName string
	CustomUnitID  *uint
	Dose          Dose
}

// RecipeComponentDoses scales every subcomponent by the recipe dose the user
// entered. A subcomponent's deviation scales linearly with the recipe dose;
// without one, the recipe dose's deviation scales with the subcomponent dose.
func RecipeComponentDoses(recipe model.CustomRecipe, recipeDose Dose) []ComponentDose {
	out := make([]ComponentDose, 0, len(recipe.Subcomponents))
	for _, sub := range recipe.Subcomponents {
		d := Dose{
			IsEstimate: recipeDose.IsEstimate || sub.IsEstimate,
			Units:      sub.Units,
		}
		if recipeDose.Amount != nil && sub.Dose != nil {
			d.Amount = ptr(*sub.Dose * *recipeDose.Amount)
			switch {
			case sub.EstimatedDoseStandardDeviation != nil:
				d.StandardDeviation = ptr(*sub.EstimatedDoseStandardDeviation * *recipeDose.Amount)
			case recipeDose.StandardDeviation != nil:
				d.StandardDeviation = ptr(*sub.Dose * *recipeDose.StandardDeviation)
			}
		}
		out = append(out, ComponentDose{SubstanceName: sub.SubstanceName, CustomUnitID: sub.CustomUnitID, Dose: d})
	}
	return out
}

// CanonicalDose returns an ingestion's dose in canonical units. unit must be
// the ingestion's custom unit when it has one.
func CanonicalDose(ing model.Ingestion, unit *model.CustomUnit) Dose {
	raw := Dose{
		Amount:            ing.Dose,
		StandardDeviation: ing.EstimatedDoseStandardDeviation,
		IsEstimate:        ing.IsDoseAnEstimate,
		Units:             ing.Units,
	}
	if ing.CustomUnitID == nil || unit == nil {
		return raw
	}
	return CustomUnitDose(raw, *unit)
}

func ptr[T any](v T) *T {
	return &v
}
