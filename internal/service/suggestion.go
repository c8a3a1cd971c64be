package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
)

// MaxSuggestedDoses caps the distinct recent doses kept per suggestion.
const MaxSuggestedDoses = 8

type SuggestionKind string

const (
	SuggestionSubstance SuggestionKind = "substance"
	SuggestionRecipe    SuggestionKind = "recipe"
)

// DoseOption is one distinct dose the user logged before.
type DoseOption struct {
	Dose              *float64 `json:"dose,omitempty"`
	StandardDeviation *float64 `json:"standardDeviation,omitempty"`
	IsEstimate        bool     `json:"isEstimate"`
	Units             string   `json:"units"`
}

// Suggestion is a quick-log entry: a substance taken via one route (and
// optionally one custom unit), or a custom recipe.
type Suggestion struct {
	Kind          SuggestionKind            `json:"kind"`
	SubstanceName string                    `json:"substanceName,omitempty"`
	Route         model.AdministrationRoute `json:"route"`
	Color         model.AdaptiveColor       `json:"color,omitempty"`
	CustomUnit    *model.CustomUnit         `json:"customUnit,omitempty"`
	Recipe        *model.CustomRecipe       `json:"recipe,omitempty"`
	Doses         []DoseOption              `json:"doses,omitempty"`
	SortTime      time.Time                 `json:"sortTime"`
}

// SuggestionService ranks quick-log suggestions from the ingestion history.
type SuggestionService struct {
	store *repository.Store
	limit int
}

// NewSuggestionService considers at most limit recent ingestions; 0 means all.
func NewSuggestionService(store *repository.Store, limit int) *SuggestionService {
	return &SuggestionService{store: store, limit: limit}
}

// Suggestions returns suggestions newest first, filtered by searchText.
func (s *SuggestionService) Suggestions(ctx context.Context, searchText string) ([]Suggestion, error) {
	ings, err := s.store.Ingestions.List(ctx, s.limit)
	if err != nil {
		return nil, err
	}
	units, err := s.store.CustomUnits.List(ctx, true)
	if err != nil {
		return nil, err
	}
	recipes, err := s.store.Recipes.List(ctx, false)
	if err != nil {
		return nil, err
	}
	companions, err := s.store.Companions.List(ctx)
	if err != nil {
		return nil, err
	}

	unitsByID := make(map[uint]model.CustomUnit, len(units))
	for _, u := range units {
		unitsByID[u.ID] = u
	}
	colors := make(map[string]model.AdaptiveColor, len(companions))
	for _, c := range companions {
		colors[c.SubstanceName] = c.Color
	}

	all := append(SubstanceSuggestions(ings, unitsByID, colors), RecipeSuggestions(ings, recipes)...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].SortTime.After(all[j].SortTime)
	})
	return FilterSuggestions(all, searchText), nil
}

// Observe emits fresh suggestions whenever the underlying tables change.
func (s *SuggestionService) Observe(ctx context.Context, searchText string) <-chan repository.Result[[]Suggestion] {
	tables := []string{
		repository.TableIngestions, repository.TableCustomUnits, repository.TableCustomRecipes,
		repository.TableRecipeSubcomponents, repository.TableSubstanceCompanions,
	}
	return repository.Observe(ctx, s.store.Tracker(), tables, func(ctx context.Context) ([]Suggestion, error) {
		return s.Suggestions(ctx, searchText)
	})
}

type suggestionKey struct {
	substance string
	route     model.AdministrationRoute
	unitID    uint
}

type doseKey struct {
	known      bool
	dose       float64
	sd         float64
	hasSD      bool
	units      string
	isEstimate bool
}

func keyOf(ing model.Ingestion) doseKey {
	k := doseKey{units: ing.Units, isEstimate: ing.IsDoseAnEstimate}
	if ing.Dose != nil {
		k.known, k.dose = true, *ing.Dose
	}
	if ing.EstimatedDoseStandardDeviation != nil {
		k.hasSD, k.sd = true, *ing.EstimatedDoseStandardDeviation
	}
	return k
}

// SubstanceSuggestions groups ingestions by substance, route and custom unit.
// Recipe ingestions and ingestions of archived or missing custom units are
// skipped. The sort time of a group is its newest creation date.
func SubstanceSuggestions(ings []model.Ingestion, units map[uint]model.CustomUnit, colors map[string]model.AdaptiveColor) []Suggestion {
	index := make(map[suggestionKey]int)
	seen := make(map[suggestionKey]map[doseKey]struct{})
	var out []Suggestion

	for _, ing := range ings {
		if ing.CustomRecipeID != nil {
			continue
		}
		key := suggestionKey{substance: ing.SubstanceName, route: ing.AdministrationRoute}
		var unit *model.CustomUnit
		if ing.CustomUnitID != nil {
			u, ok := units[*ing.CustomUnitID]
			if !ok || u.IsArchived {
				continue
			}
			unit = &u
			key.unitID = u.ID
		}

		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			seen[key] = make(map[doseKey]struct{})
			out = append(out, Suggestion{
				Kind:          SuggestionSubstance,
				SubstanceName: ing.SubstanceName,
				Route:         ing.AdministrationRoute,
				Color:         colors[ing.SubstanceName],
				CustomUnit:    unit,
			})
		}
		sg := &out[i]
		if ing.CreationDate.After(sg.SortTime) {
			sg.SortTime = ing.CreationDate
		}
		if len(sg.Doses) >= MaxSuggestedDoses {
			continue
		}
		dk := keyOf(ing)
		if _, dup := seen[key][dk]; dup {
			continue
		}
		seen[key][dk] = struct{}{}
		sg.Doses = append(sg.Doses, DoseOption{
			Dose:              ing.Dose,
			StandardDeviation: ing.EstimatedDoseStandardDeviation,
			IsEstimate:        ing.IsDoseAnEstimate,
			Units:             ing.Units,
		})
	}
	return out
}

// RecipeSuggestions returns one suggestion per active recipe, ranked by the
// last time it was logged, or by its creation date if it never was.
func RecipeSuggestions(ings []model.Ingestion, recipes []model.CustomRecipe) []Suggestion {
	lastUsed := make(map[uint]time.Time)
	for _, ing := range ings {
		if ing.CustomRecipeID == nil {
			continue
		}
		if ing.CreationDate.After(lastUsed[*ing.CustomRecipeID]) {
			lastUsed[*ing.CustomRecipeID] = ing.CreationDate
		}
	}

	out := make([]Suggestion, 0, len(recipes))
	for i := range recipes {
		r := recipes[i]
		if r.IsArchived {
			continue
		}
		sortTime, ok := lastUsed[r.ID]
		if !ok {
			sortTime = r.CreationDate
		}
		out = append(out, Suggestion{
			Kind:     SuggestionRecipe,
			Route:    r.AdministrationRoute,
			Recipe:   &r,
			SortTime: sortTime,
		})
	}
	return out
}

// FilterSuggestions keeps suggestions whose substance or recipe name, note or
// unit fields contain searchText, ignoring case.
func FilterSuggestions(list []Suggestion, searchText string) []Suggestion {
	needle := strings.ToLower(strings.TrimSpace(searchText))
	if needle == "" {
		return list
	}
	out := make([]Suggestion, 0, len(list))
	for _, sg := range list {
		if sg.matches(needle) {
			out = append(out, sg)
		}
	}
	return out
}

func (sg Suggestion) matches(needle string) bool {
	fields := []string{sg.SubstanceName}
	if u := sg.CustomUnit; u != nil {
		fields = append(fields, u.Name, u.Note, u.Unit, u.UnitPlural, u.OriginalUnit)
	}
	if r := sg.Recipe; r != nil {
		fields = append(fields, r.Name, r.Note, r.Unit, r.UnitPlural)
		for _, sub := range r.Subcomponents {
			fields = append(fields, sub.SubstanceName)
		}
	}
	for _, d := range sg.Doses {
		fields = append(fields, d.Units)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
