package model

import (
	"fmt"
	"strings"
	"time"
)

// AdministrationRoute is how a substance entered the body.
type AdministrationRoute string

const (
	RouteOral          AdministrationRoute = "ORAL"
	RouteSublingual    AdministrationRoute = "SUBLINGUAL"
	RouteBuccal        AdministrationRoute = "BUCCAL"
	RouteInsufflated   AdministrationRoute = "INSUFFLATED"
	RouteRectal        AdministrationRoute = "RECTAL"
	RouteTransdermal   AdministrationRoute = "TRANSDERMAL"
	RouteSubcutaneous  AdministrationRoute = "SUBCUTANEOUS"
	RouteIntramuscular AdministrationRoute = "INTRAMUSCULAR"
	RouteIntravenous   AdministrationRoute = "INTRAVENOUS"
	RouteSmoked        AdministrationRoute = "SMOKED"
	RouteInhaled       AdministrationRoute = "INHALED"
)

var routes = []AdministrationRoute{
	RouteOral, RouteSublingual, RouteBuccal, RouteInsufflated, RouteRectal, RouteTransdermal,
	RouteSubcutaneous, RouteIntramuscular, RouteIntravenous, RouteSmoked, RouteInhaled,
}

// Routes lists every known administration route.
func Routes() []AdministrationRoute {
	return append([]AdministrationRoute(nil), routes...)
}

// ParseRoute accepts a route name in any case.
func ParseRoute(s string) (AdministrationRoute, error) {
	r := AdministrationRoute(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown administration route %q", s)
	}
	return r, nil
}

func (r AdministrationRoute) Valid() bool {
	for _, known := range routes {
		if r == known {
			return true
		}
	}
	return false
}

// IsInjected reports whether the route bypasses absorption through tissue.
func (r AdministrationRoute) IsInjected() bool {
	return r == RouteSubcutaneous || r == RouteIntramuscular || r == RouteIntravenous
}

// StomachFullness only matters for oral ingestions; it delays onset.
type StomachFullness string

const (
	StomachEmpty    StomachFullness = "EMPTY"
	StomachHalfFull StomachFullness = "HALF_FULL"
	StomachFull     StomachFullness = "FULL"
	StomachVeryFull StomachFullness = "VERY_FULL"
)

// OnsetDelay is the expected extra time before effects start.
func (s StomachFullness) OnsetDelay() time.Duration {
	switch s {
	case StomachHalfFull:
		return 90 * time.Minute
	case StomachFull:
		return 3 * time.Hour
	case StomachVeryFull:
		return 4 * time.Hour
	default:
		return 0
	}
}

// ShulginRatingOption is a point on the Shulgin rating scale.
type ShulginRatingOption string

const (
	RatingMinus     ShulginRatingOption = "MINUS"
	RatingPlusMinus ShulginRatingOption = "PLUS_MINUS"
	RatingPlus      ShulginRatingOption = "PLUS"
	RatingTwoPlus   ShulginRatingOption = "TWO_PLUS"
	RatingThreePlus ShulginRatingOption = "THREE_PLUS"
	RatingFourPlus  ShulginRatingOption = "FOUR_PLUS"
)

var ratingSigns = map[ShulginRatingOption]string{
	RatingMinus:     "-",
	RatingPlusMinus: "±",
	RatingPlus:      "+",
	RatingTwoPlus:   "++",
	RatingThreePlus: "+++",
	RatingFourPlus:  "++++",
}

func (o ShulginRatingOption) Sign() string {
	return ratingSigns[o]
}

func (o ShulginRatingOption) Valid() bool {
	_, ok := ratingSigns[o]
	return ok
}

// AdaptiveColor is a palette entry assigned to substances and notes.
type AdaptiveColor string

const (
	ColorRed         AdaptiveColor = "RED"
	ColorOrange      AdaptiveColor = "ORANGE"
	ColorYellow      AdaptiveColor = "YELLOW"
	ColorGreen       AdaptiveColor = "GREEN"
	ColorMint        AdaptiveColor = "MINT"
	ColorTeal        AdaptiveColor = "TEAL"
	ColorCyan        AdaptiveColor = "CYAN"
	ColorBlue        AdaptiveColor = "BLUE"
	ColorIndigo      AdaptiveColor = "INDIGO"
	ColorPurple      AdaptiveColor = "PURPLE"
	ColorPink        AdaptiveColor = "PINK"
	ColorBrown       AdaptiveColor = "BROWN"
	ColorFireRed     AdaptiveColor = "FIRE_ENGINE_RED"
	ColorCoral       AdaptiveColor = "CORAL"
	ColorGold        AdaptiveColor = "GOLD"
	ColorDeepPink    AdaptiveColor = "DEEP_PINK"
	ColorOlive       AdaptiveColor = "OLIVE"
	ColorDodgerBlue  AdaptiveColor = "DODGER_BLUE"
	ColorSeaGreen    AdaptiveColor = "SEA_GREEN"
	ColorSlateBlue   AdaptiveColor = "SLATE_BLUE"
	ColorMagenta     AdaptiveColor = "MAGENTA"
	ColorLavender    AdaptiveColor = "LAVENDER"
	ColorSaddleBrown AdaptiveColor = "SADDLE_BROWN"
	ColorTomato      AdaptiveColor = "TOMATO"
)

// Palette is ordered; PickColor walks it front to back.
var Palette = []AdaptiveColor{
	ColorBlue, ColorGreen, ColorOrange, ColorPurple, ColorRed, ColorYellow,
	ColorPink, ColorTeal, ColorIndigo, ColorMint, ColorCyan, ColorBrown,
	ColorFireRed, ColorCoral, ColorGold, ColorDeepPink, ColorOlive, ColorDodgerBlue,
	ColorSeaGreen, ColorSlateBlue, ColorMagenta, ColorLavender, ColorSaddleBrown, ColorTomato,
}

// PickColor returns the first palette color not in used. When every color is
// taken it cycles by the number of used colors.
func PickColor(used []AdaptiveColor) AdaptiveColor {
	taken := make(map[AdaptiveColor]struct{}, len(used))
	for _, c := range used {
		taken[c] = struct{}{}
	}
	for _, c := range Palette {
		if _, ok := taken[c]; !ok {
			return c
		}
	}
	return Palette[len(used)%len(Palette)]
}

// RepeatPolicy controls how often a reminder fires.
type RepeatPolicy string

const (
	RepeatOnce   RepeatPolicy = "ONCE"
	RepeatDaily  RepeatPolicy = "DAILY"
	RepeatWeekly RepeatPolicy = "WEEKLY"
)

func (p RepeatPolicy) Valid() bool {
	return p == RepeatOnce || p == RepeatDaily || p == RepeatWeekly
}
