package battle

// Element types.
const (
	TypeFire     = "fire"
	TypeWater    = "water"
	TypeGrass    = "grass"
	TypeElectric = "electric"
	TypeLight    = "light"
	TypeDark     = "dark"
	TypeRock     = "rock"
	TypeIce      = "ice"
)

// Effectiveness multipliers.
const (
	EffSuper   = 1.5
	EffNeutral = 1.0
	EffResist  = 0.6
)

var superEffective = map[string][]string{
	TypeFire:     {TypeGrass, TypeIce},
	TypeWater:    {TypeFire, TypeRock},
	TypeGrass:    {TypeWater, TypeRock},
	TypeElectric: {TypeWater},
	TypeLight:    {TypeDark},
	TypeDark:     {TypeLight},
	TypeRock:     {TypeFire, TypeElectric, TypeIce},
	TypeIce:      {TypeGrass},
}

var resisted = map[string][]string{
	TypeFire:     {TypeWater, TypeRock},
	TypeWater:    {TypeGrass, TypeIce},
	TypeGrass:    {TypeFire},
	TypeElectric: {TypeGrass, TypeRock},
	TypeRock:     {TypeWater, TypeGrass},
	TypeIce:      {TypeFire, TypeWater},
}

func has(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Eff returns the multiplier of an attack type against a single defender
// type.
func Eff(attack, defender string) float64 {
	switch {
	case has(superEffective[attack], defender):
		return EffSuper
	case has(resisted[attack], defender):
		return EffResist
	default:
		return EffNeutral
	}
}

// DualEff returns the best multiplier of attack across all defender types:
// a hit on any weakness counts. No defender types is neutral.
func DualEff(attack string, defenders []string) float64 {
	if len(defenders) == 0 {
		return EffNeutral
	}
	best := Eff(attack, defenders[0])
	for _, d := range defenders[1:] {
		if m := Eff(attack, d); m > best {
			best = m
		}
	}
	return best
}
