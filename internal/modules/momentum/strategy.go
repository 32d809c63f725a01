package momentum

import (
	"fmt"
	"sort"
)

// Verdict is the labelled reading of a momentum Z-score
type Verdict struct {
	Signal        string `json:"signal"`
	Action        string `json:"action"`
	Justification string `json:"justification"`
}

// Strategy maps a momentum Z-score to a verdict.
// Both shipped strategies are valid policies; callers pick one by name.
type Strategy interface {
	Name() string
	Classify(z, momentum float64) Verdict
}

const (
	StrategyCoarse = "coarse"
	StrategyFine   = "fine"
)

// DefaultStrategy is used when no strategy is requested
const DefaultStrategy = StrategyFine

// CoarseStrategy uses four directional buckets. The neutral band is split
// by the sign of the momentum itself.
type CoarseStrategy struct{}

func (CoarseStrategy) Name() string { return StrategyCoarse }

func (CoarseStrategy) Classify(z, momentum float64) Verdict {
	switch {
	case z > 2:
		return Verdict{"Très haussier", "Renforcer / Acheter", "Accélération nette au-dessus de la tendance"}
	case z > 1.5:
		return Verdict{"Haussier", "Acheter", "Momentum positif au-dessus de la normale"}
	case z < -2:
		return Verdict{"Très baissier", "Renforcer la vente", "Décrochage net sous la tendance"}
	case z < -1.5:
		return Verdict{"Baissier", "Vendre", "Momentum négatif sous la normale"}
	case momentum >= 0:
		return Verdict{"Neutre haussier", "Conserver", "Cours au-dessus de sa moyenne 39 semaines"}
	default:
		return Verdict{"Neutre baissier", "Surveiller", "Cours sous sa moyenne 39 semaines"}
	}
}

// FineStrategy uses six buckets from overheated to oversold.
type FineStrategy struct{}

func (FineStrategy) Name() string { return StrategyFine }

func (FineStrategy) Classify(z, _ float64) Verdict {
	switch {
	case z > 2:
		return Verdict{"Surchauffe", "Alléger / Prendre profits", "Momentum extrême, risque de retournement"}
	case z > 1.5:
		return Verdict{"Fort", "Surveiller", "Momentum soutenu, proche de surchauffe"}
	case z > 0.5:
		return Verdict{"Haussier", "Conserver / Renforcer", "Momentum sain"}
	case z > -0.5:
		return Verdict{"Neutre", "Ne rien faire", "Pas de signal exploitable"}
	case z > -1.5:
		return Verdict{"Faible", "Surveiller / Réduire si confirmé", "Dynamique en affaiblissement"}
	default:
		return Verdict{"Survendu", "Acheter / Renforcer (si signal technique)", "Purge excessive, possible bas de cycle"}
	}
}

var strategies = map[string]Strategy{
	StrategyCoarse: CoarseStrategy{},
	StrategyFine:   FineStrategy{},
}

// StrategyByName returns the named strategy. An empty name gives the default.
func StrategyByName(name string) (Strategy, error) {
	if name == "" {
		name = DefaultStrategy
	}
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown momentum strategy %q", name)
	}
	return s, nil
}

// StrategyNames lists the registered strategies
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for n := range strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
