package credit

import "fmt"

// Job costs are a static lookup so the price is predictable before a job
// starts. Keys match the pipeline job kinds.
var jobCosts = map[string]float64{
	"generate": 10,
	"rewrite":  5,
	"review":   15,
}

// ExtraImageCost is the surcharge per requested image beyond the defaults.
const ExtraImageCost = 2

// CostFor returns the fixed cost of a job kind plus any extra-image
// surcharge.
func CostFor(kind string, extraImages int) (float64, error) {
	base, ok := jobCosts[kind]
	if !ok {
		return 0, fmt.Errorf("no cost defined for job kind %q", kind)
	}
	if extraImages < 0 {
		extraImages = 0
	}
	return base + float64(extraImages)*ExtraImageCost, nil
}
