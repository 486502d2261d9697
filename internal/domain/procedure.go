package domain

// Procedure is the structured breakdown of a set of synthesis instructions:
// an ordered list of steps plus recommended glassware, materials and safety
// warnings. A new breakdown replaces it wholesale; it is never partially
// mutated.
type Procedure struct {
	Steps     []string `json:"detailedSteps"`
	Glassware []string `json:"recommendedGlassware"`
	Materials []string `json:"recommendedMaterials"`
	Warnings  []string `json:"safetyWarnings"`
}

// Empty reports whether the breakdown produced no structured content at all.
// This is a valid result, distinct from a failure; the UI shows a notice
// suggesting the user rephrase.
func (p *Procedure) Empty() bool {
	return len(p.Steps) == 0 &&
		len(p.Glassware) == 0 &&
		len(p.Materials) == 0 &&
		len(p.Warnings) == 0
}
