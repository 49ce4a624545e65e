package profile

import "strings"

// DetectDomain picks the registered profile whose vocabulary (field IDs,
// display names, seed synonyms) scores the most hits against the document
// text. Used when a run is submitted with domain "AUTO". Ties resolve to the
// earliest domain in Domains() order, so SaaS is the overall fallback.
func DetectDomain(text string) string {
	lower := strings.ToLower(text)

	best := DomainSaaS
	bestScore := -1
	for _, domain := range Domains() {
		p := GetProfile(domain)
		score := 0
		for _, f := range p.Fields {
			if strings.Contains(lower, strings.ToLower(f.Name)) {
				score += 2
			}
			if strings.Contains(lower, strings.ReplaceAll(f.ID, "_", " ")) {
				score++
			}
			for _, syn := range p.SynonymsSeed[f.ID] {
				if strings.Contains(lower, strings.ReplaceAll(strings.ToLower(syn), "_", " ")) {
					score++
				}
			}
		}
		if score > bestScore {
			best = domain
			bestScore = score
		}
	}
	return best
}
