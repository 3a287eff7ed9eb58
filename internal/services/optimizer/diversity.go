package optimizer

import "costguardian/internal/domain/optimization"

// ApplyProviderDiversity swaps the third entry for the best entry from
// another provider when the top three share one provider. The input must
// be sorted by score; the result is a new slice.
func ApplyProviderDiversity(scores []optimization.ModelScore) []optimization.ModelScore {
	out := append([]optimization.ModelScore(nil), scores...)
	if len(out) < 4 {
		return out
	}

	provider := out[0].Provider
	if out[1].Provider != provider || out[2].Provider != provider {
		return out
	}

	for i := 3; i < len(out); i++ {
		if out[i].Provider != provider {
			out[2], out[i] = out[i], out[2]
			break
		}
	}
	return out
}
