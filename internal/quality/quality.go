// Package quality picks the best available rendition of a platform-hosted
// video for a preferred quality tier.
package quality

// Tier is a platform video rendition tier. Lower value = higher quality, so
// the zero value (UltraHD) is never accidentally "worst".
type Tier int

const (
	UltraHD Tier = iota
	QuadHD
	FullHD
	High
	Medium
	Low
	Tiny
	Lowest
)

// rank gives the total order from spec.md §4.2: ultra_hd > quad_hd > full_hd
// > high > medium > low > tiny > lowest. Adaptive/live/streaming tiers are
// intentionally absent — they are excluded from ranking (spec.md §9).
var rank = map[Tier]int{
	UltraHD: 0,
	QuadHD:  1,
	FullHD:  2,
	High:    3,
	Medium:  4,
	Low:     5,
	Tiny:    6,
	Lowest:  7,
}

// Rendition is one encoded variant of a platform video.
type Rendition struct {
	Tier Tier
	URL  string
}

// Best returns the rendition closest to preferred without exceeding it (i.e.
// the highest quality that is preferred-or-lower); if none is at or below
// preferred, it returns the lowest tier above preferred; if no rendition has
// a non-empty URL, it returns false.
func Best(renditions []Rendition, preferred Tier) (Rendition, bool) {
	var (
		bestAtOrBelow    Rendition
		haveAtOrBelow    bool
		bestAboveRankMin = -1
		bestAbove        Rendition
		haveAbove        bool
	)

	for _, r := range renditions {
		if r.URL == "" {
			continue
		}
		rk, ok := rank[r.Tier]
		if !ok {
			continue // adaptive/live/streaming tiers excluded from ranking
		}
		prk := rank[preferred]

		if rk >= prk {
			// At or above (numerically) preferred quality == at-or-below in
			// visual quality ranking (lower rank number = higher quality).
			if !haveAtOrBelow || rk < rank[bestAtOrBelow.Tier] {
				bestAtOrBelow = r
				haveAtOrBelow = true
			}
			continue
		}
		// rk < prk means this rendition is strictly higher quality than
		// preferred — a candidate only if nothing at-or-below exists.
		if bestAboveRankMin == -1 || rk > bestAboveRankMin {
			bestAboveRankMin = rk
			bestAbove = r
			haveAbove = true
		}
	}

	if haveAtOrBelow {
		return bestAtOrBelow, true
	}
	if haveAbove {
		return bestAbove, true
	}
	return Rendition{}, false
}
