package quality

import (
	"fmt"
	"sort"
)

// Tier is one rung of the quality ladder. MaxHeight 0 means no height cap.
type Tier struct {
	MaxHeight int
}

func (t Tier) Label() string {
	if t.MaxHeight <= 0 {
		return "best"
	}
	return fmt.Sprintf("%dp", t.MaxHeight)
}

// Selector builds a yt-dlp format selector for the tier. The filesize filter lets yt-dlp skip
// formats it already knows are too big; the unfiltered fallbacks keep formats with unknown size eligible.
func (t Tier) Selector(sizeLimit int64) string {
	height := ""
	if t.MaxHeight > 0 {
		height = fmt.Sprintf("[height<=?%d]", t.MaxHeight)
	}
	size := ""
	if sizeLimit > 0 {
		size = fmt.Sprintf("[filesize<?%d]", sizeLimit)
	}
	return fmt.Sprintf("b%s%s[ext=mp4]/b%s%s/bv*%s+ba/b%s", height, size, height, size, height, height)
}

// Ladder is a descending list of tiers; index 0 is tried first.
type Ladder []Tier

// NewLadder sorts heights descending and drops duplicates. An unbounded height (0) sorts first.
func NewLadder(heights []int) Ladder {
	seen := make(map[int]struct{}, len(heights))
	uniq := make([]int, 0, len(heights))
	for _, h := range heights {
		if h < 0 {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		uniq = append(uniq, h)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i] == 0 || uniq[j] == 0 {
			return uniq[i] == 0 && uniq[j] != 0
		}
		return uniq[i] > uniq[j]
	})

	ladder := make(Ladder, 0, len(uniq))
	for _, h := range uniq {
		ladder = append(ladder, Tier{MaxHeight: h})
	}
	if len(ladder) == 0 {
		ladder = append(ladder, Tier{})
	}
	return ladder
}

// Next returns the tier after i, or false when i is the lowest.
func (l Ladder) Next(i int) (Tier, bool) {
	if i+1 >= len(l) {
		return Tier{}, false
	}
	return l[i+1], true
}
