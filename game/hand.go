package game

import "sort"

type HandKind int

const (
	HighCard HandKind = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

var handKindNames = map[HandKind]string{
	HighCard:      "high card",
	OnePair:       "one pair",
	TwoPair:       "two pair",
	ThreeOfAKind:  "three of a kind",
	Straight:      "straight",
	Flush:         "flush",
	FullHouse:     "full house",
	FourOfAKind:   "four of a kind",
	StraightFlush: "straight flush",
}

func (k HandKind) String() string {
	return handKindNames[k]
}

// Hand is a classified five-card hand. Ranks holds the ordering fields most
// significant first, e.g. for one pair: the pair's rank, then the kickers
// descending. Two hands are equal only if kind and every field match.
type Hand struct {
	Kind  HandKind `json:"kind"`
	Ranks []int    `json:"ranks"`
}

// EvaluateHand classifies exactly five cards.
func EvaluateHand(cards []Card) Hand {
	ranks := make([]int, len(cards))
	counts := make(map[int]int, 5)
	flush := true
	for i, c := range cards {
		ranks[i] = c.Rank
		counts[c.Rank]++
		if c.Suit != cards[0].Suit {
			flush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	straightHigh := straightHighCard(ranks)
	straight := straightHigh != 0

	switch {
	case straight && flush:
		return Hand{Kind: StraightFlush, Ranks: []int{straightHigh}}
	case flush:
		return Hand{Kind: Flush, Ranks: ranks}
	case straight:
		return Hand{Kind: Straight, Ranks: []int{straightHigh}}
	}

	// Group ranks by multiplicity, higher counts first, ties by rank.
	type group struct{ rank, count int }
	groups := make([]group, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, group{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	fields := make([]int, 0, len(groups))
	for _, g := range groups {
		fields = append(fields, g.rank)
	}

	switch {
	case groups[0].count == 4:
		return Hand{Kind: FourOfAKind, Ranks: fields}
	case groups[0].count == 3 && groups[1].count == 2:
		return Hand{Kind: FullHouse, Ranks: fields}
	case groups[0].count == 3:
		return Hand{Kind: ThreeOfAKind, Ranks: fields}
	case groups[0].count == 2 && groups[1].count == 2:
		return Hand{Kind: TwoPair, Ranks: fields}
	case groups[0].count == 2:
		return Hand{Kind: OnePair, Ranks: fields}
	default:
		return Hand{Kind: HighCard, Ranks: ranks}
	}
}

// straightHighCard returns the high card of a straight formed by the given
// descending ranks, or 0 if they do not form one. The wheel (A-2-3-4-5)
// counts as a five-high straight: the ace drops below the two.
func straightHighCard(desc []int) int {
	for i := 1; i < len(desc); i++ {
		if desc[i] != desc[i-1]-1 {
			// Wheel: A,5,4,3,2 descending.
			if i == 1 && desc[0] == RankAce && desc[1] == 5 {
				continue
			}
			return 0
		}
	}
	if desc[0] == RankAce && desc[1] == 5 {
		return 5
	}
	return desc[0]
}

// BestHand returns the maximum hand over every five-card subset of the given
// cards. For the seven cards of a showdown that is all C(7,5)=21 subsets.
func BestHand(cards []Card) Hand {
	n := len(cards)
	if n <= 5 {
		return EvaluateHand(cards)
	}

	var best Hand
	first := true
	pick := make([]Card, 5)
	for a := 0; a < n-4; a++ {
		pick[0] = cards[a]
		for b := a + 1; b < n-3; b++ {
			pick[1] = cards[b]
			for c := b + 1; c < n-2; c++ {
				pick[2] = cards[c]
				for d := c + 1; d < n-1; d++ {
					pick[3] = cards[d]
					for e := d + 1; e < n; e++ {
						pick[4] = cards[e]
						h := EvaluateHand(pick)
						if first || CompareHands(h, best) > 0 {
							best = h
							first = false
						}
					}
				}
			}
		}
	}
	return best
}

// CompareHands is a total order: kind first, then the ordering fields left to
// right. Returns <0, 0 or >0.
func CompareHands(a, b Hand) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	for i := 0; i < len(a.Ranks) && i < len(b.Ranks); i++ {
		if a.Ranks[i] != b.Ranks[i] {
			return a.Ranks[i] - b.Ranks[i]
		}
	}
	return 0
}
