package game

import "math/rand"

const (
	RankTwo   = 2
	RankJack  = 11
	RankQueen = 12
	RankKing  = 13
	RankAce   = 14
)

const (
	SuitClubs    = "clubs"
	SuitDiamonds = "diamonds"
	SuitHearts   = "hearts"
	SuitSpades   = "spades"
)

// Card is one playing card. Ranks run 2..14 with the ace high; the ace is
// only treated as low inside the hand evaluator's wheel-straight case.
type Card struct {
	Rank int    `json:"rank"`
	Suit string `json:"suit"`
}

var suits = [4]string{SuitClubs, SuitDiamonds, SuitHearts, SuitSpades}

func newDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range suits {
		for rank := RankTwo; rank <= RankAce; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// draw removes and returns the top n cards.
func draw(deck []Card, n int) ([]Card, []Card) {
	return deck[:n:n], deck[n:]
}
