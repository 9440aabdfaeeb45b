package deck

import (
	"fmt"

	"github.com/paulhankin/poker"
)

// Score ranks a made hand; higher is stronger
type Score int16

func toPH(c Card) (poker.Card, error) {
	var s poker.Suit
	switch c.Suit {
	case Clubs:
		s = poker.Club
	case Diamonds:
		s = poker.Diamond
	case Hearts:
		s = poker.Heart
	case Spades:
		s = poker.Spade
	default:
		var zero poker.Card
		return zero, fmt.Errorf("invalid suit %d", c.Suit)
	}
	// paulhankin/poker counts the ace as rank 1
	r := poker.Rank(c.Rank)
	if c.Rank == Ace {
		r = poker.Rank(1)
	}
	return poker.MakeCard(s, r)
}

func convert(cards []Card) ([]poker.Card, error) {
	out := make([]poker.Card, len(cards))
	for i, c := range cards {
		pc, err := toPH(c)
		if err != nil {
			return nil, err
		}
		out[i] = pc
	}
	return out, nil
}

// Best returns the score of the best five-card hand that can be made from cards
func Best(cards []Card) (Score, error) {
	if len(cards) < 5 {
		return 0, fmt.Errorf("need at least 5 cards, got %d", len(cards))
	}
	pcs, err := convert(cards)
	if err != nil {
		return 0, err
	}
	if len(pcs) == 7 {
		var a7 [7]poker.Card
		copy(a7[:], pcs)
		return Score(poker.Eval7(&a7)), nil
	}
	score, _ := bestFive(pcs)
	return score, nil
}

// BestOmaha scores a hand that must use exactly two hole cards and three board cards
func BestOmaha(hole, board []Card) (Score, error) {
	if len(hole) < 2 || len(board) < 3 {
		return 0, fmt.Errorf("omaha needs 2+ hole and 3+ board cards, got %d and %d", len(hole), len(board))
	}
	ph, err := convert(hole)
	if err != nil {
		return 0, err
	}
	pb, err := convert(board)
	if err != nil {
		return 0, err
	}

	best := Score(-1 << 15)
	var five [5]poker.Card
	for a := 0; a < len(ph); a++ {
		for b := a + 1; b < len(ph); b++ {
			for x := 0; x < len(pb); x++ {
				for y := x + 1; y < len(pb); y++ {
					for z := y + 1; z < len(pb); z++ {
						five = [5]poker.Card{ph[a], ph[b], pb[x], pb[y], pb[z]}
						if s := Score(poker.Eval5(&five)); s > best {
							best = s
						}
					}
				}
			}
		}
	}
	return best, nil
}

// Describe names the best five-card hand in cards in short notation, such
// as "KK-Q-J-7" or "A straight". It returns "" unless cards holds five to
// seven valid cards.
func Describe(cards []Card) string {
	if len(cards) < 5 || len(cards) > 7 {
		return ""
	}
	pcs, err := convert(cards)
	if err != nil {
		return ""
	}
	if len(pcs) == 6 {
		_, five := bestFive(pcs)
		pcs = five[:]
	}
	desc, err := poker.Describe(pcs)
	if err != nil {
		return ""
	}
	return desc
}

func bestFive(pcs []poker.Card) (Score, [5]poker.Card) {
	best := Score(-1 << 15)
	var hand [5]poker.Card
	n := len(pcs)
	var five [5]poker.Card
	var choose [5]int
	var rec func(start, k int)
	rec = func(start, k int) {
		if k == 5 {
			for i := range five {
				five[i] = pcs[choose[i]]
			}
			if s := Score(poker.Eval5(&five)); s > best {
				best, hand = s, five
			}
			return
		}
		for i := start; i <= n-(5-k); i++ {
			choose[k] = i
			rec(i+1, k+1)
		}
	}
	rec(0, 0)
	return best, hand
}
