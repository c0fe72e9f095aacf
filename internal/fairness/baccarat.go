package fairness

import "strconv"

const DeckSize = 52

type Suit string

const (
	Clubs    Suit = "clubs"
	Diamonds Suit = "diamonds"
	Hearts   Suit = "hearts"
	Spades   Suit = "spades"
)

var suits = [4]Suit{Clubs, Diamonds, Hearts, Spades}

// Card ranks run 1 (ace) to 13 (king).
type Card struct {
	Rank int  `json:"rank"`
	Suit Suit `json:"suit"`
}

// CardAt returns the card at index i of the ordered deck: suits in
// clubs, diamonds, hearts, spades order, ace to king within a suit.
func CardAt(i int) Card {
	return Card{Rank: i%13 + 1, Suit: suits[i/13]}
}

// Value is the baccarat point value; tens and faces count zero.
func (c Card) Value() int {
	if c.Rank >= 10 {
		return 0
	}
	return c.Rank
}

func (c Card) String() string {
	var r string
	switch c.Rank {
	case 1:
		r = "A"
	case 11:
		r = "J"
	case 12:
		r = "Q"
	case 13:
		r = "K"
	default:
		r = strconv.Itoa(c.Rank)
	}
	return r + string(c.Suit[:1])
}

type BaccaratWinner string

const (
	WinnerPlayer BaccaratWinner = "player"
	WinnerBanker BaccaratWinner = "banker"
	WinnerTie    BaccaratWinner = "tie"
)

type BaccaratOutcome struct {
	PlayerCards []Card         `json:"player_cards"`
	BankerCards []Card         `json:"banker_cards"`
	PlayerScore int            `json:"player_score"`
	BankerScore int            `json:"banker_score"`
	Natural     bool           `json:"natural"`
	Winner      BaccaratWinner `json:"winner"`
}

// DecodeBaccarat shuffles a fresh deck with the shared shuffle and deals one
// coup from it.
func DecodeBaccarat(src Source, _ GameConfig) BaccaratOutcome {
	perm := Shuffle(src, DeckSize)
	shoe := make([]Card, len(perm))
	for i, idx := range perm {
		shoe[i] = CardAt(idx)
	}
	return DealBaccarat(shoe)
}

// DealBaccarat plays one coup from the top of shoe, which needs at least six
// cards. Player takes shoe[0] and shoe[2], banker shoe[1] and shoe[3]; third
// cards follow the tableau.
func DealBaccarat(shoe []Card) BaccaratOutcome {
	player := []Card{shoe[0], shoe[2]}
	banker := []Card{shoe[1], shoe[3]}
	next := 4

	ps, bs := BaccaratScore(player), BaccaratScore(banker)
	natural := ps >= 8 || bs >= 8
	if !natural {
		var playerThird *Card
		if ps <= 5 {
			c := shoe[next]
			next++
			player = append(player, c)
			playerThird = &c
		}
		if bankerDraws(bs, playerThird) {
			banker = append(banker, shoe[next])
		}
		ps, bs = BaccaratScore(player), BaccaratScore(banker)
	}

	out := BaccaratOutcome{
		PlayerCards: player,
		BankerCards: banker,
		PlayerScore: ps,
		BankerScore: bs,
		Natural:     natural,
	}
	switch {
	case ps > bs:
		out.Winner = WinnerPlayer
	case bs > ps:
		out.Winner = WinnerBanker
	default:
		out.Winner = WinnerTie
	}
	return out
}

func BaccaratScore(hand []Card) int {
	sum := 0
	for _, c := range hand {
		sum += c.Value()
	}
	return sum % 10
}

func bankerDraws(bankerScore int, playerThird *Card) bool {
	if playerThird == nil {
		return bankerScore <= 5
	}
	v := playerThird.Value()
	switch {
	case bankerScore <= 2:
		return true
	case bankerScore == 3:
		return v != 8
	case bankerScore == 4:
		return v >= 2 && v <= 7
	case bankerScore == 5:
		return v >= 4 && v <= 7
	case bankerScore == 6:
		return v == 6 || v == 7
	default:
		return false
	}
}
