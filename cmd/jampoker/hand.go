package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Mappledude/jampoker/cmd/jampoker/shared"
	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
)

type HandCmd struct {
	Show HandShowCmd `cmd:"" help:"Show the current hand at a table"`
}

type HandShowCmd struct {
	Table string `arg:"" help:"Table id"`
	Holes bool   `help:"Show every seat's hole cards"`
}

func (c *HandShowCmd) Run(g *Globals) error {
	cfg, _, err := g.load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := shared.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	seats, err := st.Seats(ctx, c.Table)
	if err != nil {
		return err
	}
	hs, err := st.Hand(ctx, c.Table)
	if err != nil {
		return fmt.Errorf("table %s has no hand: %w", c.Table, err)
	}
	fmt.Println(renderHand(hs, seats, c.Holes))
	return nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	boardStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	toActStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10")).
			Padding(0, 1)

	foldedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Padding(0, 1)

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
)

func prettyCards(cards []deck.Card) string {
	if len(cards) == 0 {
		return "-"
	}
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.Pretty()
	}
	return strings.Join(parts, " ")
}

func position(hs *game.HandState, seat int) string {
	var marks []string
	if seat == hs.DealerSeat {
		marks = append(marks, "D")
	}
	if seat == hs.SBSeat {
		marks = append(marks, "SB")
	}
	if seat == hs.BBSeat {
		marks = append(marks, "BB")
	}
	return strings.Join(marks, "/")
}

func seatState(hs *game.HandState, seats game.Seats, seat int) string {
	s := seats[seat]
	switch {
	case !hs.InHand(seat):
		return "out"
	case hs.Folded[seat]:
		return "folded"
	case !hs.IsComplete() && seat == hs.ToActSeat:
		return "to act"
	case s.Stack == 0:
		return "all-in"
	case s.Leaving:
		return "leaving"
	}
	return ""
}

// madeHand names a holdem seat's best hand with the board; omaha hands are
// not described
func madeHand(hs *game.HandState, seat int) string {
	hole := hs.Holes[seat]
	if hs.Variant == game.Omaha || len(hole) != 2 {
		return ""
	}
	return deck.Describe(append(append([]deck.Card(nil), hole...), hs.Board...))
}

// renderHand draws a hand and the seats around it. Hole cards are only
// drawn when holes is set.
func renderHand(hs *game.HandState, seats game.Seats, holes bool) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Table %s · hand #%d · %s · v%d",
		hs.TableID, hs.HandNo, hs.Street, hs.Version)))
	b.WriteString("\n")
	b.WriteString("Board " + boardStyle.Render(prettyCards(hs.Board)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Pot %d · to match %d · min raise %d", hs.Pot, hs.BetToMatch, hs.MinRaise))
	b.WriteString("\n")

	headers := []string{"SEAT", "POS", "PLAYER", "STACK", "STREET", "HAND", "STATE"}
	if holes {
		headers = append(headers, "CARDS")
	}

	states := make(map[int]string)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...)

	sorted := seats.Sorted()
	for _, s := range sorted {
		if !s.Occupied() && !hs.InHand(s.Index) {
			continue
		}
		state := seatState(hs, seats, s.Index)
		states[len(states)] = state
		row := []string{
			strconv.Itoa(s.Index),
			position(hs, s.Index),
			s.Occupant,
			strconv.Itoa(s.Stack),
			strconv.Itoa(hs.Commits[s.Index]),
			strconv.Itoa(hs.HandCommits[s.Index]),
			state,
		}
		if holes {
			row = append(row, prettyCards(hs.Holes[s.Index]))
		}
		t.Row(row...)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case states[row] == "to act":
			return toActStyle
		case states[row] == "folded" || states[row] == "out":
			return foldedStyle
		}
		return cellStyle
	})
	b.WriteString(t.String())

	if len(hs.Payouts) > 0 {
		b.WriteString("\n")
		shown := len(hs.Contenders()) > 1
		for _, seat := range hs.Players {
			won, ok := hs.Payouts[seat]
			if !ok {
				continue
			}
			line := fmt.Sprintf("Seat %d wins %d", seat, won)
			if desc := madeHand(hs, seat); shown && desc != "" {
				line += " with " + desc
			}
			b.WriteString(winStyle.Render(line))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
