package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/coder/quartz"

	"github.com/Mappledude/jampoker/cmd/jampoker/shared"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/server"
	"github.com/Mappledude/jampoker/internal/store"
)

type TableCmd struct {
	Create TableCreateCmd `cmd:"" help:"Create a table"`
	List   TableListCmd   `cmd:"" help:"List tables"`
}

type TableCreateCmd struct {
	ID         string `arg:"" help:"Table id"`
	Variant    string `default:"holdem" enum:"holdem,omaha" help:"Game variant"`
	SmallBlind int    `default:"25" help:"Small blind in cents"`
	BigBlind   int    `default:"50" help:"Big blind in cents"`
	MaxSeats   int    `default:"6" help:"Number of seats"`
	Operator   string `help:"Player id allowed to force streets and showdowns"`
}

func (c *TableCreateCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}

	// Reuse the config file's validation rules for a single table
	tc := server.TableConfig{
		ID:         c.ID,
		Variant:    c.Variant,
		SmallBlind: c.SmallBlind,
		BigBlind:   c.BigBlind,
		MaxSeats:   c.MaxSeats,
		Operator:   c.Operator,
	}
	check := *cfg
	check.Tables = []server.TableConfig{tc}
	if err := check.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := shared.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateTable(ctx, tc.Table(quartz.NewReal().Now().UTC())); err != nil {
		return fmt.Errorf("create table %s: %w", c.ID, err)
	}
	logger.Info("Created table", "table", c.ID, "variant", c.Variant,
		"stakes", fmt.Sprintf("%d/%d", c.SmallBlind, c.BigBlind), "seats", c.MaxSeats)
	return nil
}

type TableListCmd struct{}

func (c *TableListCmd) Run(g *Globals) error {
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

	tables, err := st.Tables(ctx)
	if err != nil {
		return err
	}
	fmt.Println(renderTables(tables))
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

func renderTables(tables []store.Table) string {
	if len(tables) == 0 {
		return dimStyle.Render("no tables")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "VARIANT", "STAKES", "SEATS", "HANDS", "BUTTON", "OPERATOR").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, tbl := range tables {
		button := "-"
		if tbl.DealerSeat != game.NoSeat {
			button = strconv.Itoa(tbl.DealerSeat)
		}
		operator := tbl.Operator
		if operator == "" {
			operator = "-"
		}
		t.Row(
			tbl.ID,
			string(tbl.Variant),
			fmt.Sprintf("%d/%d", tbl.SmallBlind, tbl.BigBlind),
			strconv.Itoa(tbl.MaxSeats),
			strconv.Itoa(tbl.HandNo),
			button,
			operator,
		)
	}
	return t.String()
}
