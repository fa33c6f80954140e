package habits

import (
	"context"
	"fmt"

	"github.com/julianstephens/daystreak/internal/cli"
	errs "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/validation"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits with today's status."`
	Done   HabitDoneCmd   `cmd:"" help:"Mark a habit as done for today."`
	Remove HabitRemoveCmd `cmd:"" aliases:"rm" help:"Delete a habit."`
}

// open prepares the context and loads the signed-in user's habits.
func open(ctx *cli.Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}
	return ctx.Habits.Load(context.Background())
}

type HabitAddCmd struct {
	Name     string `arg:"" help:"Habit name."`
	Category string `help:"One of general, study, exercise, health, work, personal." short:"c" default:"general"`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	category, err := models.ParseCategory(c.Category)
	if err != nil {
		return errs.New(errs.KindValidation, "add habit", &validation.FieldError{Field: "Category", Rule: "category"})
	}

	if err := ctx.Open(context.Background()); err != nil {
		return err
	}
	habit, err := ctx.Habits.Add(context.Background(), c.Name, category)
	if err != nil {
		return err
	}

	fmt.Printf("Added habit: %s [%s]\n", habit.Name, habit.Category)
	return nil
}

type HabitListCmd struct {
	Category string `help:"Only show habits in this category." short:"c"`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	var category models.Category
	if c.Category != "" {
		parsed, err := models.ParseCategory(c.Category)
		if err != nil {
			return errs.New(errs.KindValidation, "list habits", &validation.FieldError{Field: "Category", Rule: "category"})
		}
		category = parsed
	}

	if err := open(ctx); err != nil {
		return err
	}

	fmt.Println(cli.RenderHabits(ctx.Habits.Filter(category)))
	return nil
}

type HabitDoneCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitDoneCmd) Run(ctx *cli.Context) error {
	if err := open(ctx); err != nil {
		return err
	}

	id, _ := ctx.ResolveHabit(c.Habit)
	before := ctx.Habits.Habits()
	view, err := ctx.Habits.ToggleComplete(context.Background(), id)
	if err != nil {
		return err
	}

	for _, b := range before {
		if b.ID == view.ID && b.CompletedToday {
			fmt.Printf("%s is already done today (streak: %d)\n", view.Name, view.Streak)
			return nil
		}
	}
	fmt.Printf("Done: %s (streak: %d)\n", view.Name, view.Streak)
	return nil
}

type HabitRemoveCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitRemoveCmd) Run(ctx *cli.Context) error {
	if err := open(ctx); err != nil {
		return err
	}

	id, found := ctx.ResolveHabit(c.Habit)
	if err := ctx.Habits.Remove(context.Background(), id); err != nil {
		return err
	}

	if !found {
		fmt.Printf("No habit matching %q\n", c.Habit)
		return nil
	}
	fmt.Printf("Removed habit %s\n", c.Habit)
	return nil
}
