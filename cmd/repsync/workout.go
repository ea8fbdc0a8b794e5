package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
	"github.com/liftlog/repsync/internal/ui"
)

var workoutTypes = []string{"strength", "cardio", "mobility", "other"}

var workoutCmd = &cobra.Command{
	Use:     "workout",
	GroupID: "data",
	Short:   "Manage saved workouts",
	Long: fmt.Sprintf(`Manage saved workout templates.

You can keep up to %d saved workouts with up to %d exercises each.
Exercises are written as "Name: SETSxREPS[@WEIGHT]", e.g. "Squat: 5x5@100".`,
		schema.MaxSavedWorkouts, schema.MaxExercises),
}

var workoutNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a saved workout",
	Long: `Create a saved workout.

Without --name on an interactive terminal, a form asks for the details.

Example:
  repsync workout new --name "Leg day" --emoji 🦵 -e "Squat: 5x5@100" -e "Lunge: 3x12"`,
	Run: func(cmd *cobra.Command, args []string) {
		w := &schema.SavedWorkout{}
		w.Name, _ = cmd.Flags().GetString("name")
		w.Emoji, _ = cmd.Flags().GetString("emoji")
		w.WorkoutType, _ = cmd.Flags().GetString("type")
		w.Description, _ = cmd.Flags().GetString("description")
		lines, _ := cmd.Flags().GetStringArray("exercise")

		if w.Name == "" {
			if !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stdout) {
				exitf("--name is required when not running interactively")
			}
			var err error
			if lines, err = runWorkoutForm(w); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					os.Exit(1)
				}
				exitf("%v", err)
			}
		}

		exercises, err := parseExercises(lines)
		if err != nil {
			exitf("%v", err)
		}
		w.Exercises = exercises

		e := mustOpenEnv(nil)
		defer e.Close()

		created, err := e.store.CreateSavedWorkout(context.Background(), w)
		if err != nil {
			exitf("%s", describeWorkoutError(err))
		}

		if jsonOutput {
			printJSON(created)
			return
		}
		fmt.Printf("%s Created %s %s (%s)\n", ui.RenderPass("✓"), created.Emoji, created.Name, created.ID)
	},
}

// runWorkoutForm asks for the workout details and returns the exercise
// lines as typed.
func runWorkoutForm(w *schema.SavedWorkout) ([]string, error) {
	var exercises string
	if w.WorkoutType == "" {
		w.WorkoutType = workoutTypes[0]
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&w.Name).
				Validate(func(s string) error {
					switch {
					case strings.TrimSpace(s) == "":
						return fmt.Errorf("name is required")
					case len(s) > schema.MaxWorkoutNameLen:
						return fmt.Errorf("name must be %d characters or less", schema.MaxWorkoutNameLen)
					}
					return nil
				}),
			huh.NewInput().
				Title("Emoji").
				Placeholder(schema.DefaultWorkoutEmoji).
				Value(&w.Emoji),
			huh.NewSelect[string]().
				Title("Type").
				Options(huh.NewOptions(workoutTypes...)...).
				Value(&w.WorkoutType),
			huh.NewInput().
				Title("Description").
				Value(&w.Description),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Exercises").
				Description("One per line: Name: SETSxREPS[@WEIGHT]").
				Value(&exercises).
				Validate(func(s string) error {
					parsed, err := parseExercises(strings.Split(s, "\n"))
					if err != nil {
						return err
					}
					return schema.ValidateExercises(parsed)
				}),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	return strings.Split(exercises, "\n"), nil
}

var workoutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved workouts",
	Run: func(cmd *cobra.Command, args []string) {
		e := mustOpenEnv(nil)
		defer e.Close()

		workouts, err := e.store.SavedWorkouts(context.Background())
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			printJSON(workouts)
			return
		}
		if len(workouts) == 0 {
			fmt.Println("No saved workouts. Create one with 'repsync workout new'.")
			return
		}

		rows := make([][]string, 0, len(workouts))
		for _, w := range workouts {
			rows = append(rows, []string{
				w.Emoji + " " + w.Name,
				w.WorkoutType,
				fmt.Sprint(len(w.Exercises)),
				w.CreatedAt.In(e.loc).Format("2006-01-02"),
				w.ID.Value,
			})
		}
		fmt.Println(ui.Table([]string{"Workout", "Type", "Exercises", "Created", "ID"}, rows))
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d of %d saved workouts", len(workouts), schema.MaxSavedWorkouts)))
	},
}

var workoutShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved workout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			exitf("%v", err)
		}

		e := mustOpenEnv(nil)
		defer e.Close()

		w, err := e.store.SavedWorkout(context.Background(), id)
		if err != nil {
			exitf("%s", describeWorkoutError(err))
		}

		if jsonOutput {
			printJSON(w)
			return
		}
		fmt.Printf("\n%s %s\n", w.Emoji, ui.RenderHeader(w.Name))
		if w.Description != "" {
			fmt.Println(w.Description)
		}
		fmt.Printf("%s\n\n", ui.RenderMuted(fmt.Sprintf("%s · %s", w.ID, w.CreatedAt.In(e.loc).Format("2006-01-02 15:04"))))
		for i, ex := range w.Exercises {
			fmt.Printf("  %2d. %s\n", i+1, formatExercise(ex))
		}
		fmt.Println()
	},
}

var workoutUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a saved workout",
	Long: `Update fields of a saved workout. Only the flags you pass change.
Passing --exercise replaces the whole exercise list.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			exitf("%v", err)
		}

		var patch store.WorkoutPatch
		flags := cmd.Flags()
		str := func(name string) *string {
			if !flags.Changed(name) {
				return nil
			}
			s, _ := flags.GetString(name)
			return &s
		}
		patch.Name = str("name")
		patch.Emoji = str("emoji")
		patch.WorkoutType = str("type")
		patch.Description = str("description")
		if flags.Changed("exercise") {
			lines, _ := flags.GetStringArray("exercise")
			if patch.Exercises, err = parseExercises(lines); err != nil {
				exitf("%v", err)
			}
		}

		e := mustOpenEnv(nil)
		defer e.Close()

		w, err := e.store.UpdateSavedWorkout(context.Background(), id, patch)
		if err != nil {
			exitf("%s", describeWorkoutError(err))
		}

		if jsonOutput {
			printJSON(w)
			return
		}
		fmt.Printf("%s Updated %s %s\n", ui.RenderPass("✓"), w.Emoji, w.Name)
	},
}

var workoutDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved workout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			exitf("%v", err)
		}

		e := mustOpenEnv(nil)
		defer e.Close()

		if err := e.store.Delete(context.Background(), schema.CollectionSavedWorkouts, id.String()); err != nil {
			exitf("%v", err)
		}
		fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), id)
	},
}

var workoutImportCmd = &cobra.Command{
	Use:   "import <file.toml>",
	Short: "Create saved workouts from a TOML template file",
	Long: `Create saved workouts from a TOML file:

  [[workout]]
  name = "Leg day"
  emoji = "🦵"
  type = "strength"

    [[workout.exercise]]
    name = "Squat"
    sets = 5
    reps = 5
    weight = 100.0

Each workout is created independently; import stops at the saved workout limit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tf, err := schema.ReadTemplateFile(args[0])
		if err != nil {
			exitf("%v", err)
		}

		e := mustOpenEnv(nil)
		defer e.Close()
		ctx := context.Background()

		created, failed := 0, 0
		for i := range tf.Workouts {
			t := &tf.Workouts[i]
			w, err := t.ToSavedWorkout(e.clock.Now())
			if err == nil {
				w, err = e.store.CreateSavedWorkout(ctx, w)
			}
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", ui.RenderWarn("⚠"), t.Name, describeWorkoutError(err))
				if errors.Is(err, store.ErrQuotaExceeded) {
					break
				}
				continue
			}
			created++
			fmt.Printf("%s Created %s %s\n", ui.RenderPass("✓"), w.Emoji, w.Name)
		}

		fmt.Printf("\nImported %d of %d workouts\n", created, len(tf.Workouts))
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func describeWorkoutError(err error) string {
	switch {
	case errors.Is(err, store.ErrQuotaExceeded):
		return fmt.Sprintf("you already have %d saved workouts; delete one first", schema.MaxSavedWorkouts)
	case errors.Is(err, store.ErrTooManyExercises):
		return fmt.Sprintf("a workout can have at most %d exercises", schema.MaxExercises)
	case errors.Is(err, store.ErrNotFound):
		return "workout not found"
	}
	return err.Error()
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitf("failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}

func init() {
	for _, c := range []*cobra.Command{workoutNewCmd, workoutUpdateCmd} {
		c.Flags().StringP("name", "n", "", "Workout name")
		c.Flags().String("emoji", "", "Emoji shown next to the name")
		c.Flags().StringP("type", "t", "", "Workout type (strength, cardio, mobility, other)")
		c.Flags().StringP("description", "d", "", "Description")
		c.Flags().StringArrayP("exercise", "e", nil, `Exercise as "Name: SETSxREPS[@WEIGHT]" (repeatable)`)
	}

	workoutCmd.AddCommand(workoutNewCmd, workoutListCmd, workoutShowCmd, workoutUpdateCmd, workoutDeleteCmd, workoutImportCmd)
	rootCmd.AddCommand(workoutCmd)
}
