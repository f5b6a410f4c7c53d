package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"growline/internal/app"
	"growline/internal/domain"
	"growline/internal/lifecycle"
	"growline/internal/repo"
)

func cycleCmd() *cobra.Command {
	c := &cobra.Command{Use: "cycle", Short: "Manage harvest cycles"}
	c.AddCommand(cycleCreateCmd())
	c.AddCommand(cycleListCmd())
	c.AddCommand(cycleShowCmd())
	c.AddCommand(cycleUpdateCmd())
	c.AddCommand(cycleEndCmd())
	c.AddCommand(cycleDeleteCmd())
	return c
}

func cycleCreateCmd() *cobra.Command {
	var n lifecycle.NewHarvestCycle
	var start string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a harvest cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate("start", start)
			if err != nil {
				return err
			}
			n.StartDate = date
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.CreateHarvestCycle(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&n.Name, "name", "", "cycle name")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&n.Notes, "notes", "", "notes")
	cmd.Flags().StringVar(&n.OwnerID, "owner-id", "", "owner id")
	cmd.Flags().StringVar(&n.GardenID, "garden-id", "", "garden id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func cycleListCmd() *cobra.Command {
	var f repo.HarvestCycleFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List harvest cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cycles, err := a.Engine.ListHarvestCycles(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cycles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "Plants"})
				for _, c := range cycles {
					end := ""
					if c.EndDate != nil {
						end = c.EndDate.Format(time.DateOnly)
					}
					tw.AppendRow(table.Row{c.ID, c.Name, c.StartDate.Format(time.DateOnly), end, len(c.Plants)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.GardenID, "garden-id", "", "garden filter")
	cmd.Flags().BoolVar(&f.Active, "active", false, "only cycles without an end date")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max cycles")
	return cmd
}

func cycleShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <cycle-id>",
		Short: "Show a harvest cycle with its plants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.GetHarvestCycle(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func cycleUpdateCmd() *cobra.Command {
	var name, start, notes, gardenID string
	cmd := &cobra.Command{
		Use:   "update <cycle-id>",
		Short: "Update a harvest cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.GetHarvestCycle(ctx, args[0])
				if err != nil {
					return err
				}
				u := c.Values()
				if cmd.Flags().Changed("name") {
					u.Name = name
				}
				if cmd.Flags().Changed("start") {
					if u.StartDate, err = parseDate("start", start); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("notes") {
					u.Notes = notes
				}
				if cmd.Flags().Changed("garden-id") {
					u.GardenID = gardenID
				}
				c, err = a.Engine.UpdateHarvestCycle(ctx, c.ID, u)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "cycle name")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&gardenID, "garden-id", "", "garden id")
	return cmd
}

func cycleEndCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "end <cycle-id>",
		Short: "End a harvest cycle and complete its remaining plants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseDate("date", date)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.EndHarvestCycle(ctx, args[0], at)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "end date (YYYY-MM-DD, default today)")
	return cmd
}

func cycleDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <cycle-id>",
		Short: "Delete a harvest cycle and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteHarvestCycle(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted harvest cycle %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func plantCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "plant",
		Short: "Manage plants in a harvest cycle",
		Long:  "Plant commands take the cycle with --cycle. Milestone commands (seed, germinate, transplant, harvest, complete) record a date and write the matching diary entry.",
	}
	p.PersistentFlags().String("cycle", "", "harvest cycle id")
	_ = p.MarkPersistentFlagRequired("cycle")
	p.AddCommand(plantAddCmd())
	p.AddCommand(plantUpdateCmd())
	p.AddCommand(plantSeedCmd())
	p.AddCommand(plantGerminateCmd())
	p.AddCommand(plantTransplantCmd())
	p.AddCommand(plantHarvestCmd())
	p.AddCommand(plantCompleteCmd())
	p.AddCommand(plantMethodCmd())
	p.AddCommand(plantDeleteCmd())
	return p
}

func cycleFlag(cmd *cobra.Command) string {
	id, _ := cmd.Flags().GetString("cycle")
	return id
}

func plantAddCmd() *cobra.Command {
	var n lifecycle.NewPlant
	var method string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a plant to the cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			n.PlantingMethod = domain.PlantingMethod(method)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.AddPlant(ctx, cycleFlag(cmd), n)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&n.PlantID, "plant-id", "", "plant id")
	cmd.Flags().StringVar(&n.PlantName, "name", "", "plant name")
	cmd.Flags().StringVar(&n.PlantVarietyID, "variety-id", "", "variety id")
	cmd.Flags().StringVar(&n.PlantVarietyName, "variety", "", "variety name")
	cmd.Flags().StringVar(&n.GrowInstructionID, "grow-instruction-id", "", "grow instruction id")
	cmd.Flags().StringVar(&n.GrowInstructionName, "grow-instruction", "", "grow instruction name")
	cmd.Flags().StringVar(&n.SeedVendorID, "seed-vendor-id", "", "seed vendor id")
	cmd.Flags().StringVar(&n.SeedVendorName, "seed-vendor", "", "seed vendor name")
	cmd.Flags().StringVar(&method, "method", string(domain.DirectSeed), "planting method: DirectSeed, SeedIndoors or Transplanting")
	cmd.Flags().IntVar(&n.SpacingInInches, "spacing", 0, "spacing in inches")
	cmd.Flags().StringVar(&n.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("plant-id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func plantUpdateCmd() *cobra.Command {
	var spacing int
	var notes, growID, growName, vendorID, vendorName string
	cmd := &cobra.Command{
		Use:   "update <plant-id>",
		Short: "Update plant details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.GetHarvestCycle(ctx, cycleFlag(cmd))
				if err != nil {
					return err
				}
				p, ok := c.Plant(args[0])
				if !ok {
					return lifecycle.ErrPlantNotFound
				}
				u := p.Values()
				flags := cmd.Flags()
				if flags.Changed("spacing") {
					u.SpacingInInches = spacing
				}
				if flags.Changed("notes") {
					u.Notes = notes
				}
				if flags.Changed("grow-instruction-id") {
					u.GrowInstructionID = growID
				}
				if flags.Changed("grow-instruction") {
					u.GrowInstructionName = growName
				}
				if flags.Changed("seed-vendor-id") {
					u.SeedVendorID = vendorID
				}
				if flags.Changed("seed-vendor") {
					u.SeedVendorName = vendorName
				}
				p, err = a.Engine.UpdatePlant(ctx, c.ID, p.ID, u)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().IntVar(&spacing, "spacing", 0, "spacing in inches")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&growID, "grow-instruction-id", "", "grow instruction id")
	cmd.Flags().StringVar(&growName, "grow-instruction", "", "grow instruction name")
	cmd.Flags().StringVar(&vendorID, "seed-vendor-id", "", "seed vendor id")
	cmd.Flags().StringVar(&vendorName, "seed-vendor", "", "seed vendor name")
	return cmd
}

// milestoneCmd builds one of the plant milestone commands.
func milestoneCmd(use, short string, addFlags func(*cobra.Command), run func(context.Context, *app.App, string, string, time.Time) (*lifecycle.PlantHarvestCycle, error)) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   use + " <plant-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseDate("date", date)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := run(ctx, a, cycleFlag(cmd), args[0], at)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "milestone date (YYYY-MM-DD, default today)")
	if addFlags != nil {
		addFlags(cmd)
	}
	return cmd
}

func plantSeedCmd() *cobra.Command {
	var seeds int
	return milestoneCmd("seed", "Record the seeding date", func(cmd *cobra.Command) {
		cmd.Flags().IntVar(&seeds, "seeds", 0, "number of seeds sown")
	}, func(ctx context.Context, a *app.App, cycleID, plantID string, at time.Time) (*lifecycle.PlantHarvestCycle, error) {
		return a.Engine.MarkSeeded(ctx, cycleID, plantID, at, seeds)
	})
}

func plantGerminateCmd() *cobra.Command {
	var rate float64
	return milestoneCmd("germinate", "Record the germination date", func(cmd *cobra.Command) {
		cmd.Flags().Float64Var(&rate, "rate", 0, "germination rate in percent")
	}, func(ctx context.Context, a *app.App, cycleID, plantID string, at time.Time) (*lifecycle.PlantHarvestCycle, error) {
		return a.Engine.MarkGerminated(ctx, cycleID, plantID, at, rate)
	})
}

func plantTransplantCmd() *cobra.Command {
	var count int
	return milestoneCmd("transplant", "Record the transplant date", func(cmd *cobra.Command) {
		cmd.Flags().IntVar(&count, "count", 0, "number of plants transplanted")
	}, func(ctx context.Context, a *app.App, cycleID, plantID string, at time.Time) (*lifecycle.PlantHarvestCycle, error) {
		return a.Engine.MarkTransplanted(ctx, cycleID, plantID, at, count)
	})
}

func plantHarvestCmd() *cobra.Command {
	return milestoneCmd("harvest", "Record the first harvest", nil,
		func(ctx context.Context, a *app.App, cycleID, plantID string, at time.Time) (*lifecycle.PlantHarvestCycle, error) {
			return a.Engine.MarkHarvested(ctx, cycleID, plantID, at)
		})
}

func plantCompleteCmd() *cobra.Command {
	var weight float64
	var items int
	return milestoneCmd("complete", "Record the last harvest and close the plant", func(cmd *cobra.Command) {
		cmd.Flags().Float64Var(&weight, "weight", 0, "total harvest weight in pounds")
		cmd.Flags().IntVar(&items, "items", 0, "total harvested items")
	}, func(ctx context.Context, a *app.App, cycleID, plantID string, at time.Time) (*lifecycle.PlantHarvestCycle, error) {
		return a.Engine.MarkCompleted(ctx, cycleID, plantID, at, weight, items)
	})
}

func plantMethodCmd() *cobra.Command {
	var method string
	var schedules []string
	cmd := &cobra.Command{
		Use:   "method <plant-id>",
		Short: "Change the planting method and replace system schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := domain.PlantingMethod(method)
			if !m.Valid() {
				return fmt.Errorf("--method must be DirectSeed, SeedIndoors or Transplanting")
			}
			specs, err := parseSchedules(schedules, true)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.ChangePlantingMethod(ctx, cycleFlag(cmd), args[0], m, specs)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "planting method")
	cmd.Flags().StringArrayVar(&schedules, "schedule", nil, "system schedule TYPE:START[:END], repeatable")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func plantDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <plant-id>",
		Short: "Remove a plant and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeletePlant(ctx, cycleFlag(cmd), args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted plant %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func scheduleCmd() *cobra.Command {
	s := &cobra.Command{Use: "schedule", Short: "Manage plant schedules"}
	s.PersistentFlags().String("cycle", "", "harvest cycle id")
	s.PersistentFlags().String("plant", "", "plant id within the cycle")
	_ = s.MarkPersistentFlagRequired("cycle")
	_ = s.MarkPersistentFlagRequired("plant")
	s.AddCommand(scheduleAddCmd())
	s.AddCommand(scheduleUpdateCmd())
	s.AddCommand(scheduleDeleteCmd())
	s.AddCommand(scheduleSystemCmd())
	return s
}

func plantFlag(cmd *cobra.Command) string {
	id, _ := cmd.Flags().GetString("plant")
	return id
}

func scheduleAddCmd() *cobra.Command {
	var typ, start, end, notes string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Plan a work window for the plant",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := typ + ":" + start
			if end != "" {
				spec += ":" + end
			}
			parsed, err := parseSchedules([]string{spec}, false)
			if err != nil {
				return err
			}
			n := parsed[0]
			n.Notes = notes
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Engine.AddSchedule(ctx, cycleFlag(cmd), plantFlag(cmd), n)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "task type, e.g. Water or SowIndoors")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD, default start)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func scheduleUpdateCmd() *cobra.Command {
	var start, end, notes string
	cmd := &cobra.Command{
		Use:   "update <schedule-id>",
		Short: "Move a schedule window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate("start", start)
			if err != nil {
				return err
			}
			to := from
			if end != "" {
				if to, err = parseDate("end", end); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Engine.UpdateSchedule(ctx, cycleFlag(cmd), plantFlag(cmd), args[0], lifecycle.ScheduleUpdate{
					StartDate: from,
					EndDate:   to,
					Notes:     notes,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD, default start)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func scheduleDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <schedule-id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteSchedule(ctx, cycleFlag(cmd), plantFlag(cmd), args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted schedule %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func scheduleSystemCmd() *cobra.Command {
	var schedules []string
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Replace the system generated schedules of the plant",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parseSchedules(schedules, true)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.ReplaceSystemSchedules(ctx, cycleFlag(cmd), plantFlag(cmd), specs)
				if err != nil {
					return err
				}
				return printJSONOrTable(p.Schedules)
			})
		},
	}
	cmd.Flags().StringArrayVar(&schedules, "schedule", nil, "schedule TYPE:START[:END], repeatable")
	return cmd
}

func bedCmd() *cobra.Command {
	b := &cobra.Command{Use: "bed", Short: "Place plants in garden beds"}
	b.PersistentFlags().String("cycle", "", "harvest cycle id")
	b.PersistentFlags().String("plant", "", "plant id within the cycle")
	_ = b.MarkPersistentFlagRequired("cycle")
	_ = b.MarkPersistentFlagRequired("plant")
	b.AddCommand(bedPlaceCmd(false))
	b.AddCommand(bedPlaceCmd(true))
	b.AddCommand(bedRemoveCmd())
	return b
}

// bedPlaceCmd builds "assign" or, with update set, "move <placement-id>".
func bedPlaceCmd(update bool) *cobra.Command {
	var n lifecycle.NewPlacement
	var start, end string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Put the plant in a bed",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if n.StartDate, err = parseDate("start", start); err != nil {
				return err
			}
			if end != "" {
				to, err := parseDate("end", end)
				if err != nil {
					return err
				}
				n.EndDate = &to
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if update {
					p, err := a.Engine.UpdatePlacement(ctx, cycleFlag(cmd), plantFlag(cmd), args[0], n)
					if err != nil {
						return err
					}
					return printJSONOrTable(p.Placements)
				}
				pl, err := a.Engine.AddPlacement(ctx, cycleFlag(cmd), plantFlag(cmd), n)
				if err != nil {
					return err
				}
				return printJSONOrTable(pl)
			})
		},
	}
	if update {
		cmd.Use = "move <placement-id>"
		cmd.Short = "Change a bed placement"
		cmd.Args = cobra.ExactArgs(1)
	}
	cmd.Flags().StringVar(&n.GardenID, "garden-id", "", "garden id")
	cmd.Flags().StringVar(&n.GardenBedID, "bed-id", "", "garden bed id")
	cmd.Flags().IntVar(&n.NumberOfPlants, "count", 0, "number of plants in the bed")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&n.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("garden-id")
	_ = cmd.MarkFlagRequired("bed-id")
	return cmd
}

func bedRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <placement-id>",
		Short: "Take the plant out of a bed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeletePlacement(ctx, cycleFlag(cmd), plantFlag(cmd), args[0]); err != nil {
					return err
				}
				fmt.Printf("Removed placement %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Work with the garden to-do list"}
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskDoneCmd())
	t.AddCommand(taskDeleteCmd())
	return t
}

func taskListCmd() *cobra.Command {
	var s domain.PlantTaskSearch
	var typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if typ != "" {
				r, err := domain.ParseReason(typ)
				if err != nil {
					return err
				}
				s.Reason = r
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks, err := a.Engine.SearchPlantTasks(ctx, s)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&s.HarvestCycleID, "cycle", "", "harvest cycle filter")
	cmd.Flags().StringVar(&s.PlantHarvestCycleID, "plant", "", "plant filter")
	cmd.Flags().StringVar(&s.PlantScheduleID, "schedule", "", "schedule filter")
	cmd.Flags().StringVar(&typ, "type", "", "task type filter")
	cmd.Flags().BoolVar(&s.IncludeResolvedTasks, "all", false, "include completed tasks")
	cmd.Flags().IntVar(&s.Limit, "limit", 0, "max tasks")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.GetPlantTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var c domain.CreatePlantTaskCommand
	var typ, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add your own task for a plant",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseReason(typ)
			if err != nil {
				return err
			}
			c.Type = r
			if c.TargetDateStart, err = parseDate("start", start); err != nil {
				return err
			}
			if end != "" {
				if c.TargetDateEnd, err = parseDate("end", end); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.CreatePlantTask(ctx, c)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&c.HarvestCycleID, "cycle", "", "harvest cycle id")
	cmd.Flags().StringVar(&c.PlantHarvestCycleID, "plant", "", "plant id within the cycle")
	cmd.Flags().StringVar(&typ, "type", string(domain.ReasonInformation), "task type")
	cmd.Flags().StringVar(&c.Title, "title", "", "title")
	cmd.Flags().StringVar(&c.Notes, "notes", "", "notes")
	cmd.Flags().StringVar(&start, "start", "", "target start (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "target end (YYYY-MM-DD, default start)")
	_ = cmd.MarkFlagRequired("cycle")
	_ = cmd.MarkFlagRequired("plant")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "done <task-id>",
		Short: "Mark a task complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := domain.CompletePlantTaskCommand{ID: args[0]}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be an RFC 3339 time")
				}
				c.CompletedDateTime = t
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.CompletePlantTask(ctx, c)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "completion time (RFC 3339, default now)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeletePlantTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted task %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Read and write the garden diary"}
	l.AddCommand(logAddCmd())
	l.AddCommand(logListCmd())
	l.AddCommand(logShowCmd())
	return l
}

func logAddCmd() *cobra.Command {
	var reason, at, cycleID, plantID, bedID string
	var text string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record work done in the garden",
		Long:  "Logging work against a plant closes the matching open tasks. A HardenOff entry also plans the next hardening off session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseReason(reason)
			if err != nil {
				return err
			}
			c := domain.CreateWorkLogCommand{Reason: r, Log: text}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be an RFC 3339 time")
				}
				c.EventDateTime = t
			}
			for _, rel := range []domain.RelatedEntity{
				{EntityType: domain.EntityHarvestCycle, EntityID: cycleID},
				{EntityType: domain.EntityPlantHarvestCycle, EntityID: plantID},
				{EntityType: domain.EntityGardenBed, EntityID: bedID},
			} {
				if rel.EntityID != "" {
					c.RelatedEntities = append(c.RelatedEntities, rel)
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w, err := a.Engine.CreateWorkLog(ctx, c)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason, e.g. Water or HardenOff")
	cmd.Flags().StringVarP(&text, "message", "m", "", "log text")
	cmd.Flags().StringVar(&at, "at", "", "when the work happened (RFC 3339, default now)")
	cmd.Flags().StringVar(&cycleID, "cycle", "", "related harvest cycle id")
	cmd.Flags().StringVar(&plantID, "plant", "", "related plant id within the cycle")
	cmd.Flags().StringVar(&bedID, "bed", "", "related garden bed id")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func logListCmd() *cobra.Command {
	var s domain.WorkLogSearch
	var kind, reason string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List diary entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.EntityType = domain.EntityType(kind)
			if reason != "" {
				r, err := domain.ParseReason(reason)
				if err != nil {
					return err
				}
				s.Reason = r
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				logs, err := a.Engine.SearchWorkLogs(ctx, s)
				if err != nil {
					return err
				}
				return printWorkLogs(logs)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "entity-type", "", "related entity type, e.g. PlantHarvestCycle")
	cmd.Flags().StringVar(&s.EntityID, "entity-id", "", "related entity id")
	cmd.Flags().StringVar(&reason, "reason", "", "reason filter")
	cmd.Flags().IntVar(&s.Limit, "limit", 50, "max entries")
	return cmd
}

func logShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <work-log-id>",
		Short: "Show a diary entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w, err := a.Engine.GetWorkLog(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}
