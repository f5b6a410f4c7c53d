package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"growline/internal/app"
	"growline/internal/config"
	"growline/internal/db"
	"growline/internal/domain"
	"growline/internal/lifecycle"
	"growline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gl",
	Short: "Growline CLI",
	Long: `Growline tracks what you plant in a harvest cycle and keeps the garden to-do list in step.
Core concepts:
- Workspace: the .growline directory holding the database, next to an optional growline.yml.
- Harvest cycle: one growing season with the plants you grow in it.
- Plant: a plant or variety in the cycle, with its seeding, germination, transplant and harvest dates.
- Schedules: planned windows for work such as sowing, watering or weeding.
- Beds: where a plant sits in the garden and how many of it.
- Tasks: the to-do list. Most tasks are written for you whenever plant dates or schedules change.
- Work logs: the garden diary. Milestones write entries on their own; log work with 'gl log add'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GROWLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/growline.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override: debug, info, warn or error")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(cycleCmd())
	rootCmd.AddCommand(plantCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(bedCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace and a default growline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if viper.GetBool("json") {
					return printJSON(map[string]string{"config": path, "database": db.Path(workspace)})
				}
				fmt.Printf("Initialized growline workspace: %s\n", db.Path(workspace))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing growline.yml")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect config",
		Long:  "Config lives in growline.yml: where growth parameters come from, fallback values for the task generators, logging and webhooks.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					BasePath: basePath,
					Gatherer: a.Registry,
					Logger:   a.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info("serving growline api", "addr", addr, "base_path", basePath)
				fmt.Printf("Serving Growline API on http://%s%s (OpenAPI at %s/openapi.json, metrics at /metrics)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		LogLevel:   viper.GetString("log-level"),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTasks(tasks []domain.PlantTask) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Type", "Title", "Window", "Done", "Plant"})
	for _, t := range tasks {
		done := ""
		if t.CompletedDateTime != nil {
			done = t.CompletedDateTime.Format(time.DateOnly)
		}
		window := t.TargetDateStart.Format(time.DateOnly)
		if !t.TargetDateEnd.Equal(t.TargetDateStart) {
			window += " .. " + t.TargetDateEnd.Format(time.DateOnly)
		}
		tw.AppendRow(table.Row{t.ID, t.Type, t.Title, window, done, t.PlantHarvestCycleID})
	}
	tw.Render()
	return nil
}

func printWorkLogs(logs []domain.WorkLog) error {
	if viper.GetBool("json") {
		return printJSON(logs)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"When", "Reason", "Log"})
	for _, w := range logs {
		tw.AppendRow(table.Row{w.EventDateTime.Format(time.DateOnly), w.Reason, w.Log})
	}
	tw.Render()
	return nil
}

// parseDate reads a YYYY-MM-DD flag value. Empty means today.
func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return domain.Day(time.Now()), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be a date (YYYY-MM-DD)", flag)
	}
	return t, nil
}

// parseSchedules reads TYPE:START[:END] specs.
func parseSchedules(specs []string, system bool) ([]lifecycle.NewSchedule, error) {
	out := make([]lifecycle.NewSchedule, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("schedule %q must be TYPE:START[:END]", spec)
		}
		typ, err := domain.ParseReason(parts[0])
		if err != nil {
			return nil, err
		}
		start, err := time.Parse(time.DateOnly, parts[1])
		if err != nil {
			return nil, fmt.Errorf("schedule %q: start must be YYYY-MM-DD", spec)
		}
		end := start
		if len(parts) == 3 {
			if end, err = time.Parse(time.DateOnly, parts[2]); err != nil {
				return nil, fmt.Errorf("schedule %q: end must be YYYY-MM-DD", spec)
			}
		}
		out = append(out, lifecycle.NewSchedule{TaskType: typ, StartDate: start, EndDate: end, IsSystemGenerated: system})
	}
	return out, nil
}
