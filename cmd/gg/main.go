package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gymgate/internal/app"
	"gymgate/internal/config"
	"gymgate/internal/db"
	"gymgate/internal/domain"
	"gymgate/internal/engine"
	"gymgate/internal/identity"
	"gymgate/internal/repo"
	"gymgate/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gg",
	Short: "Gymgate CLI",
	Long: `Gymgate decides who gets through the gym door and why.
Core concepts:
- Workspace: your .gymgate directory holding the facility database; gymgate.yml seeds the catalog.
- Person: a registered member, identified at the door by badge code or member token.
- Discipline: an activity category; reservation-based ones need a booked class, the rest run on memberships.
- Plan / membership: a purchasable entitlement, credit-counted or unlimited, valid until it expires.
- Class / reservation: a scheduled session and a member's booked spot; check-in opens 30 minutes before start and closes 20 minutes after.
- Check-in: the engine picks the unique valid entitlement, asks for a choice when several apply, and explains every denial.
- Access log: one audit row per admission attempt, view with 'gg log tail'.`,
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GYMGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(checkinCmd())
	rootCmd.AddCommand(personCmd())
	rootCmd.AddCommand(disciplineCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(classCmd())
	rootCmd.AddCommand(reservationCmd())
	rootCmd.AddCommand(membershipCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func checkinCmd() *cobra.Command {
	var discipline string
	cmd := &cobra.Command{
		Use:   "checkin <credential>",
		Short: "Run a check-in attempt",
		Long:  "Present a badge code or member token at the door. With --discipline the attempt names the activity explicitly, as after a disambiguation prompt.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credential := strings.TrimSpace(args[0])
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				disciplineID := ""
				if discipline != "" {
					d, err := lookupDiscipline(ctx, a.Repo, discipline)
					if err != nil {
						return err
					}
					disciplineID = d.ID
				}
				hint := identity.Hint(credential)
				p, err := a.Identity.Resolve(ctx, credential)
				var decision engine.Decision
				if errors.Is(err, identity.ErrNotFound) {
					decision, err = a.Engine.DenyUnresolved(ctx, hint)
				} else if err == nil {
					decision, err = a.Engine.CheckIn(ctx, engine.CheckInOptions{
						PersonID:       p.ID,
						DisciplineID:   disciplineID,
						CredentialHint: hint,
					})
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(decision)
				}
				printDecision(decision)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&discipline, "discipline", "", "discipline name or id (explicit attempt)")
	return cmd
}

func printDecision(d engine.Decision) {
	switch d.Kind {
	case engine.DecisionGranted:
		g := d.Grant
		fmt.Printf("ACCESS GRANTED: %s (%s)\n", g.Person.Name, g.Discipline.Name)
		if g.ClassName != "" {
			fmt.Printf("  class: %s at %s\n", g.ClassName, g.ClassStartsAt)
		}
		if g.RemainingCredits != nil {
			fmt.Printf("  credits left: %d\n", *g.RemainingCredits)
		}
	case engine.DecisionSelectionRequired:
		fmt.Println("SELECTION REQUIRED: several entitlements apply, retry with --discipline")
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Kind", "Discipline ID", "Label", "Detail"})
		for _, opt := range d.Options {
			detail := opt.Detail
			if opt.ClassStartsAt != "" {
				detail = opt.ClassStartsAt
			}
			tw.AppendRow(table.Row{opt.Kind, opt.DisciplineID, opt.Label, detail})
		}
		tw.Render()
	case engine.DecisionDenied:
		fmt.Printf("ACCESS DENIED [%s]: %s\n", d.Denial.Reason, d.Denial.Message())
	}
}

func personCmd() *cobra.Command {
	p := &cobra.Command{Use: "person", Short: "Manage persons"}
	p.AddCommand(personAddCmd())
	p.AddCommand(personListCmd())
	p.AddCommand(personShowCmd())
	return p
}

func personAddCmd() *cobra.Command {
	var name, photoRef string
	var code int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				badge := code
				if !cmd.Flags().Changed("code") {
					next, err := a.Repo.NextPersonCode(ctx)
					if err != nil {
						return err
					}
					badge = next
				}
				p := domain.Person{
					ID:        uuid.New().String(),
					Code:      badge,
					Name:      name,
					PhotoRef:  photoRef,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Repo.InsertPerson(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().Int64Var(&code, "code", 0, "badge code (next free if omitted)")
	cmd.Flags().StringVar(&photoRef, "photo-ref", "", "photo reference")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func personListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListPersons(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name", "Created"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Code, p.Name, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func personShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a person with memberships and reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Repo.GetPerson(ctx, id)
				if err != nil {
					return err
				}
				memberships, err := a.Repo.ListMembershipsForPerson(ctx, id)
				if err != nil {
					return err
				}
				reservations, err := a.Repo.ListReservationsForPerson(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"person":       p,
					"memberships":  memberships,
					"reservations": reservations,
				})
			})
		},
	}
	return cmd
}

func disciplineCmd() *cobra.Command {
	d := &cobra.Command{Use: "discipline", Short: "Manage disciplines"}
	d.AddCommand(disciplineAddCmd())
	d.AddCommand(disciplineListCmd())
	return d
}

func disciplineAddCmd() *cobra.Command {
	var name string
	var requiresReservation bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a discipline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d := domain.Discipline{
					ID:                  uuid.New().String(),
					Name:                name,
					RequiresReservation: requiresReservation,
				}
				if err := a.Repo.InsertDiscipline(ctx, d); err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "discipline name")
	cmd.Flags().BoolVar(&requiresReservation, "requires-reservation", false, "entry needs a booked class")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func disciplineListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List disciplines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListDisciplines(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func planCmd() *cobra.Command {
	p := &cobra.Command{Use: "plan", Short: "Manage plans"}
	p.AddCommand(planAddCmd())
	p.AddCommand(planListCmd())
	return p
}

func planAddCmd() *cobra.Command {
	var name, discipline string
	var credits, validDays int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := lookupDiscipline(ctx, a.Repo, discipline)
				if err != nil {
					return err
				}
				p := domain.Plan{
					ID:           uuid.New().String(),
					Name:         name,
					DisciplineID: d.ID,
					ValidDays:    validDays,
				}
				if cmd.Flags().Changed("credits") {
					p.Credits = &credits
				}
				if err := a.Repo.InsertPlan(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "plan name")
	cmd.Flags().StringVar(&discipline, "discipline", "", "discipline name or id")
	cmd.Flags().IntVar(&credits, "credits", 0, "credit count (unlimited if omitted)")
	cmd.Flags().IntVar(&validDays, "valid-days", 30, "validity in days")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("discipline")
	return cmd
}

func planListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListPlans(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func classCmd() *cobra.Command {
	c := &cobra.Command{Use: "class", Short: "Manage classes"}
	c.AddCommand(classAddCmd())
	c.AddCommand(classListCmd())
	return c
}

func classAddCmd() *cobra.Command {
	var name, discipline, startsAt, endsAt string
	var capacity int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a class",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.RFC3339, startsAt)
			if err != nil {
				return fmt.Errorf("invalid --starts-at: %w", err)
			}
			end := start.Add(time.Hour)
			if endsAt != "" {
				end, err = time.Parse(time.RFC3339, endsAt)
				if err != nil {
					return fmt.Errorf("invalid --ends-at: %w", err)
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := lookupDiscipline(ctx, a.Repo, discipline)
				if err != nil {
					return err
				}
				c := domain.Class{
					ID:           uuid.New().String(),
					DisciplineID: d.ID,
					Name:         name,
					StartsAt:     start.UTC().Format(time.RFC3339),
					EndsAt:       end.UTC().Format(time.RFC3339),
					Capacity:     capacity,
				}
				if err := a.Repo.InsertClass(ctx, c); err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "class name")
	cmd.Flags().StringVar(&discipline, "discipline", "", "discipline name or id")
	cmd.Flags().StringVar(&startsAt, "starts-at", "", "start time (RFC3339)")
	cmd.Flags().StringVar(&endsAt, "ends-at", "", "end time (RFC3339, start+1h if omitted)")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "seat limit (0 = unlimited)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("discipline")
	_ = cmd.MarkFlagRequired("starts-at")
	return cmd
}

func classListCmd() *cobra.Command {
	var f repo.ClassFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListClasses(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Starts", "Capacity"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.StartsAt, c.Capacity})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.DisciplineID, "discipline-id", "", "discipline filter")
	cmd.Flags().StringVar(&f.From, "from", "", "earliest start (RFC3339)")
	cmd.Flags().StringVar(&f.To, "to", "", "latest start (RFC3339)")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func reservationCmd() *cobra.Command {
	r := &cobra.Command{Use: "reservation", Short: "Manage reservations"}
	r.AddCommand(reservationAddCmd())
	r.AddCommand(reservationCancelCmd())
	r.AddCommand(reservationListCmd())
	return r
}

func reservationAddCmd() *cobra.Command {
	var personID, classID string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Book a class for a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				class, err := a.Repo.GetClass(ctx, classID)
				if err != nil {
					return err
				}
				if class.Capacity > 0 {
					booked, err := a.Repo.CountActiveReservations(ctx, class.ID)
					if err != nil {
						return err
					}
					if booked >= class.Capacity {
						return fmt.Errorf("class %s is at capacity (%d)", class.Name, class.Capacity)
					}
				}
				r := domain.Reservation{
					ID:        uuid.New().String(),
					PersonID:  personID,
					ClassID:   classID,
					Status:    domain.ReservationActive,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Repo.InsertReservation(ctx, r); err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "person id")
	cmd.Flags().StringVar(&classID, "class", "", "class id")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func reservationCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an active reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Repo.CancelReservation(ctx, id)
			})
		},
	}
	return cmd
}

func reservationListCmd() *cobra.Command {
	var personID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a person's reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListReservationsForPerson(ctx, personID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Class", "Starts", "Status"})
				for _, rc := range items {
					tw.AppendRow(table.Row{rc.Reservation.ID, rc.Class.Name, rc.Class.StartsAt, rc.Reservation.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "person id")
	_ = cmd.MarkFlagRequired("person")
	return cmd
}

func membershipCmd() *cobra.Command {
	m := &cobra.Command{Use: "membership", Short: "Manage memberships"}
	m.AddCommand(membershipAddCmd())
	m.AddCommand(membershipListCmd())
	return m
}

func membershipAddCmd() *cobra.Command {
	var personID, planID string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Assign a plan to a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Repo.GetPerson(ctx, personID); err != nil {
					return err
				}
				plan, err := a.Repo.GetPlan(ctx, planID)
				if err != nil {
					return err
				}
				now := time.Now().UTC()
				m := domain.Membership{
					ID:           uuid.New().String(),
					PersonID:     personID,
					PlanID:       plan.ID,
					DisciplineID: plan.DisciplineID,
					Status:       domain.MembershipActive,
					ExpiresAt:    now.AddDate(0, 0, plan.ValidDays).Format(time.RFC3339),
					CreatedAt:    now.Format(time.RFC3339),
				}
				if plan.Credits == nil {
					m.IsUnlimited = true
				} else {
					m.RemainingCredits = *plan.Credits
				}
				if err := a.Repo.InsertMembership(ctx, m); err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "person id")
	cmd.Flags().StringVar(&planID, "plan", "", "plan id")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func membershipListCmd() *cobra.Command {
	var personID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a person's memberships",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListMembershipsForPerson(ctx, personID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Discipline", "Credits", "Status", "Expires"})
				for _, mc := range items {
					credits := "unlimited"
					if !mc.Membership.IsUnlimited {
						credits = fmt.Sprint(mc.Membership.RemainingCredits)
					}
					tw.AppendRow(table.Row{mc.Membership.ID, mc.Discipline.Name, credits, mc.Membership.Status, mc.Membership.ExpiresAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "person id")
	_ = cmd.MarkFlagRequired("person")
	return cmd
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{Use: "token", Short: "Member tokens"}
	t.AddCommand(tokenIssueCmd())
	return t
}

func tokenIssueCmd() *cobra.Command {
	var personID string
	var ttlMinutes int
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a short-lived member token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Repo.GetPerson(ctx, personID); err != nil {
					return err
				}
				ttl := a.Config.MemberTokenTTL()
				if cmd.Flags().Changed("ttl-minutes") {
					ttl = time.Duration(ttlMinutes) * time.Minute
				}
				token, err := a.Identity.IssueToken(personID, ttl)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"token":      token,
					"expires_at": time.Now().UTC().Add(ttl).Format(time.RFC3339),
				})
			})
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "person id")
	cmd.Flags().IntVar(&ttlMinutes, "ttl-minutes", 0, "token lifetime in minutes")
	_ = cmd.MarkFlagRequired("person")
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Staff API keys"}
	k.AddCommand(apikeyCreateCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff API key (shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				raw := uuid.New().String() + uuid.New().String()
				k := domain.APIKey{
					ID:        uuid.New().String(),
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Repo.InsertAPIKey(ctx, k); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": k.ID, "name": k.Name, "key": raw})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "gymgate.yml declares the facility, the check-in window, token secrets, and the discipline/plan catalog seeded on startup.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printJSONOrTable(a.Config)
			})
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var facility string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default gymgate.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(facility)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&facility, "facility", "main", "facility id")
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
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

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Access log",
		Long:  "One audit row per admission attempt: who tried, when, and whether the door opened.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var personID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail admission attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				entries, err := a.Repo.LatestAccessLog(ctx, n, 0, personID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Person", "Outcome", "Reason", "Discipline", "Detail"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.TS, e.PersonID, e.Outcome, e.Reason, e.Discipline, e.Detail})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of rows")
	cmd.Flags().StringVar(&personID, "person", "", "person filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noAuth bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				authCfg := server.AuthConfig{
					StaffSecret: a.Config.Tokens.StaffSecret,
					Disabled:    noAuth,
				}
				if authCfg.StaffSecret == "" {
					authCfg.StaffSecret = os.Getenv("GYMGATE_STAFF_SECRET")
				}
				if !noAuth && authCfg.StaffSecret == "" {
					return fmt.Errorf("staff secret is required; set tokens.staff_secret or GYMGATE_STAFF_SECRET (or pass --no-auth)")
				}
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					Identity: a.Identity,
					BasePath: basePath,
					Auth:     authCfg,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Gymgate API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "disable staff auth (dev only)")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func lookupDiscipline(ctx context.Context, r repo.Repo, nameOrID string) (domain.Discipline, error) {
	d, err := r.GetDisciplineByName(ctx, nameOrID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Discipline{}, err
	}
	return r.GetDiscipline(ctx, nameOrID)
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
