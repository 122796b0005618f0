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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"homeline/internal/config"
	"homeline/internal/db"
	"homeline/internal/engine"
	"homeline/internal/migrate"
	"homeline/internal/notify"
	"homeline/internal/repo"
	"homeline/internal/scanner"
	"homeline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Homeline CLI",
	Long: `Homeline is the agency's lead and deal tracker.
- Workspace: a .homeline directory holding the database, plus homeline.yml for config.
- Leads: prospects flowing new -> contacted -> qualified -> negotiating -> converted/lost.
- Tasks: follow-up work with due dates; the scanner warns when they come due or slip.
- Deals: converted leads with money attached, moving strictly forward to completion.
- Notifications: in-app inbox per member, optionally mirrored to an external channel.
- Import/export: bulk lead transfer over CSV with duplicate handling by phone.`,
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
	_ = godotenv.Load()
	viper.SetEnvPrefix("HOMELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(leadCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dealCmd())
	rootCmd.AddCommand(notificationCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
}

func initCmd() *cobra.Command {
	var agencyID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Config %s already exists, leaving it alone\n", path)
				return nil
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(agencyID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Initialized workspace: %s, %s\n", db.Path(workspace), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&agencyID, "agency-id", "default", "agency identifier")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowMemberHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server and due-date scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg, channelFromConfig(cfg))
			authCfg := server.AuthConfig{
				JWTSecret:         os.Getenv("HOMELINE_JWT_SECRET"),
				AllowMemberHeader: allowMemberHeader,
			}
			if authCfg.JWTSecret == "" && !allowMemberHeader {
				return fmt.Errorf("HOMELINE_JWT_SECRET is required for bearer auth")
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			scanCtx, stopScan := context.WithCancel(cmd.Context())
			defer stopScan()
			sc := scanner.Scanner{
				DB:        conn,
				Repo:      e.Repo,
				Notifier:  e.Notifier,
				Interval:  cfg.ScanInterval(),
				Threshold: cfg.DueSoonThreshold(),
			}
			go sc.Start(scanCtx)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Homeline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	cmd.Flags().BoolVar(&allowMemberHeader, "allow-member-header", false, "accept X-Member-ID header auth (local use only)")
	return cmd
}

func memberCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "member",
		Short: "Manage team members",
	}
	m.AddCommand(memberAddCmd())
	m.AddCommand(memberListCmd())
	m.AddCommand(memberActiveCmd())
	m.AddCommand(memberChannelCmd())
	return m
}

func memberAddCmd() *cobra.Command {
	var opts engine.MemberCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateMember(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "member id (optional)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Role, "role", "agent", "role (owner, admin, senior_agent, agent, coordinator)")
	cmd.Flags().StringVar(&opts.ChannelHandle, "channel-handle", "", "external channel handle")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func memberListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.Repo.ListMembers(ctx, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(members)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Active", "Channel"})
				for _, m := range members {
					tw.AppendRow(table.Row{m.ID, m.Name, m.Role, m.IsActive, m.ChannelHandle})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active members")
	return cmd
}

func memberActiveCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "set-active <id>",
		Short: "Activate or deactivate a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SetMemberActive(ctx, args[0], active, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "active state")
	return cmd
}

func memberChannelCmd() *cobra.Command {
	var handle string
	cmd := &cobra.Command{
		Use:   "set-channel <id>",
		Short: "Set a member's external channel handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SetMemberChannel(ctx, args[0], handle, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&handle, "handle", "", "channel handle (empty clears)")
	return cmd
}

func leadCmd() *cobra.Command {
	lead := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
		Long:  "Leads are prospects in the funnel. They move new -> contacted -> qualified -> negotiating -> converted, or drop to lost from any working state.",
	}
	lead.AddCommand(leadCreateCmd())
	lead.AddCommand(leadListCmd())
	lead.AddCommand(leadGetCmd())
	lead.AddCommand(leadStatusCmd())
	lead.AddCommand(leadAssignCmd())
	lead.AddCommand(leadActivityCmd())
	return lead
}

func leadCreateCmd() *cobra.Command {
	var opts engine.LeadCreateOptions
	var budget int64
	var bedrooms int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("budget") {
				opts.Budget = &budget
			}
			if cmd.Flags().Changed("bedrooms") {
				opts.Bedrooms = &bedrooms
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateLead(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Telegram, "telegram", "", "telegram handle")
	cmd.Flags().StringVar(&opts.WhatsApp, "whatsapp", "", "whatsapp number")
	cmd.Flags().StringVar(&opts.PropertyType, "property-type", "", "property type")
	cmd.Flags().StringVar(&opts.ListingType, "listing-type", "", "listing type (sale, rent, offplan)")
	cmd.Flags().Int64Var(&budget, "budget", 0, "budget")
	cmd.Flags().IntVar(&bedrooms, "bedrooms", 0, "bedrooms")
	cmd.Flags().StringVar(&opts.Districts, "districts", "", "districts of interest")
	cmd.Flags().StringVar(&opts.Requirements, "requirements", "", "free-form requirements")
	cmd.Flags().StringVar(&opts.Source, "source", "", "lead source")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.Flags().StringVar(&opts.AssignedTo, "assign", "", "assignee member id")
	cmd.Flags().StringVar(&opts.NextFollowUpAt, "next-follow-up", "", "next follow-up (RFC3339)")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func leadListCmd() *cobra.Command {
	var f repo.LeadFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				leads, err := e.Repo.ListLeads(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(leads)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Phone", "Status", "Priority", "Assigned"})
				for _, l := range leads {
					assigned := ""
					if l.AssignedTo != nil {
						assigned = *l.AssignedTo
					}
					name := strings.TrimSpace(l.FirstName + " " + l.LastName)
					tw.AppendRow(table.Row{l.ID, name, l.Phone, l.Status, l.Priority, assigned})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.Source, "source", "", "source filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.Search, "search", "", "substring search")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func leadGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.Repo.GetLead(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	return cmd
}

func leadStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Transition a lead's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.TransitionLead(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func leadAssignCmd() *cobra.Command {
	var memberID string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a lead to a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.AssignLead(ctx, args[0], memberID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&memberID, "member", "", "member id")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func leadActivityCmd() *cobra.Command {
	var opts engine.ActivityCreateOptions
	cmd := &cobra.Command{
		Use:   "log <id>",
		Short: "Log an interaction on a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.LeadID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateActivity(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "note", "activity type")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "call outcome (answered, no_answer, voicemail, busy)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note text")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are due-dated follow-up work. They flow pending -> in_progress -> completed, or get cancelled. The scanner fires due-soon and overdue alerts off the due date.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskDoneCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Type, "type", "", "task type (defaults to follow_up)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339)")
	cmd.Flags().StringVar(&opts.AssignedTo, "assign", "", "assignee member id")
	cmd.Flags().StringVar(&opts.LeadID, "lead", "", "linked lead id")
	cmd.Flags().StringVar(&opts.DealID, "deal", "", "linked deal id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("due")
	_ = cmd.MarkFlagRequired("assign")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Due", "Assigned", "Alert"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.DueDate, t.AssignedTo, t.LastAlert})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.LeadID, "lead", "", "lead filter")
	cmd.Flags().StringVar(&f.DealID, "deal", "", "deal filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Transition a task's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.TransitionTask(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func dealCmd() *cobra.Command {
	deal := &cobra.Command{
		Use:   "deal",
		Short: "Manage deals",
		Long:  "Deals are converted leads with money attached. The funnel only moves forward: negotiation -> contract_signed -> deposit_received -> payment_in_progress -> completed. Cancellation exits from any non-terminal state.",
	}
	deal.AddCommand(dealCreateCmd())
	deal.AddCommand(dealListCmd())
	deal.AddCommand(dealStatusCmd())
	return deal
}

func dealCreateCmd() *cobra.Command {
	var opts engine.DealCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a deal from a lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDeal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.LeadID, "lead", "", "lead id")
	cmd.Flags().Float64Var(&opts.DealValue, "value", 0, "deal value")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "currency (defaults to AED)")
	_ = cmd.MarkFlagRequired("lead")
	return cmd
}

func dealListCmd() *cobra.Command {
	var leadID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				deals, err := e.Repo.ListDeals(ctx, leadID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(deals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Lead", "Status", "Value", "Currency"})
				for _, d := range deals {
					tw.AppendRow(table.Row{d.ID, d.LeadID, d.Status, d.DealValue, d.Currency})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&leadID, "lead", "", "lead filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func dealStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Transition a deal's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.TransitionDeal(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func notificationCmd() *cobra.Command {
	n := &cobra.Command{
		Use:   "notification",
		Short: "Inbox of in-app notifications",
	}
	n.AddCommand(notificationListCmd())
	n.AddCommand(notificationReadCmd())
	n.AddCommand(notificationReadAllCmd())
	return n
}

func notificationListCmd() *cobra.Command {
	var unread bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the actor's notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListNotifications(ctx, repo.NotificationFilters{
					Recipient:  viper.GetString("actor-id"),
					UnreadOnly: unread,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Title", "Read", "Created"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Type, it.Title, it.IsRead, it.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func notificationReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.Repo.MarkNotificationRead(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	return cmd
}

func notificationReadAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read-all",
		Short: "Mark all of the actor's notifications read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				marked, err := e.Repo.MarkAllNotificationsRead(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				fmt.Printf("Marked %d notifications read\n", marked)
				return nil
			})
		},
	}
	return cmd
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one due-date scan pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg, channelFromConfig(cfg))
			sc := scanner.Scanner{
				DB:        conn,
				Repo:      e.Repo,
				Notifier:  e.Notifier,
				Threshold: cfg.DueSoonThreshold(),
			}
			fired, err := sc.ScanOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Scan done, %d notifications fired\n", fired)
			return nil
		},
	}
	return cmd
}

func importCmd() *cobra.Command {
	var filePath, policy string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import leads from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.ImportLeads(ctx, data, policy, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				fmt.Printf("Imported: %d, skipped: %d, failed: %d\n", report.Success, report.Skipped, report.Failed)
				for _, re := range report.Errors {
					fmt.Printf("  row %d: %s\n", re.Row, re.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to CSV file")
	cmd.Flags().StringVar(&policy, "duplicate-policy", "", "skip, update or error (defaults to config)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func exportCmd() *cobra.Command {
	var status, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export leads to a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				filename, data, err := e.ExportLeads(ctx, repo.LeadFilters{Status: status})
				if err != nil {
					return err
				}
				target := outPath
				if target == "" {
					target = filename
				}
				if err := os.WriteFile(target, data, 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (empty for all)")
	cmd.Flags().StringVar(&outPath, "out", "", "output path (defaults to generated filename)")
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: lead, task, deal and member changes.",
	}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.TailEvents(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

// --- helpers ---

func channelFromConfig(cfg *config.Config) notify.Channel {
	if cfg == nil || !cfg.Channel.Enabled {
		return nil
	}
	return notify.NewHTTPChannel(cfg.Channel.APIURL, cfg.Channel.BotToken, cfg.ChannelTimeout())
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, channelFromConfig(cfg))
	return fn(ctx, e)
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
