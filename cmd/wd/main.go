package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"wardline/internal/app"
	"wardline/internal/config"
	"wardline/internal/db"
	"wardline/internal/domain"
	"wardline/internal/engine"
	"wardline/internal/migrate"
	"wardline/internal/repo"
	"wardline/internal/server"
	"wardline/internal/stage"
)

var rootCmd = &cobra.Command{
	Use:   "wd",
	Short: "Wardline CLI",
	Long: `Wardline tracks callings, candidates, and the steps between proposal and
being recorded. Core concepts:
- Workspace: your .wardline data directory; one workspace per congregation,
  config stored in the DB and importable from wardline.yml.
- Calling: a position to fill (title plus optional organization). A calling is
  unfilled until a process reaches its final stage.
- Candidate pool: names proposed for a calling. Entries move through
  proposed -> discussing -> selected, can be removed (soft delete) and
  restored, and are purged after the retention window.
- Process: the pipeline for one chosen candidate. Stages advance one at a
  time: defined -> approved -> extended -> accepted -> sustained ->
  set_apart -> recorded_lcr. The final stage is permanent and fills the
  calling.
- Tasks and comments: follow-ups and discussion attached to a process.
- History: the audit trail of everything that happened, view with
  'wd process history'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir := viper.GetString("dir")
		if _, err := db.EnsureDataDir(dir); err != nil {
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
	viper.SetEnvPrefix("WARDLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("dir", "d", ".", "data directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "workspace id (overrides the default)")
	_ = viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
}

func registerCommands() {
	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(callingCmd())
	rootCmd.AddCommand(candidateCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func workspaceCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workspace", Short: "Manage workspaces"}
	ws.AddCommand(workspaceInitCmd())
	ws.AddCommand(workspaceListCmd())
	ws.AddCommand(workspaceShowCmd())
	ws.AddCommand(workspaceUseCmd())
	return ws
}

func workspaceInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			dir := viper.GetString("dir")
			conn, err := db.Open(db.Config{Dir: dir})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			w, err := e.InitWorkspace(cmd.Context(), id, name, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(w)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "workspace id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func workspaceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListWorkspaces(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func workspaceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Repo.GetWorkspace(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

func workspaceUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set the default workspace for this directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceID := strings.TrimSpace(args[0])
			if workspaceID == "" {
				return fmt.Errorf("workspace id is required")
			}
			dir := viper.GetString("dir")
			if err := setEnvValue(filepath.Join(dir, ".env"), "WARDLINE_WORKSPACE", workspaceID); err != nil {
				return err
			}
			fmt.Printf("Set WARDLINE_WORKSPACE=%s in %s/.env\n", workspaceID, dir)
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the workspace rulebook (stored in DB): managing roles, candidate retention, and webhooks. Import from wardline.yml if desired.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configGenerateCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
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

func configGenerateCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a default wardline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault(id))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "my-ward", "workspace id to embed")
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import workspace config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			workspaceID := cfg.Workspace.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if workspaceID == "" {
					workspaceID = e.Config.Workspace.ID
				}
				if err := e.Repo.UpsertWorkspaceConfig(ctx, workspaceID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func memberCmd() *cobra.Command {
	m := &cobra.Command{Use: "member", Short: "Manage workspace members"}
	m.AddCommand(memberAddCmd())
	m.AddCommand(memberListCmd())
	return m
}

func memberAddCmd() *cobra.Command {
	var actor, name, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return fmt.Errorf("--actor required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddMember(ctx, e.Config.Workspace.ID, actor, name, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "member", "role (admin, leader, member)")
	return cmd
}

func memberListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListMembers(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Actor", "Name", "Role"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ActorID, m.Name, m.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func callingCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "calling",
		Short: "Manage callings",
		Long:  "Callings are the positions to fill. Each has at most one active process; reaching the final stage marks the calling filled.",
	}
	c.AddCommand(callingCreateCmd())
	c.AddCommand(callingListCmd())
	c.AddCommand(callingShowCmd())
	c.AddCommand(callingUpdateCmd())
	c.AddCommand(callingDeleteCmd())
	return c
}

func callingCreateCmd() *cobra.Command {
	var opts engine.CallingCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a calling",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.WorkspaceID == "" {
					opts.WorkspaceID = e.Config.Workspace.ID
				}
				c, err := e.CreateCalling(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "calling id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Organization, "organization", "", "organization")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func callingListCmd() *cobra.Command {
	var filled, unfilled bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List callings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f := repo.CallingFilters{WorkspaceID: e.Config.Workspace.ID}
				if filled {
					v := true
					f.Filled = &v
				} else if unfilled {
					v := false
					f.Filled = &v
				}
				items, err := e.Repo.ListCallings(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Organization", "Filled"})
				for _, c := range items {
					org := ""
					if c.Organization != nil {
						org = *c.Organization
					}
					tw.AppendRow(table.Row{c.ID, c.Title, org, c.IsFilled})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&filled, "filled", false, "only filled callings")
	cmd.Flags().BoolVar(&unfilled, "unfilled", false, "only unfilled callings")
	return cmd
}

func callingShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a calling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetCalling(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func callingUpdateCmd() *cobra.Command {
	var title, organization string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a calling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var titlePtr, orgPtr *string
				if cmd.Flags().Changed("title") {
					titlePtr = &title
				}
				if cmd.Flags().Changed("organization") {
					orgPtr = &organization
				}
				c, err := e.UpdateCalling(ctx, id, titlePtr, orgPtr)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&organization, "organization", "", "organization")
	return cmd
}

func callingDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a calling and everything attached to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteCalling(ctx, id)
			})
		},
	}
	return cmd
}

func candidateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "candidate",
		Short: "Manage candidate pools",
		Long:  "Candidates are names in a calling's pool. Removal is a soft delete; entries come back with 'restore' and are purged for good after the retention window.",
	}
	c.AddCommand(candidateAddCmd())
	c.AddCommand(candidateListCmd())
	c.AddCommand(candidateSearchCmd())
	c.AddCommand(candidateUpdateCmd())
	c.AddCommand(candidateRemoveCmd())
	c.AddCommand(candidateRestoreCmd())
	c.AddCommand(candidatePurgeCmd())
	return c
}

func candidateAddCmd() *cobra.Command {
	var opts engine.CandidateAddOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a candidate to a calling's pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddCandidate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.CallingID, "calling", "", "calling id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "candidate name")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("calling")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func candidateListCmd() *cobra.Command {
	var callingID string
	var includeRemoved bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a calling's candidate pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if callingID == "" {
				return fmt.Errorf("--calling required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCallingCandidates(ctx, callingID, includeRemoved)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Removed"})
				for _, c := range items {
					name := c.CandidateNameID
					if cn, err := e.Repo.GetCandidateName(ctx, c.CandidateNameID); err == nil {
						name = cn.Name
					}
					tw.AppendRow(table.Row{c.ID, name, c.Status, c.DeletedAt != nil})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&callingID, "calling", "", "calling id")
	cmd.Flags().BoolVar(&includeRemoved, "include-removed", false, "include removed entries")
	return cmd
}

func candidateSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search known candidate names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SearchCandidateNames(ctx, e.Config.Workspace.ID, args[0], nil)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func candidateUpdateCmd() *cobra.Command {
	var status, notes string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a pool entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var statusPtr, notesPtr *string
				if cmd.Flags().Changed("status") {
					statusPtr = &status
				}
				if cmd.Flags().Changed("notes") {
					notesPtr = &notes
				}
				c, err := e.UpdateCandidate(ctx, id, statusPtr, notesPtr)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status (proposed, discussing, selected, archived)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func candidateRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a pool entry (soft delete)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveCandidate(ctx, id)
			})
		},
	}
	return cmd
}

func candidateRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a removed pool entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.RestoreCandidate(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func candidatePurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge removed entries past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.PurgeRemovedCandidates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"purged": n})
				}
				fmt.Printf("purged %d entries\n", n)
				return nil
			})
		},
	}
	return cmd
}

func processCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "process",
		Short: "Manage calling processes",
		Long:  "A process walks one candidate through the pipeline. Stages advance one at a time; the final stage is permanent and requires --confirm.",
	}
	p.AddCommand(processStartCmd())
	p.AddCommand(processListCmd())
	p.AddCommand(processShowCmd())
	p.AddCommand(processAdvanceCmd())
	p.AddCommand(processDropCmd())
	p.AddCommand(processTimelineCmd())
	p.AddCommand(processHistoryCmd())
	return p
}

func processStartCmd() *cobra.Command {
	var opts engine.ProcessStartOptions
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a process for a candidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.StartProcess(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.CallingID, "calling", "", "calling id")
	cmd.Flags().StringVar(&opts.CallingCandidateID, "candidate", "", "pool entry id")
	cmd.Flags().StringVar(&opts.CandidateNameID, "name-id", "", "candidate name id (added to the pool if needed)")
	_ = cmd.MarkFlagRequired("calling")
	cmd.MarkFlagsOneRequired("candidate", "name-id")
	cmd.MarkFlagsMutuallyExclusive("candidate", "name-id")
	return cmd
}

func processListCmd() *cobra.Command {
	var f repo.ProcessFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.WorkspaceID == "" {
					f.WorkspaceID = e.Config.Workspace.ID
				}
				items, err := e.Repo.ListProcesses(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Calling", "Stage", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.CallingID, stage.Label(stage.Stage(p.CurrentStage)), p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.CallingID, "calling", "", "calling filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage filter")
	return cmd
}

func processShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProcess(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func processAdvanceCmd() *cobra.Command {
	var opts engine.StageAdvanceOptions
	cmd := &cobra.Command{
		Use:   "advance <id>",
		Short: "Advance a process to its next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProcessID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AdvanceStage(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ToStage, "to", "", "target stage (defaults to the next one)")
	cmd.Flags().BoolVar(&opts.Confirm, "confirm", false, "confirm a permanent final-stage advance")
	return cmd
}

func processDropCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "drop <id>",
		Short: "Drop an active process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.DropProcess(ctx, id, reason, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the process is dropped")
	return cmd
}

func processTimelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline <id>",
		Short: "Show the merged timeline for a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ProcessTimeline(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func processHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the audit trail for a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProcessHistory(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func commentCmd() *cobra.Command {
	c := &cobra.Command{Use: "comment", Short: "Manage process comments"}
	c.AddCommand(commentAddCmd())
	c.AddCommand(commentUpdateCmd())
	c.AddCommand(commentDeleteCmd())
	return c
}

func commentAddCmd() *cobra.Command {
	var processID, content string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a comment to a process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddComment(ctx, processID, content, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&processID, "process", "", "process id")
	cmd.Flags().StringVar(&content, "content", "", "comment text")
	_ = cmd.MarkFlagRequired("process")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func commentUpdateCmd() *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a comment (author only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateComment(ctx, id, content, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "comment text")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func commentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a comment (author only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteComment(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage process tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskDoneCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task on a process",
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
	cmd.Flags().StringVar(&opts.ProcessID, "process", "", "process id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.AssignedTo, "assigned-to", "", "assignee actor id")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "medium", "priority (high, medium, low)")
	_ = cmd.MarkFlagRequired("process")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.ProcessID == "" {
					f.WorkspaceID = e.Config.Workspace.ID
				}
				items, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Status", "Assigned", "Due"})
				for _, t := range items {
					assigned := ""
					if t.AssignedTo != nil {
						assigned = *t.AssignedTo
					}
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Priority, t.Status, assigned, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProcessID, "process", "", "process filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assigned-to", "", "assignee filter")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func dashboardCmd() *cobra.Command {
	d := &cobra.Command{
		Use:   "dashboard",
		Short: "Workspace dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Dashboard(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Callings: %d total, %d unfilled (%.0f%% filled)\n",
					s.FillRate.TotalCallings, s.FillRate.UnfilledCount, s.FillRate.FillRate*100)
				fmt.Printf("Pending tasks: %d\n", s.PendingTasks)
				fmt.Println("Active pipeline:")
				for _, p := range s.Pipeline.Processes {
					fmt.Printf("  %s: %s [%s]\n", p.CallingTitle, p.CandidateName, stage.Label(stage.Stage(p.CurrentStage)))
				}
				return nil
			})
		},
	}
	d.AddCommand(dashboardLayoutCmd())
	return d
}

func dashboardLayoutCmd() *cobra.Command {
	l := &cobra.Command{Use: "layout", Short: "Manage the dashboard layout"}
	l.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved layout (or the default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				layout, err := e.GetLayout(ctx, e.Config.Workspace.ID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(layout)
			})
		},
	})
	l.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset the layout to the default",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ResetLayout(ctx, e.Config.Workspace.ID, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(engine.DefaultLayout())
			})
		},
	})
	return l
}

func apiKeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "api-key", Short: "Manage API keys"}
	k.AddCommand(apiKeyCreateCmd())
	k.AddCommand(apiKeyListCmd())
	k.AddCommand(apiKeyDeleteCmd())
	return k
}

func apiKeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			raw := make([]byte, 24)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			secret := "wdk_" + hex.EncodeToString(raw)
			key := domain.APIKey{
				ID:        uuid.NewString(),
				ActorID:   actor,
				Name:      name,
				KeyHash:   repo.HashAPIKey(secret),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "key": secret})
				}
				fmt.Printf("API key %s for %s:\n%s\n", key.ID, key.ActorID, secret)
				fmt.Println("Store it now; it cannot be shown again.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id (defaults to --actor-id)")
	return cmd
}

func apiKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, id)
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := viper.GetString("dir")
			conn, err := db.Open(db.Config{Dir: dir})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveWorkspaceAndConfig(cmd.Context(), viper.GetString("workspace"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("WARDLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowActorHeader,
				Logger:                 log.Default(),
			}
			if authCfg.JWTSecret == "" && !allowActorHeader {
				return fmt.Errorf("WARDLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				fmt.Printf("Serving Wardline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept the X-Actor-Id header (local use only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	dir := viper.GetString("dir")
	conn, err := db.Open(db.Config{Dir: dir})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveWorkspaceAndConfig(ctx, viper.GetString("workspace"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	dir := viper.GetString("dir")
	conn, err := db.Open(db.Config{Dir: dir})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
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

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
