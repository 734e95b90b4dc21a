package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/orderdesk/internal/auth/token"
	"github.com/creamcroissant/orderdesk/internal/bootstrap"
	"github.com/creamcroissant/orderdesk/internal/job"
	"github.com/creamcroissant/orderdesk/internal/migrations"
)

func init() {
	// Migrate
	var migrateCmd = &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Local database migration management",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := bootstrap.OpenSQLite(cfg.DB.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Using DB path: %s\n", cfg.DB.Path)

			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			switch action {
			case "up":
				err = migrations.Up(db)
			case "down":
				err = migrations.Down(db)
			case "status":
				return migrations.Status(db)
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
			if err != nil {
				return err
			}
			version, err := migrations.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d\n", version)
			return nil
		},
	}
	rootCmd.AddCommand(migrateCmd)

	// Token
	var tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Admin API token management",
	}
	var subject, name, role string
	var ttl time.Duration
	var issueCmd = &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			signed, claims, err := app.Tokens.Issue(token.IssueInput{Subject: subject, Name: name, Role: role, TTL: ttl})
			if err != nil {
				return err
			}
			f, _ := parseFormat(outputFormat)
			out := map[string]any{
				"token":      signed,
				"subject":    claims.Subject,
				"role":       claims.Role,
				"expires_at": claims.ExpiresAt.Time,
				"key_source": app.SigningKeySource,
			}
			return render(cmd.OutOrStdout(), f, out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Subject\t%s\n", claims.Subject)
				fmt.Fprintf(tw, "Role\t%s\n", claims.Role)
				fmt.Fprintf(tw, "Expires\t%s\n", claims.ExpiresAt.Time.Local().Format(time.DateTime))
				fmt.Fprintf(tw, "Token\t%s\n", signed)
			})
		},
	}
	issueCmd.Flags().StringVar(&subject, "subject", "", "Operator id (required)")
	issueCmd.Flags().StringVar(&name, "name", "", "Display name")
	issueCmd.Flags().StringVar(&role, "role", token.RoleViewer, "viewer or operator")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime (default auth.token_ttl)")
	_ = issueCmd.MarkFlagRequired("subject")
	tokenCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(tokenCmd)

	// Job
	var jobCmd = &cobra.Command{
		Use:   "job",
		Short: "Job management",
	}
	jobCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			specs := map[string]string{
				"watch.refresh": cfg.Jobs.WatchRefresh,
				"audit.cleanup": cfg.Jobs.AuditCleanup,
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "Job\tSchedule")
			for _, name := range []string{"watch.refresh", "audit.cleanup"} {
				spec := specs[name]
				if spec == "" {
					spec = "(disabled)"
				}
				fmt.Fprintf(tw, "%s\t%s\n", name, spec)
			}
			return tw.Flush()
		},
	})
	jobCmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a job manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			jobs := map[string]job.Runnable{
				"watch.refresh": job.NewWatchRefreshJob(app.Watches, app.Logger),
				"audit.cleanup": job.NewAuditCleanupJob(app.Audits, app.Config.Audit.Retention, app.Logger),
			}
			j, ok := jobs[args[0]]
			if !ok {
				return fmt.Errorf("unknown job %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Running job %s...\n", j.Name())
			if err := j.Run(cmd.Context()); err != nil {
				return fmt.Errorf("job run failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Job completed successfully.")
			return nil
		},
	})
	rootCmd.AddCommand(jobCmd)
}
