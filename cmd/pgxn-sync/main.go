package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pgxn-tester/server/internal/pgxn"
	"github.com/pgxn-tester/server/internal/repository"
	"github.com/pgxn-tester/server/pkg/config"
	"github.com/pgxn-tester/server/pkg/domain"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfgPath := getenv("PGXN_TESTER_CONFIG_PATH", "")
	dbPath := ""
	apiURL := ""
	ui := newUI()

	root := &cobra.Command{
		Use:   "pgxn-sync",
		Short: "pgxn-tester registry tooling",
		Long:  "Mirrors users, distributions and release versions from the PGXN registry and manages test machines.",
	}
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().StringVar(&apiURL, "api", "", "Registry API base URL (overrides config)")

	loadCfg := func() (*config.Config, error) {
		cfg, err := config.LoadConfigOptional(cfgPath)
		if err != nil {
			return nil, err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if apiURL != "" {
			cfg.PGXNAPIBaseURL = apiURL
		}
		return cfg, nil
	}

	root.AddCommand(syncCmd(loadCfg, ui))
	root.AddCommand(machineCmd(loadCfg, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.err("[ERROR]"), err)
		os.Exit(1)
	}
}

func syncCmd(loadCfg func() (*config.Config, error), ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync users, distributions and versions from the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, err := repository.Open(ctx, cfg.DBPath, cfg.DBMaxConns)
			if err != nil {
				return err
			}
			defer db.Close()

			client := pgxn.NewClient(pgxn.ClientOpts{
				BaseURL:     cfg.PGXNAPIBaseURL,
				MaxAttempts: cfg.SyncMaxAttempts,
				BaseBackoff: time.Duration(cfg.SyncBaseBackoffSeconds) * time.Second,
				MaxBackoff:  time.Duration(cfg.SyncMaxBackoffSeconds) * time.Second,
			})
			syncer := pgxn.NewSyncer(client, repository.NewDistributionRepository(db), nil)

			fmt.Printf("%s Syncing from %s\n", ui.title("pgxn-sync"), cfg.PGXNAPIBaseURL)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching user listings..."
			spin.Start()

			var bar *progressbar.ProgressBar
			syncer.Progress = func(done, total int) {
				if bar == nil {
					spin.Stop()
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetDescription("Syncing users"),
						progressbar.OptionSetWidth(18),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
				}
				_ = bar.Set(done)
			}

			stats, err := syncer.Run(ctx)
			spin.Stop()
			if err != nil {
				return err
			}
			fmt.Printf("%s Synced users=%d releases=%d versions=%d\n",
				ui.ok("[OK]"), stats.Users, stats.Releases, stats.Versions)
			return nil
		},
	}
}

func machineCmd(loadCfg func() (*config.Config, error), ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Manage test machines",
	}

	var description string
	var approved bool
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a test machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			secret, err := promptSecret("Shared secret")
			if err != nil {
				return err
			}
			if secret == "" {
				return fmt.Errorf("shared secret must not be empty")
			}

			ctx := context.Background()
			db, err := repository.Open(ctx, cfg.DBPath, cfg.DBMaxConns)
			if err != nil {
				return err
			}
			defer db.Close()

			machines := repository.NewMachineRepository(db)
			id, err := machines.Create(ctx, domain.Machine{
				Name:        args[0],
				SecretKey:   secret,
				Description: description,
				IsActive:    true,
				IsApproved:  approved,
			})
			if err != nil {
				return err
			}
			if approved {
				fmt.Printf("%s Machine %s registered and approved (id=%d)\n", ui.ok("[OK]"), args[0], id)
			} else {
				fmt.Printf("%s Machine %s registered (id=%d), awaiting approval\n", ui.info("[INFO]"), args[0], id)
			}
			return nil
		},
	}
	add.Flags().StringVar(&description, "description", "", "Machine description (platform, compiler)")
	add.Flags().BoolVar(&approved, "approve", false, "Approve the machine immediately")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered machines",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			ctx := context.Background()
			db, err := repository.Open(ctx, cfg.DBPath, cfg.DBMaxConns)
			if err != nil {
				return err
			}
			defer db.Close()

			machines, err := repository.NewMachineRepository(db).List(ctx)
			if err != nil {
				return err
			}
			for _, m := range machines {
				state := ui.ok("active")
				if !m.IsActive {
					state = ui.warn("inactive")
				}
				fmt.Printf("%-20s %s tests=%d last=%s\n", m.Name, state, m.Tests, m.LastTestDate)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	b, err := termReadPassword()
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func termReadPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		return []byte(strings.TrimSpace(line)), err
	}
	return term.ReadPassword(fd)
}
