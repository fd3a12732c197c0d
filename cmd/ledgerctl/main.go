package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockward/backend/config"
	"blockward/backend/internal/repository"
	"blockward/backend/internal/service"
	"blockward/backend/pkg/database"
	"blockward/backend/pkg/jwt"
	applogger "blockward/backend/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cliEnv 子命令共享的依赖
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
}

func (r *cliEnv) close() {
	if r.sqlDB != nil {
		r.sqlDB.Close()
	}
	_ = r.logger.Sync()
}

func (r *cliEnv) services() *service.Service {
	// 运维命令不发布领域事件
	return service.NewService(r.cfg, repository.NewRepository(r.db), nil, r.logger)
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Maintenance tool for the blockward invitation and reward ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BLOCKWARD_CONFIG"), "Path to config.yaml")

	open := func(withDB bool) (*cliEnv, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger, err := applogger.NewLogger(&cfg.Log)
		if err != nil {
			return nil, err
		}
		rt := &cliEnv{cfg: cfg, logger: applogger.Named(logger, "ledgerctl")}
		if !withDB {
			return rt, nil
		}
		rt.db, err = database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			return nil, err
		}
		rt.sqlDB, err = rt.db.DB()
		if err != nil {
			return nil, err
		}
		return rt, nil
	}

	cmd.AddCommand(newMigrateCommand(open))
	cmd.AddCommand(newReconcileCommand(open))
	cmd.AddCommand(newSweepCommand(open))
	cmd.AddCommand(newTokenCommand(open))
	return cmd
}

type opener func(withDB bool) (*cliEnv, error)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(true)
			if err != nil {
				return err
			}
			defer rt.close()
			return database.RunMigrations(rt.sqlDB, rt.logger)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the given number of migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(true)
			if err != nil {
				return err
			}
			defer rt.close()
			return database.RollbackMigrations(rt.sqlDB, steps, rt.logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)
	return cmd
}

func newReconcileCommand(open opener) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute token owners from the ledger and report drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(true)
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.services().Ledger.Reconcile(commandContext(cmd), fix)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !fix && len(report.Drifted) > 0 {
				return fmt.Errorf("发现 %d 个持有人投影偏差，使用 --fix 修复", len(report.Drifted))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Repair drifted owner projections")
	return cmd
}

func newSweepCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue invitation codes expired and purge old ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(true)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.services().Invitation.SweepExpired(commandContext(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

// newTokenCommand 签发本地调试用的 Access Token
func newTokenCommand(open opener) *cobra.Command {
	var userID, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(false)
			if err != nil {
				return err
			}
			defer rt.close()

			token, err := jwt.NewManager(&rt.cfg.Auth).GenerateAccessToken(userID, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID placed in the token")
	cmd.Flags().StringVar(&role, "role", "teacher", "Role: teacher, student or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
