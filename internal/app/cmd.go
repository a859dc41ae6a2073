package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// defaultHealthcheckPort はSERVER_PORT未設定時にhealthcheckが問い合わせるポート。
const defaultHealthcheckPort = "8080"

// NewRootCommand はtaskgunのルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
// wはログとコマンド出力の書き込み先。nilの場合は標準出力を使う。
func NewRootCommand(w io.Writer) *cobra.Command {
	if w == nil {
		w = os.Stdout
	}

	serve := newServeCmd(w)

	cmd := &cobra.Command{
		Use:           "taskgun",
		Short:         "Multi-user to-do list server",
		Long:          "taskgun serves the to-do web application and provides its database maintenance commands.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.SetOut(w)
	cmd.SetErr(w)

	cmd.AddCommand(
		serve,
		newMigrateCmd(w),
		newCleanupCmd(w),
		newHealthcheckCmd(),
	)

	return cmd
}

func newServeCmd(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runServe(cfg)
		},
	}
}

func newMigrateCmd(w io.Writer) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply all pending database migrations, or roll back the given number of steps with --down.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down < 0 {
				return fmt.Errorf("--down must not be negative: %d", down)
			}
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg, down)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")

	return cmd
}

func newCleanupCmd(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runCleanup(cmd.Context(), cfg)
		},
	}
}

// newHealthcheckCmd は軽量サブコマンドのため、フル初期化をスキップする。
func newHealthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = defaultHealthcheckPort
			}
			return runHealthcheck(port)
		},
	}
}
