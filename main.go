// @title PaperFlow 试卷处理 API
// @version 1.0
// @description 试卷上传、AI 抽题、人工审核与发布。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"fmt"
	"os"

	"paperflow_backend/internal/app"
	"paperflow_backend/internal/config"
	"paperflow_backend/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir    string
	forceMigrate bool
)

var rootCmd = &cobra.Command{
	Use:   "paperflow",
	Short: "Test paper ingestion and review service",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server with background workers",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		forceMigrate = true
		a, err := bootstrap()
		if err != nil {
			return err
		}
		a.Close(cmd.Context())
		fmt.Println("数据库迁移完成")
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process <jobID>",
	Short: "Run extraction for one job synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		paper, err := a.Pipeline().StartProcessing(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("job %s is now %s\n", paper.ID, paper.Status)
		return nil
	},
}

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Fail jobs stuck in processing beyond pipeline.stuck_after",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		n, err := a.Pipeline().ReapStuckJobs(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("reaped %d job(s)\n", n)
		return nil
	},
}

func bootstrap() (*app.App, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ForceMigrate = forceMigrate
	return app.NewApp(cfg, configDir)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	if err := a.Run(); err != nil {
		logger.Log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "configs", "配置目录")
	rootCmd.PersistentFlags().BoolVar(&forceMigrate, "migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	rootCmd.AddCommand(serveCmd, migrateCmd, processCmd, reapCmd)
}

func main() {
	// .env 可选
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
