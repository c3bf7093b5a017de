// @title Proctor 后端 API
// @version 1.0
// @description 在线竞赛监考服务：轮次生命周期、作答、违规判定、排行榜与实时推送。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"
	"proctor_backend/internal/app"
	"proctor_backend/internal/config"
	"proctor_backend/pkg/configwatcher"
	"proctor_backend/pkg/logger"

	"go.uber.org/zap"
)

const configDir = "configs"

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := configwatcher.WatchConfig(ctx, configDir+"/config.yaml", application.ApplyConfig); err != nil {
		logger.Log.Warn("Config watcher disabled", zap.Error(err))
	}

	application.Run()
}
