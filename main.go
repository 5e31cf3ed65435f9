// @title Learning Intelligence API
// @version 1.0
// @description 学习平台的完课预测与辍学风险分析服务。

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api

package main

import (
	"flag"
	"log"

	"learning_intel_backend/internal/app"
	"learning_intel_backend/internal/config"
	"learning_intel_backend/pkg/logger"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	predictFile := flag.String("predict", "", "离线批量预测：输入 CSV 文件，完成后退出")
	outputFile := flag.String("output", "", "离线预测结果输出 JSON 文件（缺省打印到标准输出）")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.MigrateOnly = *migrateOnly
	cfg.PredictFile = *predictFile
	cfg.OutputFile = *outputFile

	// 离线预测模式：不起服务器，不连数据库
	if cfg.PredictFile != "" {
		if err := app.RunOffline(cfg); err != nil {
			log.Fatalf("Offline prediction failed: %v", err)
		}
		return
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
