// 手动导入章节记录脚本
//
// 把一份训练 schema 的 CSV(含 completed 列)灌进数据库并对涉及的课程
// 各评一次分，适合首次部署或课程洞察演示前的数据准备。
//
// 用法: go run scripts/seed_records.go data/sample_records.csv

package main

import (
	"context"
	"log"
	"os"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/repository"
	"learning_intel_backend/internal/service"
	"learning_intel_backend/pkg/database"
	"learning_intel_backend/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("用法: go run scripts/seed_records.go <records.csv>")
	}
	csvPath := os.Args[1]

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		log.Fatalf("无法打开 CSV 文件: %v", err)
	}
	defer f.Close()

	rows, err := service.ParseCSVRows(f)
	if err != nil {
		log.Fatalf("解析 CSV 失败: %v", err)
	}

	recordRepo := repository.NewChapterRecordRepository(db)
	predictionRepo := repository.NewPredictionRepository(db)

	store, err := service.NewModelStore(&cfg.Storage)
	if err != nil {
		log.Fatalf("初始化模型库失败: %v", err)
	}
	completion, dropout, err := service.LoadEstimators(context.Background(), store, cfg.Models)
	if err != nil {
		log.Fatalf("加载模型失败: %v", err)
	}
	prediction := service.NewPredictionService(recordRepo, predictionRepo, completion, dropout, cfg.Pipeline)

	n, err := prediction.IngestRecords(rows)
	if err != nil {
		log.Fatalf("入库失败: %v", err)
	}
	log.Printf("已入库 %d 条章节记录", n)

	courses, err := recordRepo.ListCourses()
	if err != nil {
		log.Fatalf("读取课程列表失败: %v", err)
	}
	for _, courseID := range courses {
		batchID, predictions, _, err := prediction.ScoreCourse(courseID)
		if err != nil {
			log.Fatalf("课程 %s 评分失败: %v", courseID, err)
		}
		log.Printf("课程 %s: 批次 %s, %d 名学生", courseID, batchID, len(predictions))
	}
	log.Println("完成！")
}
