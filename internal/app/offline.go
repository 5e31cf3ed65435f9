package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/service"
)

// RunOffline 离线批量预测：读 CSV，跑完整管线，把结果写成 JSON
// 不连数据库和 Redis，模型来源与在线模式相同
func RunOffline(cfg *config.Config) error {
	store, err := service.NewModelStore(&cfg.Storage)
	if err != nil {
		return err
	}
	completion, dropout, err := service.LoadEstimators(context.Background(), store, cfg.Models)
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.PredictFile)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	rows, err := service.ParseCSVRows(f)
	if err != nil {
		return err
	}

	predictionService := service.NewPredictionService(nil, nil, completion, dropout, cfg.Pipeline)
	result, err := predictionService.PredictBatch(rows)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	if cfg.OutputFile != "" {
		if err := os.WriteFile(cfg.OutputFile, out, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("Results saved to %s\n", cfg.OutputFile)
		return nil
	}

	fmt.Println(string(out))
	return nil
}
