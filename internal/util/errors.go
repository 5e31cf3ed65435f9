package util

import "errors"

var (
	// ErrModelUnavailable 估计器能力缺失或加载失败，致命，不做静默回退
	ErrModelUnavailable = errors.New("probability estimator unavailable")

	// ErrSchemaInconsistent 同一批内混用训练/推理 schema，对该批致命
	ErrSchemaInconsistent = errors.New("batch mixes training and inference schemas")
)
