package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/ml"
	"learning_intel_backend/internal/util"
)

// ModelStore 模型权重文件的来源，本地目录或 MinIO 桶
type ModelStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LocalModelStore 本地目录实现
type LocalModelStore struct {
	Dir string
}

func (s *LocalModelStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Dir, name))
}

// MinioModelStore MinIO 实现
type MinioModelStore struct {
	Client *minio.Client
	Bucket string
}

func (s *MinioModelStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.Client.GetObject(ctx, s.Bucket, name, minio.GetObjectOptions{})
}

func NewModelStore(cfg *config.StorageConfig) (ModelStore, error) {
	switch cfg.Type {
	case "minio":
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init minio model store: %w", err)
		}
		return &MinioModelStore{Client: client, Bucket: cfg.MinioBucket}, nil
	case "local", "":
		return &LocalModelStore{Dir: cfg.LocalPath}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// LoadEstimators 启动时一次性加载两个估计器，之后整个进程生命周期内
// 只读复用。任一模型不可用即返回错误，调用方应让启动失败，不做静默回退。
func LoadEstimators(ctx context.Context, store ModelStore, models config.ModelsConfig) (completion, dropout ml.Estimator, err error) {
	completion, err = loadOne(ctx, store, models.CompletionFile)
	if err != nil {
		return nil, nil, fmt.Errorf("completion model %q: %w: %v", models.CompletionFile, util.ErrModelUnavailable, err)
	}
	dropout, err = loadOne(ctx, store, models.DropoutFile)
	if err != nil {
		return nil, nil, fmt.Errorf("dropout model %q: %w: %v", models.DropoutFile, util.ErrModelUnavailable, err)
	}
	return completion, dropout, nil
}

func loadOne(ctx context.Context, store ModelStore, name string) (ml.Estimator, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ml.LoadLogisticModel(r)
}
