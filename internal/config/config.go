package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig  `mapstructure:"storage"`
	Models   ModelsConfig   `mapstructure:"models"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	CORS     CORSConfig     `mapstructure:"cors"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	MigrateOnly bool   `mapstructure:"-"` // 仅迁移模式（迁移后退出）
	PredictFile string `mapstructure:"-"` // 离线批量预测输入 CSV
	OutputFile  string `mapstructure:"-"` // 离线预测结果输出 JSON
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

// StorageConfig 模型库存储，本地目录或 MinIO 桶
type StorageConfig struct {
	Type          string `mapstructure:"type"` // local | minio
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

// ModelsConfig 两个概率估计器的权重文件名，启动时加载失败即启动失败
type ModelsConfig struct {
	CompletionFile string `mapstructure:"completion_file"`
	DropoutFile    string `mapstructure:"dropout_file"`
}

// 校验/风险/难度策略常量
const (
	ValidationModeTraining  = "training"  // 任何无效行中止整批
	ValidationModeInference = "inference" // 跳过无效行并记入边报告

	RiskPolicyThreshold  = "threshold"  // 固定概率阈值
	RiskPolicyPercentile = "percentile" // 课程内百分位(两遍计算)

	DifficultyRuleMeanStdDev = "mean_stddev" // 均值 + 1 倍标准差
	DifficultyRuleFixed      = "fixed"       // 固定阈值
)

// PipelineConfig 管线策略，全部显式配置，支持热更新
type PipelineConfig struct {
	ValidationMode string `mapstructure:"validation_mode"`

	RiskPolicy         string  `mapstructure:"risk_policy"`
	HighRiskBelow      float64 `mapstructure:"high_risk_below"`      // threshold 策略
	MediumRiskBelow    float64 `mapstructure:"medium_risk_below"`    // threshold 策略
	HighRiskFraction   float64 `mapstructure:"high_risk_fraction"`   // percentile 策略
	MediumRiskFraction float64 `mapstructure:"medium_risk_fraction"` // percentile 策略

	DifficultyRule      string  `mapstructure:"difficulty_rule"`
	DifficultyThreshold float64 `mapstructure:"difficulty_threshold"` // fixed 规则

	// 参与度得分 = 时间权重*clamp(平均章节时长/参考时长,0,1) + 分数权重*(平均分/100)
	EngagementTimeWeight  float64 `mapstructure:"engagement_time_weight"`
	EngagementScoreWeight float64 `mapstructure:"engagement_score_weight"`
	EngagementRefTimeMin  float64 `mapstructure:"engagement_ref_time_min"`

	InsightCacheTTLMin int `mapstructure:"insight_cache_ttl_min"`
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "models")
	viper.SetDefault("models.completion_file", "completion_model.json")
	viper.SetDefault("models.dropout_file", "dropout_model.json")

	viper.SetDefault("pipeline.validation_mode", ValidationModeInference)
	viper.SetDefault("pipeline.risk_policy", RiskPolicyThreshold)
	viper.SetDefault("pipeline.high_risk_below", 0.3)
	viper.SetDefault("pipeline.medium_risk_below", 0.6)
	viper.SetDefault("pipeline.high_risk_fraction", 0.2)
	viper.SetDefault("pipeline.medium_risk_fraction", 0.3)
	viper.SetDefault("pipeline.difficulty_rule", DifficultyRuleMeanStdDev)
	viper.SetDefault("pipeline.difficulty_threshold", 0.5)
	viper.SetDefault("pipeline.engagement_time_weight", 0.5)
	viper.SetDefault("pipeline.engagement_score_weight", 0.5)
	viper.SetDefault("pipeline.engagement_ref_time_min", 60)
	viper.SetDefault("pipeline.insight_cache_ttl_min", 10)
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LEARN_INTEL")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage / 模型库
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.local_path", "STORAGE_LOCAL_PATH")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 拒绝无法解释的策略组合，热更新时同样适用
func (p *PipelineConfig) Validate() error {
	switch p.ValidationMode {
	case ValidationModeTraining, ValidationModeInference:
	default:
		return fmt.Errorf("invalid pipeline.validation_mode %q", p.ValidationMode)
	}

	switch p.RiskPolicy {
	case RiskPolicyThreshold:
		if !(p.HighRiskBelow > 0 && p.HighRiskBelow < p.MediumRiskBelow && p.MediumRiskBelow <= 1) {
			return fmt.Errorf("invalid risk thresholds: high_risk_below=%v medium_risk_below=%v", p.HighRiskBelow, p.MediumRiskBelow)
		}
	case RiskPolicyPercentile:
		if p.HighRiskFraction <= 0 || p.HighRiskFraction > 1 {
			return fmt.Errorf("invalid pipeline.high_risk_fraction %v", p.HighRiskFraction)
		}
		if p.MediumRiskFraction < 0 || p.HighRiskFraction+p.MediumRiskFraction > 1 {
			return fmt.Errorf("invalid pipeline.medium_risk_fraction %v", p.MediumRiskFraction)
		}
	default:
		return fmt.Errorf("invalid pipeline.risk_policy %q", p.RiskPolicy)
	}

	switch p.DifficultyRule {
	case DifficultyRuleMeanStdDev:
	case DifficultyRuleFixed:
		if p.DifficultyThreshold < 0 || p.DifficultyThreshold > 1 {
			return fmt.Errorf("invalid pipeline.difficulty_threshold %v", p.DifficultyThreshold)
		}
	default:
		return fmt.Errorf("invalid pipeline.difficulty_rule %q", p.DifficultyRule)
	}

	if p.EngagementTimeWeight < 0 || p.EngagementScoreWeight < 0 ||
		p.EngagementTimeWeight+p.EngagementScoreWeight == 0 {
		return fmt.Errorf("invalid engagement weights: time=%v score=%v", p.EngagementTimeWeight, p.EngagementScoreWeight)
	}
	if p.EngagementRefTimeMin <= 0 {
		return fmt.Errorf("invalid pipeline.engagement_ref_time_min %v", p.EngagementRefTimeMin)
	}

	return nil
}
