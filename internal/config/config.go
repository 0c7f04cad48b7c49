package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every value oscard reads from its environment. Fields mirror
// the env vars a cluster operator sets on the controller's pod spec.
type Config struct {
	// HTTP server
	APIPort string `mapstructure:"API_PORT"`

	// Cluster control API
	KubernetesServiceHost string `mapstructure:"KUBERNETES_SERVICE_HOST"`
	KubernetesServicePort string `mapstructure:"KUBERNETES_SERVICE_PORT"`
	KubeConfig            string `mapstructure:"KUBECONFIG"` // loaded but not read; the cluster client always uses the in-cluster service account

	// Build settings
	BuildWorkDir      string        `mapstructure:"BUILD_WORK_DIR"`
	DockerRegistry    string        `mapstructure:"DOCKER_REGISTRY"`
	SupervisorVersion string        `mapstructure:"SUPERVISOR_VERSION"`
	WatchdogVersion   string        `mapstructure:"WATCHDOG_VERSION"`
	PollInterval      time.Duration `mapstructure:"POLL_INTERVAL"`

	// Object store (MinIO or any S3-compatible endpoint)
	MinioEndpoint string `mapstructure:"MINIO_ENDPOINT"`
	MinioUser     string `mapstructure:"MINIO_USER"`
	MinioPass     string `mapstructure:"MINIO_PASS"`
	WebhookARN    string `mapstructure:"STORAGE_WEBHOOK_ARN"`

	// FaaS runtime
	OpenfaasEndpoint string `mapstructure:"OPENFAAS_ENDPOINT"`

	// Distributed filesystem notifier side-car
	OnetriggerVersion string `mapstructure:"ONETRIGGER_VERSION"`

	// Idempotency lock
	RedisURL string `mapstructure:"REDIS_URL"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

func Load() (*Config, error) {
	viper.SetDefault("API_PORT", "8080")
	viper.SetDefault("KUBERNETES_SERVICE_HOST", "kubernetes.default")
	viper.SetDefault("KUBERNETES_SERVICE_PORT", "443")
	viper.SetDefault("BUILD_WORK_DIR", "/pv/kaniko-builds")
	viper.SetDefault("DOCKER_REGISTRY", "registry.local")
	viper.SetDefault("SUPERVISOR_VERSION", "latest")
	viper.SetDefault("WATCHDOG_VERSION", "latest")
	viper.SetDefault("POLL_INTERVAL", 5*time.Second)
	viper.SetDefault("ONETRIGGER_VERSION", "latest")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.BindEnv("API_PORT")
	viper.BindEnv("KUBERNETES_SERVICE_HOST")
	viper.BindEnv("KUBERNETES_SERVICE_PORT")
	viper.BindEnv("KUBECONFIG")
	viper.BindEnv("BUILD_WORK_DIR")
	viper.BindEnv("DOCKER_REGISTRY")
	viper.BindEnv("SUPERVISOR_VERSION")
	viper.BindEnv("WATCHDOG_VERSION")
	viper.BindEnv("POLL_INTERVAL")
	viper.BindEnv("MINIO_ENDPOINT")
	viper.BindEnv("MINIO_USER")
	viper.BindEnv("MINIO_PASS")
	viper.BindEnv("STORAGE_WEBHOOK_ARN")
	viper.BindEnv("OPENFAAS_ENDPOINT")
	viper.BindEnv("ONETRIGGER_VERSION")
	viper.BindEnv("REDIS_URL")
	viper.BindEnv("LOG_LEVEL")

	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
