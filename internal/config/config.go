package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres   = "postgres"
	BackendKubernetes = "kubernetes"
	BackendAPI        = "api"
	BackendPrometheus = "prometheus"
)

type Config struct {
	Run         RunConfig
	Promotion   PromotionConfig
	Tracking    TrackingConfig
	Registry    RegistryConfig
	Metrics     MetricsConfig
	Database    DatabaseConfig
	RegistryAPI RegistryAPIConfig
	Kubernetes  KubernetesConfig
	Prometheus  PrometheusConfig
	ObjectStore ObjectStoreConfig
	Server      ServerConfig
	Logger      LoggerConfig
}

// RunConfig is the explicit run context the evaluation executes under.
type RunConfig struct {
	RunID          string
	ExperimentName string
	Workspace      string
}

type PromotionConfig struct {
	Policy             string
	Metric             string
	ArtifactPath       string
	VerifyArtifactPath bool
	SearchPageSize     int
	MaxScannedRuns     int
}

type TrackingConfig struct {
	Backend string
}

type RegistryConfig struct {
	Backend string
}

type MetricsConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// RegistryAPIConfig points at a model-registry-service deployment.
type RegistryAPIConfig struct {
	URL              string
	Token            string
	Timeout          time.Duration
	Framework        string
	FrameworkVersion string
}

type KubernetesConfig struct {
	InCluster      bool
	KubeConfigPath string
	Namespace      string
}

type PrometheusConfig struct {
	URL     string
	Timeout time.Duration
	Metrics []string
}

type ObjectStoreConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

type ServerConfig struct {
	Host string
	Port int
}

type LoggerConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default so that AutomaticEnv and
// Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("RUN_ID", "")
	v.SetDefault("EXPERIMENT_NAME", "")
	v.SetDefault("WORKSPACE", "")

	v.SetDefault("PROMOTION_POLICY", "always")
	v.SetDefault("PROMOTION_METRIC", "val_accuracy")
	v.SetDefault("ARTIFACT_PATH", "./outputs/exports")
	v.SetDefault("VERIFY_ARTIFACT_PATH", true)
	v.SetDefault("RUN_SEARCH_PAGE_SIZE", 50)
	v.SetDefault("RUN_SEARCH_MAX", 1000)

	v.SetDefault("TRACKING_BACKEND", BackendPostgres)
	v.SetDefault("REGISTRY_BACKEND", BackendPostgres)
	v.SetDefault("METRICS_BACKEND", BackendPostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "mlops")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 1)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REGISTRY_API_URL", "http://localhost:8080")
	v.SetDefault("REGISTRY_API_TOKEN", "")
	v.SetDefault("REGISTRY_API_TIMEOUT", "30s")
	v.SetDefault("REGISTRY_API_FRAMEWORK", "tensorflow")
	v.SetDefault("REGISTRY_API_FRAMEWORK_VERSION", "2")

	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBERNETES_KUBECONFIG", "")
	v.SetDefault("KUBERNETES_NAMESPACE", "training")

	v.SetDefault("PROMETHEUS_URL", "http://localhost:9090")
	v.SetDefault("PROMETHEUS_TIMEOUT", "30s")
	v.SetDefault("PROMETHEUS_METRICS", "val_accuracy")

	v.SetDefault("OBJECTSTORE_ENABLED", false)
	v.SetDefault("OBJECTSTORE_ENDPOINT", "localhost:9000")
	v.SetDefault("OBJECTSTORE_ACCESS_KEY", "")
	v.SetDefault("OBJECTSTORE_SECRET_KEY", "")
	v.SetDefault("OBJECTSTORE_REGION", "us-east-1")
	v.SetDefault("OBJECTSTORE_USE_SSL", false)
	v.SetDefault("OBJECTSTORE_BUCKET", "models")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)

	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "text")
}

// Load reads configuration from v. A nil v reads defaults and the environment only.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}
	v.AutomaticEnv()

	cfg := &Config{
		Run: RunConfig{
			RunID:          v.GetString("RUN_ID"),
			ExperimentName: v.GetString("EXPERIMENT_NAME"),
			Workspace:      v.GetString("WORKSPACE"),
		},
		Promotion: PromotionConfig{
			Policy:             v.GetString("PROMOTION_POLICY"),
			Metric:             v.GetString("PROMOTION_METRIC"),
			ArtifactPath:       v.GetString("ARTIFACT_PATH"),
			VerifyArtifactPath: v.GetBool("VERIFY_ARTIFACT_PATH"),
			SearchPageSize:     v.GetInt("RUN_SEARCH_PAGE_SIZE"),
			MaxScannedRuns:     v.GetInt("RUN_SEARCH_MAX"),
		},
		Tracking: TrackingConfig{Backend: strings.ToLower(v.GetString("TRACKING_BACKEND"))},
		Registry: RegistryConfig{Backend: strings.ToLower(v.GetString("REGISTRY_BACKEND"))},
		Metrics:  MetricsConfig{Backend: strings.ToLower(v.GetString("METRICS_BACKEND"))},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 5*time.Minute),
		},
		RegistryAPI: RegistryAPIConfig{
			URL:              strings.TrimRight(v.GetString("REGISTRY_API_URL"), "/"),
			Token:            v.GetString("REGISTRY_API_TOKEN"),
			Timeout:          parseDuration(v.GetString("REGISTRY_API_TIMEOUT"), 30*time.Second),
			Framework:        v.GetString("REGISTRY_API_FRAMEWORK"),
			FrameworkVersion: v.GetString("REGISTRY_API_FRAMEWORK_VERSION"),
		},
		Kubernetes: KubernetesConfig{
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBERNETES_KUBECONFIG"),
			Namespace:      v.GetString("KUBERNETES_NAMESPACE"),
		},
		Prometheus: PrometheusConfig{
			URL:     strings.TrimRight(v.GetString("PROMETHEUS_URL"), "/"),
			Timeout: parseDuration(v.GetString("PROMETHEUS_TIMEOUT"), 30*time.Second),
			Metrics: splitList(v.GetString("PROMETHEUS_METRICS")),
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:   v.GetBool("OBJECTSTORE_ENABLED"),
			Endpoint:  v.GetString("OBJECTSTORE_ENDPOINT"),
			AccessKey: v.GetString("OBJECTSTORE_ACCESS_KEY"),
			SecretKey: v.GetString("OBJECTSTORE_SECRET_KEY"),
			Region:    v.GetString("OBJECTSTORE_REGION"),
			UseSSL:    v.GetBool("OBJECTSTORE_USE_SSL"),
			Bucket:    v.GetString("OBJECTSTORE_BUCKET"),
		},
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Tracking.Backend {
	case BackendPostgres, BackendKubernetes:
	default:
		return fmt.Errorf("unsupported tracking backend %q", c.Tracking.Backend)
	}
	switch c.Registry.Backend {
	case BackendPostgres, BackendAPI:
	default:
		return fmt.Errorf("unsupported registry backend %q", c.Registry.Backend)
	}
	switch c.Metrics.Backend {
	case BackendPostgres, BackendPrometheus:
	default:
		return fmt.Errorf("unsupported metrics backend %q", c.Metrics.Backend)
	}
	if c.ObjectStore.Enabled {
		if strings.Contains(c.ObjectStore.Endpoint, "://") {
			return fmt.Errorf("object store endpoint must not include scheme: %q", c.ObjectStore.Endpoint)
		}
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("object store bucket is required")
		}
	}
	return nil
}

// NeedsDatabase reports whether any selected backend reads Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Tracking.Backend == BackendPostgres ||
		c.Registry.Backend == BackendPostgres ||
		c.Metrics.Backend == BackendPostgres
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
