// internal/pkg/config/config.go
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是整个服务的配置根结构，从 YAML 文件加载，
// 个别字段允许通过环境变量覆盖（见 Load）。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
	Order OrderConfig `yaml:"order"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	OrderEventTopic string   `yaml:"orderEventTopic"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type ZookeeperConfig struct {
	Enabled bool     `yaml:"enabled"`
	Servers []string `yaml:"servers"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// OrderConfig 聚合了订单核心的业务参数：超时兜底任务与下游目录服务的弹性策略。
type OrderConfig struct {
	PaymentTimeout        time.Duration `yaml:"paymentTimeout"`        // 超过该时长未支付的订单被自动取消
	PaymentSweepInterval  time.Duration `yaml:"paymentSweepInterval"`  // 支付超时扫描周期
	DeliveryTimeout       time.Duration `yaml:"deliveryTimeout"`       // 派送中订单的滞留阈值
	DeliverySweepInterval time.Duration `yaml:"deliverySweepInterval"` // 派送兜底扫描周期

	Catalog CatalogConfig `yaml:"catalog"`
}

// CatalogConfig 是调用商品目录服务时的弹性参数。
// 显式配置结构体取代注解式的重试/熔断声明。
type CatalogConfig struct {
	BaseURL          string        `yaml:"baseURL"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	InitialBackoff   time.Duration `yaml:"initialBackoff"`
	MaxBackoff       time.Duration `yaml:"maxBackoff"`
	BackoffFactor    float64       `yaml:"backoffFactor"`
	FailureThreshold int           `yaml:"failureThreshold"`
	CoolDown         time.Duration `yaml:"coolDown"`
	RatePerSecond    int           `yaml:"ratePerSecond"`
	RateBurst        int           `yaml:"rateBurst"`
	CacheTTL         time.Duration `yaml:"cacheTTL"`
}

// Default 返回一份可直接运行的默认配置，Load 在其之上做增量覆盖。
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "order-service", Port: 8081, LogLevel: "info"},
		Infra: InfraConfig{
			MySQL:  MySQLConfig{Host: "localhost", Port: 3306, User: "root", Database: "takeout"},
			Redis:  RedisConfig{Addr: "localhost:6379"},
			Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}, OrderEventTopic: "order-events"},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:  NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Order: OrderConfig{
			PaymentTimeout:        15 * time.Minute,
			PaymentSweepInterval:  time.Minute,
			DeliveryTimeout:       time.Hour,
			DeliverySweepInterval: 24 * time.Hour,
			Catalog: CatalogConfig{
				BaseURL:          "http://localhost:8090",
				Timeout:          2 * time.Second,
				MaxAttempts:      3,
				InitialBackoff:   100 * time.Millisecond,
				MaxBackoff:       time.Second,
				BackoffFactor:    1.5,
				FailureThreshold: 5,
				CoolDown:         30 * time.Second,
				RatePerSecond:    50,
				RateBurst:        100,
				CacheTTL:         5 * time.Minute,
			},
		},
	}
}

// Load 读取 path 指向的 YAML 配置；path 为空时仅返回默认值加环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// 部署环境里最常变化的几项允许用环境变量覆盖，避免为每个环境维护一份文件。
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		cfg.Infra.MySQL.Host = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		cfg.Infra.MySQL.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = splitComma(v)
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("CATALOG_BASE_URL"); v != "" {
		cfg.Order.Catalog.BaseURL = v
	}
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
