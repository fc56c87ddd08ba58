package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Neo4J      Neo4JConfig      `mapstructure:"neo4j"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Heuristics HeuristicsConfig `mapstructure:"heuristics"`
	Health     HealthConfig     `mapstructure:"health"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig represents application-specific configuration
type AppConfig struct {
	Env            string `mapstructure:"env"`
	LogLevel       string `mapstructure:"log_level"`
	HTTPPort       int    `mapstructure:"http_port"`
	WorkerPoolSize int    `mapstructure:"worker_pool_size"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL                string        `mapstructure:"url"`
	StreamName         string        `mapstructure:"stream_name"`
	SubjectPrefix      string        `mapstructure:"subject_prefix"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	DurableName        string        `mapstructure:"durable_name"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	MaxPendingMessages int           `mapstructure:"max_pending_messages"`
	Enabled            bool          `mapstructure:"enabled"`
}

// Neo4JConfig represents Neo4J configuration
type Neo4JConfig struct {
	URI                          string        `mapstructure:"uri"`
	Username                     string        `mapstructure:"username"`
	Password                     string        `mapstructure:"password"`
	Database                     string        `mapstructure:"database"`
	ConnectTimeout               time.Duration `mapstructure:"connect_timeout"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout"`
}

// GraphConfig selects and tunes the graph store backend
type GraphConfig struct {
	Backend     string        `mapstructure:"backend"` // "neo4j" or "memory"
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	SeedFile    string        `mapstructure:"seed_file"` // JSON transactions loaded into the memory backend
}

// AnalysisConfig holds the limits and floors used by the analytics core
type AnalysisConfig struct {
	HistoryLimit        int           `mapstructure:"history_limit"`
	NeighborhoodLimit   int           `mapstructure:"neighborhood_limit"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	CycleMinAmount      float64       `mapstructure:"cycle_min_amount"`
	CycleMaxLength      int           `mapstructure:"cycle_max_length"`
	CycleLimit          int           `mapstructure:"cycle_limit"`
	ShellMinAmount      float64       `mapstructure:"shell_min_amount"`
	ShellMaxTimeGap     time.Duration `mapstructure:"shell_max_time_gap"`
	ShellLimit          int           `mapstructure:"shell_limit"`
	StructuringMinOps   int           `mapstructure:"structuring_min_ops"`
	StructuringLimit    int           `mapstructure:"structuring_limit"`
	OffshoreMinAmount   float64       `mapstructure:"offshore_min_amount"`
	OffshoreHighValue   float64       `mapstructure:"offshore_high_value"`
	OffshoreLimit       int           `mapstructure:"offshore_limit"`
	FlowThreshold       float64       `mapstructure:"flow_threshold"`
	FlowMaxDepth        int           `mapstructure:"flow_max_depth"`
	FlowLimit           int           `mapstructure:"flow_limit"`
	FlowBranchLimit     int           `mapstructure:"flow_branch_limit"`
	ReportingThresholds []float64     `mapstructure:"reporting_thresholds"`
	SuspectMinAmount    float64       `mapstructure:"suspect_min_amount"`
	SuspectLimit        int           `mapstructure:"suspect_limit"`
}

// HeuristicsConfig holds the jurisdiction and keyword lists behind the lexical heuristics.
// These lists are approximations without a registry behind them.
type HeuristicsConfig struct {
	OffshoreJurisdictions []string `mapstructure:"offshore_jurisdictions"`
	HighRiskJurisdictions []string `mapstructure:"high_risk_jurisdictions"`
	ShellKeywords         []string `mapstructure:"shell_keywords"`
	OffshoreKeywords      []string `mapstructure:"offshore_keywords"`
	FinancialKeywords     []string `mapstructure:"financial_keywords"`
	CorporateKeywords     []string `mapstructure:"corporate_keywords"`
	CryptoKeywords        []string `mapstructure:"crypto_keywords"`
	CorporateStructure    []string `mapstructure:"corporate_structure_keywords"`
	ShellLikeKeywords     []string `mapstructure:"shell_like_keywords"`
	CryptoCounterparty    []string `mapstructure:"crypto_counterparty_keywords"`
	PEPKeywords           []string `mapstructure:"pep_keywords"`
	SanctionedAccounts    []string `mapstructure:"sanctioned_accounts"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig represents metrics configuration. Metrics are served on the health server port.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/aml-graph-analyzer")

	// Environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	// Map environment variables to nested config keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Default values
	setDefaults()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration built from defaults only, without files or environment
func Default() *Config {
	v := viper.New()
	applyDefaults(v)
	var config Config
	// Defaults are static; a decode failure here is a programming error
	if err := v.Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

// setDefaults sets default configuration values
func setDefaults() {
	applyDefaults(viper.GetViper())

	// Bind env for NATS URL and Neo4J credentials
	viper.BindEnv("nats.url", "NATS_URL")
	viper.BindEnv("neo4j.uri", "NEO4J_URI")
	viper.BindEnv("neo4j.username", "NEO4J_USER")
	viper.BindEnv("neo4j.password", "NEO4J_PASSWORD")
}

func applyDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_port", 8080)
	v.SetDefault("app.worker_pool_size", 10)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "AML_ANALYSIS")
	v.SetDefault("nats.subject_prefix", "aml.analysis")
	v.SetDefault("nats.consumer_group", "aml-graph-analyzer")
	v.SetDefault("nats.durable_name", "aml-graph-analyzer")
	v.SetDefault("nats.connect_timeout", "10s")
	v.SetDefault("nats.reconnect_attempts", 5)
	v.SetDefault("nats.reconnect_delay", "2s")
	v.SetDefault("nats.max_pending_messages", 1000)
	v.SetDefault("nats.enabled", true)

	// Neo4J defaults
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.connect_timeout", "10s")
	v.SetDefault("neo4j.max_connection_pool_size", 50)
	v.SetDefault("neo4j.connection_acquisition_timeout", "60s")

	// Graph defaults
	v.SetDefault("graph.backend", "neo4j")
	v.SetDefault("graph.call_timeout", "5s")
	v.SetDefault("graph.seed_file", "")

	// Analysis defaults
	v.SetDefault("analysis.history_limit", 1000)
	v.SetDefault("analysis.neighborhood_limit", 500)
	v.SetDefault("analysis.request_timeout", "30s")
	v.SetDefault("analysis.cycle_min_amount", 5000.0)
	v.SetDefault("analysis.cycle_max_length", 6)
	v.SetDefault("analysis.cycle_limit", 50)
	v.SetDefault("analysis.shell_min_amount", 50000.0)
	v.SetDefault("analysis.shell_max_time_gap", "24h")
	v.SetDefault("analysis.shell_limit", 100)
	v.SetDefault("analysis.structuring_min_ops", 5)
	v.SetDefault("analysis.structuring_limit", 100)
	v.SetDefault("analysis.offshore_min_amount", 25000.0)
	v.SetDefault("analysis.offshore_high_value", 100000.0)
	v.SetDefault("analysis.offshore_limit", 100)
	v.SetDefault("analysis.flow_threshold", 10000.0)
	v.SetDefault("analysis.flow_max_depth", 5)
	v.SetDefault("analysis.flow_limit", 100)
	v.SetDefault("analysis.flow_branch_limit", 50)
	v.SetDefault("analysis.reporting_thresholds", []float64{10000, 5000, 3000})
	v.SetDefault("analysis.suspect_min_amount", 10000.0)
	v.SetDefault("analysis.suspect_limit", 100)

	// Heuristics defaults
	v.SetDefault("heuristics.offshore_jurisdictions", []string{
		"BM", "KY", "VI", "BS", "PA", "LI", "MC", "AD", "SM", "MT",
		"CY", "LU", "CH", "SG", "HK", "MY", "TH", "PH", "VU", "WS",
	})
	v.SetDefault("heuristics.high_risk_jurisdictions", []string{
		"AF", "IQ", "IR", "KP", "MM", "SO", "SY", "YE", "VE", "CU",
	})
	v.SetDefault("heuristics.shell_keywords", []string{"SHELL", "HOLDING", "SPV"})
	v.SetDefault("heuristics.offshore_keywords", []string{"OFFSHORE", "BVI", "CAYMAN"})
	v.SetDefault("heuristics.financial_keywords", []string{"BANK", "CREDIT", "FINANCE"})
	v.SetDefault("heuristics.corporate_keywords", []string{"CORP", "LLC", "LTD", "INC"})
	v.SetDefault("heuristics.crypto_keywords", []string{"EXCHANGE", "CRYPTO", "COIN"})
	v.SetDefault("heuristics.corporate_structure_keywords", []string{"LLC", "LTD", "INC", "CORP", "HOLDING", "INVEST", "CAPITAL"})
	v.SetDefault("heuristics.shell_like_keywords", []string{"SHELL", "HOLDING", "SPV", "INVEST", "CAPITAL", "MANAGEMENT"})
	v.SetDefault("heuristics.crypto_counterparty_keywords", []string{"EXCHANGE", "CRYPTO", "BTC", "ETH", "COIN"})
	v.SetDefault("heuristics.pep_keywords", []string{"MINISTER", "SENATOR", "MAYOR", "GOVERNOR", "AMBASSADOR"})
	v.SetDefault("heuristics.sanctioned_accounts", []string{})

	// Health defaults
	v.SetDefault("health.interval", "30s")
	v.SetDefault("health.timeout", "5s")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
}
