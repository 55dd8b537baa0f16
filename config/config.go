// api/config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server    ServerConfiguration
	Neo4j     DatabaseConfiguration
	Redis     RedisConfiguration
	Optimizer OptimizerConfiguration
	Warmup    WarmupConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI      string
	Username string
	Password string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr     string
	Password string
	DB       int
}

// OptimizerConfiguration stores tuning knobs for the memory optimizer
type OptimizerConfiguration struct {
	Enabled               bool
	MaxMemoryUsageRatio   float64
	CleanupThresholdRatio float64
	BatchSize             int
	TTLExtensionFactor    float64
	IdleThresholdSeconds  int
}

// WarmupConfiguration stores tuning knobs for the warmup strategy engine
type WarmupConfiguration struct {
	Enabled        bool
	PeakHours      []int
	MinHitRate     float64
	MaxMemoryUsage float64
	BatchSize      int
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.dialTimeout", "5s")
	viper.SetDefault("redis.readTimeout", "3s")
	viper.SetDefault("redis.writeTimeout", "3s")
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.poolTimeout", "4s")
	viper.SetDefault("log.dir", "logging")

	viper.SetDefault("cache.userPermissionsTTL", "30m")
	viper.SetDefault("cache.documentPublicTTL", "1h")
	viper.SetDefault("cache.assignmentTTL", "30m")

	viper.SetDefault("optimizer.enabled", true)
	viper.SetDefault("optimizer.maxMemoryUsageRatio", 0.8)
	viper.SetDefault("optimizer.cleanupThresholdRatio", 0.9)
	viper.SetDefault("optimizer.batchSize", 100)
	viper.SetDefault("optimizer.ttlExtensionFactor", 1.5)
	viper.SetDefault("optimizer.idleThresholdSeconds", 3600)

	viper.SetDefault("warmup.enabled", true)
	viper.SetDefault("warmup.peakHours", []int{9, 10, 11, 14, 15, 16})
	viper.SetDefault("warmup.minHitRate", 0.7)
	viper.SetDefault("warmup.maxMemoryUsage", 0.8)
	viper.SetDefault("warmup.batchSize", 100)

	viper.SetDefault("scheduler.memoryCheckSpec", "*/5 * * * *")
	viper.SetDefault("scheduler.healthCheckSpec", "*/30 * * * *")
	viper.SetDefault("scheduler.warmupSpec", "0 * * * *")
	viper.SetDefault("scheduler.deepOptimizationSpec", "0 3 * * *")
	viper.SetDefault("scheduler.weeklyReportSpec", "0 6 * * 1")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 retrieves a float64 value from the configuration
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetIntSlice retrieves an integer slice value from the configuration
func GetIntSlice(key string) []int {
	return viper.GetIntSlice(key)
}
