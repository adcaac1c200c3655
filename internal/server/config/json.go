package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/doctree/internal/flagx"
	"github.com/dmitrijs2005/doctree/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. Pointer fields tell an explicit zero from an absent
// key.
type JsonConfig struct {
	EndpointAddrHTTP   string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC   string         `json:"endpoint_addr_grpc"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	SpoolDir           string         `json:"spool_dir"`
	AMQPURL            *string        `json:"amqp_url"`
	AMQPExchange       string         `json:"amqp_exchange"`
	DirectoryCacheSize *int           `json:"directory_cache_size"`
	DirectoryCacheTTL  timex.Duration `json:"directory_cache_ttl"`
	MaxTreeDepth       int            `json:"max_tree_depth"`
	PresignExpiry      timex.Duration `json:"presign_expiry"`
	ArchiveLevel       *int           `json:"archive_level"`
	LogLevel           string         `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags, or from
// the DOCTREE_CONFIG environment variable. If neither is set, no JSON file
// is loaded. Keys missing from the file keep their current values.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SpoolDir, c.SpoolDir)
	setString(&config.AMQPExchange, c.AMQPExchange)
	setString(&config.LogLevel, c.LogLevel)

	if c.AMQPURL != nil {
		config.AMQPURL = *c.AMQPURL
	}
	if c.DirectoryCacheSize != nil {
		config.DirectoryCacheSize = *c.DirectoryCacheSize
	}
	if c.ArchiveLevel != nil {
		config.ArchiveLevel = *c.ArchiveLevel
	}
	if c.MaxTreeDepth > 0 {
		config.MaxTreeDepth = c.MaxTreeDepth
	}
	if c.DirectoryCacheTTL.Duration > 0 {
		config.DirectoryCacheTTL = c.DirectoryCacheTTL.Duration
	}
	if c.PresignExpiry.Duration > 0 {
		config.PresignExpiry = c.PresignExpiry.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
