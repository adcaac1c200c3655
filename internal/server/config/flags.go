package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/doctree/internal/flagx"
)

var flagNames = []string{"-a", "-g", "-d", "-s", "-u", "-p", "-b", "-r", "-e", "-o", "-q", "-x", "-n", "-t", "-m", "-l", "-z", "-v"}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-r string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   upload spool directory
//	-q string   AMQP URL, empty disables the publisher
//	-x string   AMQP exchange
//	-n int      directory cache size
//	-t int      directory cache TTL, seconds
//	-m int      maximum directory tree depth
//	-l int      presigned link lifetime, minutes
//	-z int      archive deflate level (use -z=-1 for the default)
//	-v string   log level
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers and then converted to
//     time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.SpoolDir, "o", config.SpoolDir, "upload spool directory")

	fs.StringVar(&config.AMQPURL, "q", config.AMQPURL, "AMQP URL")
	fs.StringVar(&config.AMQPExchange, "x", config.AMQPExchange, "AMQP exchange")

	fs.IntVar(&config.DirectoryCacheSize, "n", config.DirectoryCacheSize, "directory cache size")
	cacheTTL := fs.Int("t", int(config.DirectoryCacheTTL.Seconds()), "directory cache TTL (in seconds)")
	fs.IntVar(&config.MaxTreeDepth, "m", config.MaxTreeDepth, "maximum directory tree depth")
	presignExpiry := fs.Int("l", int(config.PresignExpiry.Minutes()), "presigned link lifetime (in minutes)")
	fs.IntVar(&config.ArchiveLevel, "z", config.ArchiveLevel, "archive deflate level")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.DirectoryCacheTTL = time.Duration(*cacheTTL) * time.Second
	config.PresignExpiry = time.Duration(*presignExpiry) * time.Minute
}
