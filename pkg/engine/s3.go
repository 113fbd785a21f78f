package engine

import (
	"fmt"
	"os"
	"strings"
)

// S3Config holds configuration for S3-compatible storage (AWS S3, MinIO, etc.)
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // e.g. "http://localhost:9000" for MinIO, empty for AWS
	Region          string
	UseSSL          bool
	URLStyle        string // "path" or "vhost"
}

// LoadS3ConfigFromEnv loads S3 configuration from environment variables.
//
// Environment variables:
//   - S3_ACCESS_KEY_ID or AWS_ACCESS_KEY_ID
//   - S3_SECRET_ACCESS_KEY or AWS_SECRET_ACCESS_KEY
//   - S3_ENDPOINT or AWS_ENDPOINT_URL (optional, for MinIO)
//   - S3_REGION or AWS_REGION (optional, defaults to "us-east-1")
//   - S3_USE_SSL (optional, "true"/"false")
//   - S3_URL_STYLE (optional, "path" or "vhost")
//
// When neither key is set the returned config has empty credentials and the
// default AWS credential chain is used.
func LoadS3ConfigFromEnv() (*S3Config, error) {
	accessKeyID := firstEnv("S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	secretAccessKey := firstEnv("S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")

	if accessKeyID == "" && secretAccessKey != "" {
		return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY or AWS_SECRET_ACCESS_KEY is set but S3_ACCESS_KEY_ID or AWS_ACCESS_KEY_ID is missing")
	}
	if accessKeyID != "" && secretAccessKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY_ID or AWS_ACCESS_KEY_ID is set but S3_SECRET_ACCESS_KEY or AWS_SECRET_ACCESS_KEY is missing (leave both unset to use the default credential chain)")
	}

	endpoint := firstEnv("S3_ENDPOINT", "AWS_ENDPOINT_URL")
	region := firstEnv("S3_REGION", "AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	// A non-AWS endpoint is assumed to be MinIO.
	isMinIO := endpoint != "" && !strings.Contains(endpoint, "amazonaws.com")
	useSSL := !isMinIO
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		useSSL = v == "true" || v == "1"
	}
	urlStyle := "path"
	if v := os.Getenv("S3_URL_STYLE"); v != "" {
		urlStyle = v
	}

	if isMinIO && (accessKeyID == "" || secretAccessKey == "") {
		return nil, fmt.Errorf("MinIO requires both S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY to be set (endpoint: %s)", endpoint)
	}

	return &S3Config{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		Endpoint:        endpoint,
		Region:          region,
		UseSSL:          useSSL,
		URLStyle:        urlStyle,
	}, nil
}

// HasStaticCredentials reports whether explicit keys were configured.
func (c *S3Config) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// secretSQL builds the DuckDB CREATE SECRET statement for this config.
func (c *S3Config) secretSQL(name string) string {
	stmt := fmt.Sprintf("CREATE SECRET IF NOT EXISTS %s (TYPE s3", name)
	if c.HasStaticCredentials() {
		stmt += fmt.Sprintf(", KEY_ID '%s'", escapeLiteral(c.AccessKeyID))
		stmt += fmt.Sprintf(", SECRET '%s'", escapeLiteral(c.SecretAccessKey))
	} else {
		stmt += ", PROVIDER credential_chain"
	}
	if c.Endpoint != "" {
		// DuckDB expects host:port without a scheme.
		endpoint := strings.TrimPrefix(strings.TrimPrefix(c.Endpoint, "http://"), "https://")
		stmt += fmt.Sprintf(", ENDPOINT '%s'", escapeLiteral(endpoint))
	}
	if c.Region != "" {
		stmt += fmt.Sprintf(", REGION '%s'", escapeLiteral(c.Region))
	}
	stmt += fmt.Sprintf(", URL_STYLE '%s'", escapeLiteral(c.URLStyle))
	stmt += fmt.Sprintf(", USE_SSL %t", c.UseSSL)
	return stmt + ")"
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
