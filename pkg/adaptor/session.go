package adaptor

import (
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

const (
	// Retries are handled once here; services never retry on their own.
	maxRetries = 3
	// Connection pool shared by every service client.
	maxPoolConns   = 50
	requestTimeout = 30 * time.Second
)

// NewSession returns a session with the fixed retry policy and connection
// pool used by all service clients.
func NewSession(region string) (*session.Session, error) {
	return session.NewSession(&aws.Config{
		Region:     aws.String(region),
		MaxRetries: aws.Int(maxRetries),
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxPoolConns,
				MaxIdleConnsPerHost: maxPoolConns,
			},
		},
	})
}
