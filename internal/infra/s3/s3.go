package s3

import (
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewClient connects to the S3-compatible store that keeps payment
// screenshots. Credentials are static: the bot runs against a single bucket
// owned by the deployment.
func NewClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3: endpoint is not configured")
	}
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("s3: access credentials are not configured")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: connect to %q: %w", endpoint, err)
	}

	return client, nil
}
