package arguments_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personify/pkg/arguments"
)

func TestNewReadsDefaults(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("DATA_BUCKET", "my-bucket")

	args := arguments.New()
	assert.Equal(t, "eu-west-1", args.AwsRegion)
	assert.Equal(t, "my-bucket", args.DataBucket)
	assert.Equal(t, "recommendations", args.RecommendationsTable)
	assert.Equal(t, "personify-dsg", args.DatasetGroupName)
	assert.Equal(t, "noreply@example.com", args.FromAddress)
}

func TestValidate(t *testing.T) {
	t.Run("valid settings pass", func(t *testing.T) {
		args := &arguments.Arguments{
			AwsRegion:  "us-east-1",
			APIKey:     "secret",
			DataBucket: "bucket",
		}
		require.NoError(t, args.Validate())
	})

	t.Run("region outside the allow-list fails", func(t *testing.T) {
		args := &arguments.Arguments{
			AwsRegion:  "mars-north-1",
			APIKey:     "secret",
			DataBucket: "bucket",
		}
		assert.Error(t, args.Validate())
	})

	t.Run("empty API key fails", func(t *testing.T) {
		args := &arguments.Arguments{
			AwsRegion:  "us-east-1",
			DataBucket: "bucket",
		}
		assert.Error(t, args.Validate())
	})

	t.Run("empty bucket fails", func(t *testing.T) {
		args := &arguments.Arguments{
			AwsRegion: "us-east-1",
			APIKey:    "secret",
		}
		assert.Error(t, args.Validate())
	})
}
