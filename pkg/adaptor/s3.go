package adaptor

import (
	"time"

	"github.com/aws/aws-sdk-go/service/s3"
)

type S3Client interface {
	PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	ListObjectsV2(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
	DeleteObject(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
	CopyObject(input *s3.CopyObjectInput) (*s3.CopyObjectOutput, error)
	HeadObject(input *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	PresignGetObject(input *s3.GetObjectInput, expire time.Duration) (string, error)
}

type S3ClientFactory func(region string) (S3Client, error)

func NewS3Client(region string) (S3Client, error) {
	ssn, err := NewSession(region)
	if err != nil {
		return nil, err
	}
	return &s3Client{S3: s3.New(ssn)}, nil
}

type s3Client struct {
	*s3.S3
}

func (x *s3Client) PresignGetObject(input *s3.GetObjectInput, expire time.Duration) (string, error) {
	req, _ := x.GetObjectRequest(input)
	return req.Presign(expire)
}
