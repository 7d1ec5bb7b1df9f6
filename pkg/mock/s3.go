package mock

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"

	"personify/pkg/adaptor"
)

type s3Object struct {
	body         []byte
	contentType  string
	metadata     map[string]*string
	lastModified time.Time
	storageClass string
}

// S3Client is an in-memory mock of adaptor.S3Client.
type S3Client struct {
	Region  string
	objects map[string]map[string]*s3Object
}

// NewS3Mock returns a factory and the client it will hand out, so tests can
// inspect state after the code under test ran.
func NewS3Mock() (adaptor.S3ClientFactory, *S3Client) {
	client := &S3Client{
		objects: make(map[string]map[string]*s3Object),
	}
	return func(region string) (adaptor.S3Client, error) {
		client.Region = region
		return client, nil
	}, client
}

func etagOf(body []byte) string {
	return fmt.Sprintf("%x", md5.Sum(body))
}

func (x *S3Client) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	bucket, ok := x.objects[*input.Bucket]
	if !ok {
		bucket = make(map[string]*s3Object)
		x.objects[*input.Bucket] = bucket
	}

	body, err := ioutil.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	obj := &s3Object{
		body:         body,
		metadata:     input.Metadata,
		lastModified: time.Now().UTC(),
		storageClass: s3.StorageClassStandard,
	}
	if input.ContentType != nil {
		obj.contentType = *input.ContentType
	}
	bucket[*input.Key] = obj

	return &s3.PutObjectOutput{
		ETag: aws.String(`"` + etagOf(body) + `"`),
	}, nil
}

func (x *S3Client) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	obj, ok := x.objects[*input.Bucket][*input.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}

	return &s3.GetObjectOutput{
		Body:          ioutil.NopCloser(bytes.NewReader(obj.body)),
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (x *S3Client) ListObjectsV2(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for key := range x.objects[*input.Bucket] {
		if input.Prefix == nil || strings.HasPrefix(key, *input.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if input.MaxKeys != nil && int64(len(keys)) > *input.MaxKeys {
		keys = keys[:*input.MaxKeys]
	}

	output := &s3.ListObjectsV2Output{}
	for _, key := range keys {
		obj := x.objects[*input.Bucket][key]
		output.Contents = append(output.Contents, &s3.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.body))),
			LastModified: aws.Time(obj.lastModified),
			ETag:         aws.String(`"` + etagOf(obj.body) + `"`),
			StorageClass: aws.String(obj.storageClass),
		})
	}
	return output, nil
}

func (x *S3Client) DeleteObject(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	delete(x.objects[*input.Bucket], *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (x *S3Client) CopyObject(input *s3.CopyObjectInput) (*s3.CopyObjectOutput, error) {
	// CopySource is "bucket/key"
	parts := strings.SplitN(*input.CopySource, "/", 2)
	if len(parts) != 2 {
		return nil, awserr.New("InvalidRequest", "bad copy source", nil)
	}

	src, ok := x.objects[parts[0]][parts[1]]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}

	bucket, ok := x.objects[*input.Bucket]
	if !ok {
		bucket = make(map[string]*s3Object)
		x.objects[*input.Bucket] = bucket
	}
	bucket[*input.Key] = &s3Object{
		body:         src.body,
		contentType:  src.contentType,
		metadata:     input.Metadata,
		lastModified: time.Now().UTC(),
		storageClass: src.storageClass,
	}

	return &s3.CopyObjectOutput{
		CopyObjectResult: &s3.CopyObjectResult{
			ETag: aws.String(`"` + etagOf(src.body) + `"`),
		},
	}, nil
}

func (x *S3Client) HeadObject(input *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
	obj, ok := x.objects[*input.Bucket][*input.Key]
	if !ok {
		return nil, awserr.New("NotFound", "Not Found", nil)
	}

	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"` + etagOf(obj.body) + `"`),
		LastModified:  aws.Time(obj.lastModified),
		Metadata:      obj.metadata,
	}, nil
}

func (x *S3Client) PresignGetObject(input *s3.GetObjectInput, expire time.Duration) (string, error) {
	if _, ok := x.objects[*input.Bucket][*input.Key]; !ok {
		return "", awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s?X-Amz-Expires=%d",
		*input.Bucket, *input.Key, int(expire.Seconds())), nil
}

// Object returns the stored body of bucket/key for assertions.
func (x *S3Client) Object(bucket, key string) ([]byte, bool) {
	obj, ok := x.objects[bucket][key]
	if !ok {
		return nil, false
	}
	return obj.body, true
}
