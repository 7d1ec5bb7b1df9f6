package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/goccy/go-json"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/errors"
)

// Dataset types the recommender accepts.
var validDatasetTypes = map[string]struct{}{
	"interactions": {},
	"users":        {},
	"items":        {},
}

type StorageService struct {
	client adaptor.S3Client
	bucket string
	now    func() time.Time
}

// NewStorageService is constructor of StorageService
func NewStorageService(client adaptor.S3Client, bucket string) *StorageService {
	return &StorageService{
		client: client,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// tenantKey prefixes key with the tenant so that tenants never see each
// other's objects.
func tenantKey(tenantID, key string) string {
	return tenantID + "/" + key
}

func normalizeContent(content interface{}) ([]byte, error) {
	switch v := content.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return ioutil.ReadAll(v)
	default:
		return nil, errors.New("unsupported content type").With("content", fmt.Sprintf("%T", content))
	}
}

// Upload stores content under the tenant's prefix with server-side
// encryption. content may be []byte, string or io.Reader.
func (x *StorageService) Upload(tenantID, key string, content interface{}, contentType string, metadata map[string]string) (*personify.ObjectInfo, error) {
	body, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}
	return x.putObject(tenantKey(tenantID, key), body, contentType, metadata)
}

func (x *StorageService) putObject(fullKey string, body []byte, contentType string, metadata map[string]string) (*personify.ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:               aws.String(x.bucket),
		Key:                  aws.String(fullKey),
		Body:                 bytes.NewReader(body),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if len(metadata) > 0 {
		input.Metadata = make(map[string]*string, len(metadata))
		for k, v := range metadata {
			input.Metadata[k] = aws.String(v)
		}
	}

	output, err := x.client.PutObject(input)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to put object").
			With("bucket", x.bucket).With("key", fullKey)
	}

	info := &personify.ObjectInfo{
		Bucket: x.bucket,
		Key:    fullKey,
		Size:   int64(len(body)),
		URL:    fmt.Sprintf("s3://%s/%s", x.bucket, fullKey),
	}
	if output.ETag != nil {
		info.ETag = strings.Trim(*output.ETag, `"`)
	}
	if output.VersionId != nil {
		info.VersionID = *output.VersionId
	}
	return info, nil
}

// Download returns the body and content type of the tenant's object.
// A missing object yields errors.ErrNotFound.
func (x *StorageService) Download(tenantID, key string) ([]byte, string, error) {
	fullKey := tenantKey(tenantID, key)
	output, err := x.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(x.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, "", errors.Wrap(errors.ErrNotFound, "object").
				With("bucket", x.bucket).With("key", fullKey)
		}
		return nil, "", errors.Wrap(err, "Failed to get object").
			With("bucket", x.bucket).With("key", fullKey)
	}
	defer output.Body.Close()

	body, err := ioutil.ReadAll(output.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "Failed to read object body").With("key", fullKey)
	}
	return body, aws.StringValue(output.ContentType), nil
}

// List returns the tenant's objects under prefix. Returned keys have the
// tenant prefix stripped.
func (x *StorageService) List(tenantID, prefix string, maxKeys int64) ([]*personify.ObjectEntry, error) {
	fullPrefix := tenantKey(tenantID, prefix)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(x.bucket),
		Prefix: aws.String(fullPrefix),
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int64(maxKeys)
	}

	output, err := x.client.ListObjectsV2(input)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list objects").
			With("bucket", x.bucket).With("prefix", fullPrefix)
	}

	entries := make([]*personify.ObjectEntry, 0, len(output.Contents))
	for _, obj := range output.Contents {
		entries = append(entries, &personify.ObjectEntry{
			Key:          strings.TrimPrefix(aws.StringValue(obj.Key), tenantID+"/"),
			Size:         aws.Int64Value(obj.Size),
			LastModified: aws.TimeValue(obj.LastModified),
			ETag:         strings.Trim(aws.StringValue(obj.ETag), `"`),
			StorageClass: aws.StringValue(obj.StorageClass),
		})
	}
	return entries, nil
}

// Delete removes the tenant's object. Deleting an absent key succeeds.
func (x *StorageService) Delete(tenantID, key string) error {
	fullKey := tenantKey(tenantID, key)
	_, err := x.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(x.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return errors.Wrap(err, "Failed to delete object").
			With("bucket", x.bucket).With("key", fullKey)
	}
	return nil
}

// Copy duplicates srcKey to dstKey inside the tenant's prefix.
func (x *StorageService) Copy(tenantID, srcKey, dstKey string) (*personify.ObjectInfo, error) {
	src := tenantKey(tenantID, srcKey)
	dst := tenantKey(tenantID, dstKey)
	output, err := x.client.CopyObject(&s3.CopyObjectInput{
		Bucket:     aws.String(x.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(x.bucket + "/" + src),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.Wrap(errors.ErrNotFound, "copy source").
				With("bucket", x.bucket).With("key", src)
		}
		return nil, errors.Wrap(err, "Failed to copy object").
			With("src", src).With("dst", dst)
	}

	info := &personify.ObjectInfo{
		Bucket: x.bucket,
		Key:    dst,
		URL:    fmt.Sprintf("s3://%s/%s", x.bucket, dst),
	}
	if output.CopyObjectResult != nil && output.CopyObjectResult.ETag != nil {
		info.ETag = strings.Trim(*output.CopyObjectResult.ETag, `"`)
	}
	return info, nil
}

// Metadata returns the head-object view of the tenant's object.
func (x *StorageService) Metadata(tenantID, key string) (*personify.ObjectMeta, error) {
	fullKey := tenantKey(tenantID, key)
	output, err := x.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(x.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		// HeadObject reports absence as bare NotFound, not NoSuchKey.
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
			return nil, errors.Wrap(errors.ErrNotFound, "object").
				With("bucket", x.bucket).With("key", fullKey)
		}
		return nil, errors.Wrap(err, "Failed to head object").
			With("bucket", x.bucket).With("key", fullKey)
	}

	meta := &personify.ObjectMeta{
		Key:          key,
		Size:         aws.Int64Value(output.ContentLength),
		LastModified: aws.TimeValue(output.LastModified),
		ETag:         strings.Trim(aws.StringValue(output.ETag), `"`),
		ContentType:  aws.StringValue(output.ContentType),
		VersionID:    aws.StringValue(output.VersionId),
	}
	if len(output.Metadata) > 0 {
		meta.Metadata = make(map[string]string, len(output.Metadata))
		for k, v := range output.Metadata {
			meta.Metadata[k] = aws.StringValue(v)
		}
	}
	return meta, nil
}

// PresignedURL returns a time-limited download URL for the tenant's object.
func (x *StorageService) PresignedURL(tenantID, key string, expire time.Duration) (string, error) {
	fullKey := tenantKey(tenantID, key)
	url, err := x.client.PresignGetObject(&s3.GetObjectInput{
		Bucket: aws.String(x.bucket),
		Key:    aws.String(fullKey),
	}, expire)
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return "", errors.Wrap(errors.ErrNotFound, "object").
				With("bucket", x.bucket).With("key", fullKey)
		}
		return "", errors.Wrap(err, "Failed to presign object URL").With("key", fullKey)
	}
	return url, nil
}

// UploadDataset serializes dataset into format (csv, json or parquet) and
// stores it under the tenant's data/ area, stamped with row and column
// counts.
func (x *StorageService) UploadDataset(tenantID, datasetType string, dataset *personify.Dataset, format string) (*personify.ObjectInfo, error) {
	if _, ok := validDatasetTypes[datasetType]; !ok {
		return nil, errors.New("invalid dataset type").With("dataset_type", datasetType)
	}

	var body []byte
	var contentType string
	var err error
	switch format {
	case "csv":
		body, err = encodeCSV(dataset)
		contentType = "text/csv"
	case "json":
		body, err = encodeJSONLines(dataset)
		contentType = "application/json"
	case "parquet":
		body, err = encodeParquet(dataset)
		contentType = "application/octet-stream"
	default:
		return nil, errors.New("unsupported dataset format").With("format", format)
	}
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("data/%s/%s.%s", datasetType, x.now().Format("20060102_150405"), format)
	return x.putObject(tenantKey(tenantID, key), body, contentType, map[string]string{
		"dataset-type": datasetType,
		"row-count":    fmt.Sprintf("%d", len(dataset.Rows)),
		"column-count": fmt.Sprintf("%d", len(dataset.Columns)),
	})
}

// UploadDatasetFile stores a raw dataset file under the fixed
// datasets/{tenant}/{type}/{filename} layout the import workflow reads.
func (x *StorageService) UploadDatasetFile(tenantID, datasetType, filename string, content []byte) (*personify.ObjectInfo, error) {
	if _, ok := validDatasetTypes[datasetType]; !ok {
		return nil, errors.New("invalid dataset type").With("dataset_type", datasetType)
	}

	key := fmt.Sprintf("datasets/%s/%s/%s", tenantID, datasetType, filename)
	return x.putObject(key, content, "text/csv", map[string]string{
		"dataset-type": datasetType,
	})
}

func encodeCSV(dataset *personify.Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(dataset.Columns); err != nil {
		return nil, errors.Wrap(err, "Failed to write CSV header")
	}
	if err := w.WriteAll(dataset.Rows); err != nil {
		return nil, errors.Wrap(err, "Failed to write CSV rows")
	}
	return buf.Bytes(), nil
}

func encodeJSONLines(dataset *personify.Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, row := range dataset.Rows {
		record := make(map[string]string, len(dataset.Columns))
		for i, col := range dataset.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		line, err := json.Marshal(record)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to marshal dataset row")
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func encodeParquet(dataset *personify.Dataset) ([]byte, error) {
	fields := make([]arrow.Field, len(dataset.Columns))
	for i, col := range dataset.Columns {
		fields[i] = arrow.Field{Name: col, Type: arrow.BinaryTypes.String}
	}
	schema := arrow.NewSchema(fields, nil)

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()
	for _, row := range dataset.Rows {
		for i := range dataset.Columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			bldr.Field(i).(*array.StringBuilder).Append(cell)
		}
	}

	rec := bldr.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	buf := &bytes.Buffer{}
	err := pqarrow.WriteTable(tbl, buf, int64(len(dataset.Rows)+1),
		parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, errors.Wrap(err, "Failed to write parquet table")
	}
	return buf.Bytes(), nil
}
