// Package s3 provides an AWS S3 implementation of filestore.Store built on
// aws-sdk-go-v2. It also speaks to S3-compatible servers (MinIO, Ceph RGW)
// when Endpoint is set.
//
// Usage:
//
//	cfg := &filestore.Config{Provider: filestore.ProviderS3, Region: "eu-west-1", Bucket: "drivebox"}
//	store, err := s3.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
package s3

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/filestore"
)

// Driver is an S3 implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	region  string
}

var _ filestore.Store = (*Driver)(nil)

// New builds an S3 client from cfg and pings the backend before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "connect", "failed to load aws config", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true
		}
	})

	d := &Driver{
		client:  client,
		presign: awss3.NewPresignClient(client),
		region:  region,
	}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// --- filestore.Store implementation ---

// Ping lists buckets to confirm credentials and connectivity.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx, &awss3.ListBucketsInput{}); err != nil {
		return mapError(err, "ping", "ping failed")
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client is shared.
func (d *Driver) Close() error {
	return nil
}

// EnsureBucket creates bucket when HeadBucket reports it missing.
func (d *Driver) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := d.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var noBucket *types.NoSuchBucket
	if mapped := mapError(err, "ensureBucket", "failed to check bucket"); mapped.Kind != errs.ErrKindNotFound && !errors.As(err, &noBucket) {
		return mapped
	}

	input := &awss3.CreateBucketInput{Bucket: aws.String(bucket)}
	if d.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(d.region),
		}
	}
	if _, err := d.client.CreateBucket(ctx, input); err != nil {
		return mapError(err, "ensureBucket", "failed to create bucket")
	}
	return nil
}

// ListObjects pages through ListObjectsV2. Non-recursive listings use the
// "/" delimiter and report common prefixes as directory entries.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(opts.Prefix),
	}
	if !opts.Recursive {
		input.Delimiter = aws.String("/")
	}

	var results []filestore.ObjectInfo
	pages := awss3.NewListObjectsV2Paginator(d.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "list", "failed to list objects")
		}

		batch := make([]filestore.ObjectInfo, 0, len(page.Contents)+len(page.CommonPrefixes))
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			batch = append(batch, filestore.ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
				IsDir:        filestore.IsDirKey(key),
			})
		}
		for _, cp := range page.CommonPrefixes {
			batch = append(batch, filestore.ObjectInfo{
				Key:   aws.ToString(cp.Prefix),
				IsDir: true,
			})
		}
		// Contents and prefixes arrive separately; merge them into key order.
		sort.Slice(batch, func(i, j int) bool { return batch[i].Key < batch[j].Key })

		for _, info := range batch {
			results = append(results, info)
			if opts.Limit > 0 && len(results) >= opts.Limit {
				return results, nil
			}
		}
	}

	return results, nil
}

// GetObject streams the object body. The caller MUST close it.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "get", "failed to get object")
	}

	return filestore.NewReadCloserObject(out.Body, &filestore.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
		IsDir:        filestore.IsDirKey(key),
	}), nil
}

// StatObject issues HeadObject.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	out, err := d.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "stat", "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
		IsDir:        filestore.IsDirKey(key),
	}, nil
}

// PutObject uploads r in a single request. Non-seekable bodies are sent
// with an unsigned payload so the SDK does not need to rewind them.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	input := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	var optFns []func(*awss3.Options)
	if _, seekable := r.(io.Seeker); !seekable {
		optFns = append(optFns, awss3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	}

	out, err := d.client.PutObject(ctx, input, optFns...)
	if err != nil {
		return nil, mapError(err, "put", "failed to put object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opts.ContentType,
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: time.Now().UTC(),
		IsDir:        filestore.IsDirKey(key),
	}, nil
}

// RemoveObject issues DeleteObject.
func (d *Driver) RemoveObject(ctx context.Context, bucket, key string) error {
	_, err := d.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "remove", "failed to remove object")
	}
	return nil
}

// CopyObject performs a server-side copy within bucket.
func (d *Driver) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	_, err := d.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(bucket, srcKey)),
	})
	if err != nil {
		return mapError(err, "copy", "failed to copy object")
	}
	return nil
}

// copySource builds the URL-encoded "bucket/key" header value.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// PresignGetURL signs a GetObject request valid for ttl.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := d.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, "presign", "failed to generate presigned URL")
	}
	return req.URL, nil
}
