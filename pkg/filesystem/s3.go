package filesystem

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"
)

// S3Client abstracts the S3 client methods we use
type S3Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

const (
	DefaultStreamThreshold = 10 * 1024 * 1024 // 10MB
	S3MaxKeys              = 1000
)

// S3Config holds the configuration for S3/Minio client
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Insecure        bool
	UsePathStyle    bool
	StreamThreshold int
}

// S3FileSystem implements FileSystem for S3/Minio buckets. Paths have the
// form "bucket/key".
type S3FileSystem struct {
	client S3Client
	config S3Config
}

// noOpLogger implements logging.Logger and discards all logs
type noOpLogger struct{}

func (noOpLogger) Logf(logging.Classification, string, ...any) {}

func NewS3FileSystem(ctx context.Context, cfg S3Config) (fsys *S3FileSystem, err error) {
	var opts []func(*config.LoadOptions) error

	// Disable SDK Log
	opts = append(opts, config.WithClientLogMode(0), config.WithLogger(noOpLogger{}))
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.Insecure {
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // configuration chosen by user
				},
			},
		}
		opts = append(opts, config.WithHTTPClient(httpClient))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return
	}

	clientOpts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
			o.ClientLogMode = 0
			o.Logger = noOpLogger{}
		},
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.StreamThreshold == 0 {
		cfg.StreamThreshold = DefaultStreamThreshold
	}

	fsys = &S3FileSystem{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		config: cfg,
	}
	return
}

// parsePath splits path into bucket and key
func (s *S3FileSystem) parsePath(path string) (bucket, key string, err error) {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		err = errors.New("invalid path: bucket name required")
		return
	}
	bucket = parts[0]
	if len(parts) > 1 {
		key = parts[1]
	}
	return
}

// s3FileInfo implements fs.FileInfo for S3 objects
type s3FileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (fi *s3FileInfo) Name() string       { return fi.name }
func (fi *s3FileInfo) Size() int64        { return fi.size }
func (fi *s3FileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *s3FileInfo) ModTime() time.Time { return fi.modTime }
func (fi *s3FileInfo) IsDir() bool        { return fi.isDir }
func (fi *s3FileInfo) Sys() any           { return nil }

// readSeekCloser implements io.ReadSeekCloser over an in-memory object
type readSeekCloser struct {
	*bytes.Reader
}

func newReadSeekCloser(data []byte) *readSeekCloser {
	return &readSeekCloser{Reader: bytes.NewReader(data)}
}

func (r *readSeekCloser) Close() error { return nil }

// streamingReadSeekCloser implements io.ReadSeekCloser for large S3 objects
// using ranged GETs instead of loading the whole object in memory.
type streamingReadSeekCloser struct {
	client S3Client
	bucket string
	key    string
	size   int64
	pos    int64
	mu     sync.Mutex
}

func newStreamingReadSeekCloser(client S3Client, bucket, key string, size int64) *streamingReadSeekCloser {
	return &streamingReadSeekCloser{
		client: client,
		bucket: bucket,
		key:    key,
		size:   size,
	}
}

func (r *streamingReadSeekCloser) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= r.size {
		err = io.EOF
		return
	}

	start := r.pos
	end := r.pos + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return
	}
	defer func() {
		if e := result.Body.Close(); e != nil {
			Logger.Error("could not close S3 result body", slog.String("error", e.Error()))
		}
	}()

	n, err = io.ReadFull(result.Body, p[:end-start+1])
	r.pos += int64(n)

	if errors.Is(err, io.ErrUnexpectedEOF) && r.pos == r.size {
		err = nil
	}
	return
}

func (r *streamingReadSeekCloser) Seek(offset int64, whence int) (pos int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.pos + offset
	case io.SeekEnd:
		pos = r.size + offset
	default:
		err = errors.New("invalid whence value")
		return
	}

	if pos < 0 {
		pos = 0
		err = errors.New("negative position")
		return
	}

	r.pos = pos
	return
}

func (r *streamingReadSeekCloser) Close() error {
	return nil
}

// Open returns a reader over the object. Small objects are loaded in memory;
// larger ones are streamed with ranged requests.
func (s *S3FileSystem) Open(ctx context.Context, name string) (reader io.ReadSeekCloser, err error) {
	bucket, key, err := s.parsePath(name)
	if err != nil {
		return
	}
	if key == "" {
		err = errors.New("cannot open bucket as file")
		return
	}

	headResult, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return
	}

	objectSize := *headResult.ContentLength
	threshold := s.config.StreamThreshold
	if threshold <= 0 {
		threshold = DefaultStreamThreshold
	}
	if int(objectSize) > threshold {
		reader = newStreamingReadSeekCloser(s.client, bucket, key, objectSize)
		return
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return
	}
	defer func() {
		if e := result.Body.Close(); e != nil {
			Logger.Error("could not close result body", slog.String("error", e.Error()))
		}
	}()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return
	}
	reader = newReadSeekCloser(data)
	return
}

func (s *S3FileSystem) Stat(ctx context.Context, name string) (info fs.FileInfo, err error) {
	bucket, key, err := s.parsePath(name)
	if err != nil {
		return
	}

	// Only a bucket name: check the bucket exists
	if key == "" {
		_, err = s.client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		respErr := new(awshttp.ResponseError)
		switch {
		case err == nil:
			info = &s3FileInfo{
				name:  bucket,
				isDir: true,
				mode:  fs.ModeDir | 0o755,
			}
			return
		case errors.As(err, &respErr) && respErr.Response.StatusCode == http.StatusNotFound:
			err = errors.Join(fs.ErrNotExist, err)
			return
		default:
			return
		}
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		info = &s3FileInfo{
			name:    path.Base(key),
			size:    *result.ContentLength,
			modTime: *result.LastModified,
			mode:    0o644,
		}
		return //nolint:nilerr // object found
	}

	// Not an object: check for a directory-like prefix
	listResult, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return
	}
	if len(listResult.Contents) > 0 || len(listResult.CommonPrefixes) > 0 {
		info = &s3FileInfo{
			name:  path.Base(key),
			isDir: true,
			mode:  fs.ModeDir | 0o755,
		}
		return
	}

	err = fs.ErrNotExist
	return
}

// Lstat returns file info (same as Stat, S3 has no symlinks)
func (s *S3FileSystem) Lstat(ctx context.Context, name string) (info fs.FileInfo, err error) {
	return s.Stat(ctx, name)
}

// WalkDir walks the objects under root
func (s *S3FileSystem) WalkDir(ctx context.Context, root string, fn fs.WalkDirFunc) (err error) {
	bucket, prefix, err := s.parsePath(root)
	if err != nil {
		return
	}

	rootInfo, err := s.Stat(ctx, root)
	if err != nil {
		return fn(root, nil, err)
	}

	rootEntry := &s3DirEntry{
		name:    rootInfo.Name(),
		isDir:   rootInfo.IsDir(),
		size:    rootInfo.Size(),
		modTime: rootInfo.ModTime(),
	}
	if err = fn(root, rootEntry, nil); err != nil {
		if errors.Is(err, fs.SkipDir) || errors.Is(err, fs.SkipAll) {
			return nil
		}
		return
	}

	if !rootInfo.IsDir() {
		return
	}

	err = s.walkPrefix(ctx, bucket, prefix, fn)
	if errors.Is(err, fs.SkipDir) || errors.Is(err, fs.SkipAll) {
		return nil
	}
	return
}

func (s *S3FileSystem) walkPrefix(ctx context.Context, bucket, prefix string, fn fs.WalkDirFunc) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(S3MaxKeys),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}

		for _, obj := range page.Contents {
			// Directory markers
			if strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			filePath := bucket + "/" + *obj.Key
			fileEntry := &s3DirEntry{
				name:    path.Base(*obj.Key),
				size:    *obj.Size,
				modTime: *obj.LastModified,
			}
			err := fn(filePath, fileEntry, nil)
			switch {
			case errors.Is(err, fs.SkipDir):
				continue
			case err != nil:
				return err
			}
		}
	}
	return nil
}

func (s *S3FileSystem) IsLocal() bool {
	return false
}

// s3DirEntry implements fs.DirEntry
type s3DirEntry struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (e *s3DirEntry) Name() string { return e.name }
func (e *s3DirEntry) IsDir() bool  { return e.isDir }
func (e *s3DirEntry) Type() fs.FileMode {
	if e.isDir {
		return fs.ModeDir
	}
	return 0
}

func (e *s3DirEntry) Info() (fs.FileInfo, error) {
	return &s3FileInfo{
		name:    e.name,
		size:    e.size,
		modTime: e.modTime,
		isDir:   e.isDir,
		mode:    e.Type() | 0o644,
	}, nil
}
