package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
)

// mockS3Client implements S3Client over an in-memory object map
type mockS3Client struct {
	buckets map[string]map[string][]byte
	modTime time.Time
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{
		buckets: map[string]map[string][]byte{},
		modTime: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockS3Client) put(bucket, key string, data []byte) {
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string][]byte{}
	}
	m.buckets[bucket][key] = data
}

func (m *mockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	objects, ok := m.buckets[*params.Bucket]
	if !ok {
		return nil, errors.New("NoSuchBucket")
	}
	data, ok := objects[*params.Key]
	if !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(m.modTime),
	}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	objects, ok := m.buckets[*params.Bucket]
	if !ok {
		return nil, errors.New("NoSuchBucket")
	}
	data, ok := objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	if params.Range != nil {
		var start, end int64
		if _, err := fmt.Sscanf(*params.Range, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		data = data[start : end+1]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *mockS3Client) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if _, ok := m.buckets[*params.Bucket]; !ok {
		return nil, errors.New("NoSuchBucket")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	objects, ok := m.buckets[*params.Bucket]
	if !ok {
		return nil, errors.New("NoSuchBucket")
	}
	var keys []string
	for key := range objects {
		if params.Prefix == nil || strings.HasPrefix(key, *params.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(objects[key]))),
			LastModified: aws.Time(m.modTime),
		})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))
	return out, nil
}

func newTestS3FileSystem(client S3Client, threshold int) *S3FileSystem {
	return &S3FileSystem{
		client: client,
		config: S3Config{StreamThreshold: threshold},
	}
}

func TestS3ParsePath(t *testing.T) {
	fsys := newTestS3FileSystem(newMockS3Client(), 0)

	cases := []struct {
		name       string
		path       string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "bucket and key", path: "bucket/dir/file.exe", wantBucket: "bucket", wantKey: "dir/file.exe"},
		{name: "leading slash", path: "/bucket/file.exe", wantBucket: "bucket", wantKey: "file.exe"},
		{name: "bucket only", path: "bucket", wantBucket: "bucket"},
		{name: "empty", path: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bucket, key, err := fsys.parsePath(tc.path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("parsePath() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePath() error = %v", err)
			}
			if bucket != tc.wantBucket || key != tc.wantKey {
				t.Errorf("parsePath() = (%q, %q), want (%q, %q)", bucket, key, tc.wantBucket, tc.wantKey)
			}
		})
	}
}

func TestS3Open(t *testing.T) {
	client := newMockS3Client()
	want := []byte("small object content")
	client.put("bucket", "pkg/app.exe", want)
	fsys := newTestS3FileSystem(client, 1024)

	r, err := fsys.Open(context.Background(), "bucket/pkg/app.exe")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	if _, ok := r.(*readSeekCloser); !ok {
		t.Errorf("Open() reader type = %T, want in-memory reader", r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("Open() content mismatch (-want +got):\n%s", diff)
	}

	// readers must support seeking back to the start
	if _, err = r.Seek(6, io.SeekStart); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	rest, _ := io.ReadAll(r)
	if string(rest) != "object content" {
		t.Errorf("read after Seek() = %q, want %q", rest, "object content")
	}
}

func TestS3OpenStreaming(t *testing.T) {
	client := newMockS3Client()
	want := bytes.Repeat([]byte("0123456789"), 100)
	client.put("bucket", "big.msi", want)
	fsys := newTestS3FileSystem(client, 16)

	r, err := fsys.Open(context.Background(), "bucket/big.msi")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	if _, ok := r.(*streamingReadSeekCloser); !ok {
		t.Fatalf("Open() reader type = %T, want streaming reader", r)
	}

	// read in small chunks so several ranged requests are issued
	var got []byte
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("streamed content mismatch (-want +got):\n%s", diff)
	}

	pos, err := r.Seek(-10, io.SeekEnd)
	if err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if pos != int64(len(want)-10) {
		t.Errorf("Seek() pos = %d, want %d", pos, len(want)-10)
	}
	tail, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() after Seek() error = %v", err)
	}
	if string(tail) != "0123456789" {
		t.Errorf("tail = %q, want %q", tail, "0123456789")
	}
}

func TestS3OpenMissing(t *testing.T) {
	fsys := newTestS3FileSystem(newMockS3Client(), 0)
	if _, err := fsys.Open(context.Background(), "bucket/missing.exe"); err == nil {
		t.Error("Open() on missing object expected error, got nil")
	}
	if _, err := fsys.Open(context.Background(), "bucket"); err == nil {
		t.Error("Open() on bucket expected error, got nil")
	}
}

func TestS3Stat(t *testing.T) {
	client := newMockS3Client()
	client.put("bucket", "dir/app.msix", []byte("1234567"))
	fsys := newTestS3FileSystem(client, 0)

	info, err := fsys.Stat(context.Background(), "bucket/dir/app.msix")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Name() != "app.msix" || info.Size() != 7 || info.IsDir() {
		t.Errorf("Stat() = (%q, %d, dir=%v), want (app.msix, 7, dir=false)", info.Name(), info.Size(), info.IsDir())
	}

	info, err = fsys.Stat(context.Background(), "bucket/dir")
	if err != nil {
		t.Fatalf("Stat() on prefix error = %v", err)
	}
	if !info.IsDir() {
		t.Error("Stat() on prefix IsDir() = false, want true")
	}

	_, err = fsys.Stat(context.Background(), "bucket/nothing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat() on missing key error = %v, want fs.ErrNotExist", err)
	}
}

func TestS3WalkDir(t *testing.T) {
	client := newMockS3Client()
	client.put("bucket", "a/one.exe", []byte("1"))
	client.put("bucket", "a/two.msi", []byte("22"))
	client.put("bucket", "a/sub/three.appx", []byte("333"))
	client.put("bucket", "b/other.exe", []byte("4"))
	client.put("bucket", "a/marker/", nil)
	fsys := newTestS3FileSystem(client, 0)

	var paths []string
	err := fsys.WalkDir(context.Background(), "bucket/a", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir() error = %v", err)
	}
	want := []string{"bucket/a/one.exe", "bucket/a/sub/three.appx", "bucket/a/two.msi"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("WalkDir() paths mismatch (-want +got):\n%s", diff)
	}
}

func TestS3IsLocal(t *testing.T) {
	if newTestS3FileSystem(newMockS3Client(), 0).IsLocal() {
		t.Error("IsLocal() = true, want false")
	}
}
