package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeBucket is an in-memory stand-in for one S3 bucket.
type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int

	failCopy   map[string]bool // by source key
	failDelete map[string]bool
	failPut    bool

	deleteCalls []string
	listCalls   int
	// onList runs after each page is served
	onList func(page int)

	presignExpires time.Duration
}

func newFakeBucket(keys ...string) *fakeBucket {
	b := &fakeBucket{
		objects:    map[string][]byte{},
		pageSize:   1000,
		failCopy:   map[string]bool{},
		failDelete: map[string]bool{},
	}
	for _, k := range keys {
		b.objects[k] = []byte("data:" + k)
	}
	return b
}

func (b *fakeBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()

	prefix := aws.ToString(in.Prefix)
	after := aws.ToString(in.ContinuationToken)

	matching := make([]string, 0)
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) && k > after {
			matching = append(matching, k)
		}
	}
	sort.Strings(matching)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(matching) > b.pageSize {
		matching = matching[:b.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(matching[len(matching)-1])
	}
	for _, k := range matching {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}

	b.listCalls++
	page := b.listCalls
	onList := b.onList
	b.mu.Unlock()

	if onList != nil {
		onList(page)
	}

	return out, nil
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failPut {
		return nil, errors.New("put refused")
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[aws.ToString(in.Key)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (b *fakeBucket) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := url.PathUnescape(aws.ToString(in.CopySource))
	if err != nil {
		return nil, err
	}
	src = strings.TrimPrefix(src, aws.ToString(in.Bucket)+"/")

	if b.failCopy[src] {
		return nil, fmt.Errorf("copy refused for %s", src)
	}

	data, ok := b.objects[src]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	b.objects[aws.ToString(in.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

func (b *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := aws.ToString(in.Key)
	b.deleteCalls = append(b.deleteCalls, key)

	if b.failDelete[key] {
		return nil, fmt.Errorf("delete refused for %s", key)
	}

	delete(b.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (b *fakeBucket) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	b.mu.Lock()
	b.presignExpires = opts.Expires
	b.mu.Unlock()

	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(opts.Expires.Seconds())))
	q.Set("response-content-disposition", aws.ToString(in.ResponseContentDisposition))

	return &v4.PresignedHTTPRequest{
		URL:    "https://objects.example.test/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key) + "?" + q.Encode(),
		Method: "GET",
	}, nil
}
