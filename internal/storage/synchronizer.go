package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"trainingdesk/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPreviewTTL = time.Hour
	DefaultExportTTL  = 7 * 24 * time.Hour
	// MaxPresignTTL is the longest expiry SigV4 accepts.
	MaxPresignTTL = 7 * 24 * time.Hour

	defaultParallelism = 8
	moveTimeout        = 30 * time.Second
)

// ObjectAPI is the subset of *s3.Client the synchronizer uses.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is satisfied by *s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Options struct {
	Bucket        string
	PublicBaseURL string
	Parallelism   int
}

// Synchronizer owns every mapping between owners and object keys: deriving
// keys, moving owner folders, signing access URLs and cleaning up.
type Synchronizer struct {
	logger    logrus.FieldLogger
	api       ObjectAPI
	presigner Presigner

	bucket        string
	publicBaseURL string
	parallelism   int

	now func() time.Time
}

func New(logger logrus.FieldLogger, api ObjectAPI, presigner Presigner, opts Options) *Synchronizer {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	return &Synchronizer{
		logger:        logger.WithField("component", "storage"),
		api:           api,
		presigner:     presigner,
		bucket:        opts.Bucket,
		publicBaseURL: strings.TrimSuffix(opts.PublicBaseURL, "/"),
		parallelism:   parallelism,
		now:           time.Now,
	}
}

// Put writes body under key. Any failure is a StorageWriteError.
func (s *Synchronizer) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return &types.StorageError{Op: types.StorageOpWrite, Key: key, Err: err}
	}

	return nil
}

// Exists reports whether an object is stored under key.
func (s *Synchronizer) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}

	return false, &types.StorageError{Op: types.StorageOpRead, Key: key, Err: err}
}

// CleanupOnDelete removes the object behind a deleted row. Failures are
// logged and reported as false, never returned.
func (s *Synchronizer) CleanupOnDelete(ctx context.Context, key string) bool {
	if strings.TrimSpace(key) == "" {
		return true
	}

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.WithError(&types.StorageError{Op: types.StorageOpDelete, Key: key, Err: err}).
			WithField("storage_key", key).
			WithField("error_code", apiErrorCode(err)).
			Warn("failed to delete object, leaving orphan")
		return false
	}

	return true
}

type AccessOptions struct {
	Inline   bool
	TTL      time.Duration
	FileName string
}

// IssueAccessURL signs a short lived GET for key. URLs are never stored.
func (s *Synchronizer) IssueAccessURL(ctx context.Context, key string, opts AccessOptions) (string, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultExportTTL
		if opts.Inline {
			ttl = DefaultPreviewTTL
		}
	}
	if ttl > MaxPresignTTL {
		ttl = MaxPresignTTL
	}

	disposition := "attachment"
	if opts.Inline {
		disposition = "inline"
	}
	if opts.FileName != "" {
		disposition = fmt.Sprintf("%s; filename=%q", disposition, opts.FileName)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(disposition),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", &types.StorageError{Op: types.StorageOpRead, Key: key, Err: err}
	}

	return req.URL, nil
}

// NormalizeKey turns a legacy stored public URL back into an object key.
// Plain keys pass through untouched.
func (s *Synchronizer) NormalizeKey(stored string) string {
	stored = strings.TrimSpace(stored)

	if s.publicBaseURL != "" && strings.HasPrefix(stored, s.publicBaseURL) {
		return unescapeKey(strings.TrimPrefix(strings.TrimPrefix(stored, s.publicBaseURL), "/"))
	}

	if !strings.HasPrefix(stored, "http://") && !strings.HasPrefix(stored, "https://") {
		return stored
	}

	u, err := url.Parse(stored)
	if err != nil {
		return stored
	}

	key := strings.TrimPrefix(u.EscapedPath(), "/")
	key = strings.TrimPrefix(key, s.bucket+"/")
	return unescapeKey(key)
}

func unescapeKey(key string) string {
	out, err := url.PathUnescape(key)
	if err != nil {
		return key
	}
	return out
}

// KeyMove is one object confirmed to now live at NewKey.
type KeyMove struct {
	OldKey string
	NewKey string
}

type RenameResult struct {
	Moved      []KeyMove
	FailedKeys []string
	// OrphanedKeys were copied but the old object could not be deleted.
	// They are also in Moved; a later run will retry the delete.
	OrphanedKeys []string
	Aborted      bool
}

func (r *RenameResult) MovedCount() int {
	return len(r.Moved)
}

// MovedFrom indexes moves by old key.
func (r *RenameResult) MovedFrom() map[string]string {
	out := make(map[string]string, len(r.Moved))
	for _, m := range r.Moved {
		out[m.OldKey] = m.NewKey
	}
	return out
}

// RenameOwnerFolder moves every object under oldPrefix to newPrefix with a
// copy then delete per key. It is not transactional. The result says which
// keys moved so callers only rewrite rows for those. Running it again only
// sees what is still under oldPrefix.
//
// Cancelling ctx stops listing and scheduling; moves already in flight
// finish. The partial result is returned alongside ctx.Err().
func (s *Synchronizer) RenameOwnerFolder(ctx context.Context, oldPrefix, newPrefix string) (*RenameResult, error) {
	if err := validatePrefixes(oldPrefix, newPrefix); err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"old_prefix": oldPrefix,
		"new_prefix": newPrefix,
	})

	result := &RenameResult{}

	var (
		mu      sync.Mutex
		group   errgroup.Group
		listErr error
	)
	group.SetLimit(s.parallelism)

	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(oldPrefix),
	})

pages:
	for paginator.HasMorePages() {
		if ctx.Err() != nil {
			result.Aborted = true
			break
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				result.Aborted = true
				break
			}
			listErr = &types.StorageError{Op: types.StorageOpRead, Key: oldPrefix, Err: err}
			break
		}

		for _, obj := range page.Contents {
			if ctx.Err() != nil {
				result.Aborted = true
				break pages
			}

			oldKey := aws.ToString(obj.Key)
			newKey, ok := RebaseKey(oldKey, oldPrefix, newPrefix)
			if !ok {
				continue
			}

			group.Go(func() error {
				moveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), moveTimeout)
				defer cancel()

				copied, deleted, err := s.moveObject(moveCtx, oldKey, newKey)

				mu.Lock()
				defer mu.Unlock()

				switch {
				case !copied:
					result.FailedKeys = append(result.FailedKeys, oldKey)
					logger.WithError(err).
						WithField("storage_key", oldKey).
						WithField("error_code", apiErrorCode(err)).
						Error("failed to copy object during folder rename")
				case !deleted:
					result.Moved = append(result.Moved, KeyMove{OldKey: oldKey, NewKey: newKey})
					result.OrphanedKeys = append(result.OrphanedKeys, oldKey)
					logger.WithError(err).
						WithField("storage_key", oldKey).
						WithField("error_code", apiErrorCode(err)).
						Warn("object copied but old key not deleted")
				default:
					result.Moved = append(result.Moved, KeyMove{OldKey: oldKey, NewKey: newKey})
				}

				return nil
			})
		}
	}

	_ = group.Wait()

	logger.WithFields(logrus.Fields{
		"moved":   len(result.Moved),
		"failed":  len(result.FailedKeys),
		"orphans": len(result.OrphanedKeys),
		"aborted": result.Aborted,
	}).Info("owner folder rename finished")

	if result.Aborted {
		return result, ctx.Err()
	}

	return result, listErr
}

func (s *Synchronizer) moveObject(ctx context.Context, oldKey, newKey string) (copied, deleted bool, err error) {
	_, err = s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(copySource(s.bucket, oldKey)),
		Key:        aws.String(newKey),
	})
	if err != nil {
		return false, false, &types.StorageError{Op: types.StorageOpWrite, Key: newKey, Err: err}
	}

	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oldKey),
	})
	if err != nil {
		return true, false, &types.StorageError{Op: types.StorageOpDelete, Key: oldKey, Err: err}
	}

	return true, true, nil
}

func validatePrefixes(oldPrefix, newPrefix string) error {
	for field, p := range map[string]string{"oldPrefix": oldPrefix, "newPrefix": newPrefix} {
		if strings.Count(p, "/") < 2 || !strings.HasSuffix(p, "/") {
			return types.NewValidationError(field, fmt.Sprintf("%q is not an owner folder", p))
		}
	}

	if oldPrefix == newPrefix {
		return types.NewValidationError("newPrefix", "new folder is the same as the old one")
	}

	// nesting one folder inside the other would make a rerun list objects
	// it had already moved
	if strings.HasPrefix(newPrefix, oldPrefix) || strings.HasPrefix(oldPrefix, newPrefix) {
		return types.NewValidationError("newPrefix", "folders must not contain each other")
	}

	return nil
}

// copySource escapes each key segment for the x-amz-copy-source header.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
