package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is the subset of *s3.Client this package depends on, so tests
// can substitute a fake without spinning up real S3.
type S3Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectVersions(ctx context.Context, in *s3.ListObjectVersionsInput, opts ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3BlobStore implements BlobStore against a versioned S3 bucket.
// Versioning must be enabled on the bucket: S3's native VersionId is used
// directly as the BlobStore snapshot id, so Versions/Head/Download need no
// side table to track history.
type S3BlobStore struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3BlobStore returns a store backed by bucket, with every key prefixed
// by prefix (which may be empty). client is typically an *s3.Client built
// from an aws.Config loaded via config.LoadDefaultConfig.
func NewS3BlobStore(client S3Client, bucket, prefix string) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3BlobStore) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key, "")
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3BlobStore) Head(ctx context.Context, key, snapshotID string) (Snapshot, error) {
	in := &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	}
	if snapshotID != "" {
		in.VersionId = aws.String(snapshotID)
	}
	out, err := s.client.HeadObject(ctx, in)
	if err != nil {
		if isS3NotFound(err) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("blobstore: head %q: %w", key, err)
	}
	snap := Snapshot{Metadata: out.Metadata}
	if out.VersionId != nil {
		snap.SnapshotID = *out.VersionId
	}
	if out.ContentLength != nil {
		snap.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		snap.LastModified = *out.LastModified
	}
	return snap, nil
}

func (s *S3BlobStore) Upload(ctx context.Context, key string, r io.Reader, metadata map[string]string) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("blobstore: read upload body for %q: %w", key, err)
	}
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.fullKey(key)),
		Body:     bytes.NewReader(data),
		Metadata: metadata,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("blobstore: put %q: %w", key, err)
	}
	snap := Snapshot{Size: int64(len(data)), Metadata: metadata}
	if out.VersionId != nil {
		snap.SnapshotID = *out.VersionId
	}
	return s.Head(ctx, key, snap.SnapshotID)
}

func (s *S3BlobStore) Download(ctx context.Context, key, snapshotID string, w io.Writer) (string, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	}
	if snapshotID != "" {
		in.VersionId = aws.String(snapshotID)
	}
	out, err := s.client.GetObject(ctx, in)
	if err != nil {
		if isS3NotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("blobstore: get %q: %w", key, err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return "", fmt.Errorf("blobstore: read body for %q: %w", key, err)
	}
	if out.VersionId != nil {
		return *out.VersionId, nil
	}
	return "", nil
}

func (s *S3BlobStore) Versions(ctx context.Context, key string) ([]Snapshot, error) {
	out, err := s.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: list versions for %q: %w", key, err)
	}
	fullKey := s.fullKey(key)
	snaps := make([]Snapshot, 0, len(out.Versions))
	for _, v := range out.Versions {
		if v.Key == nil || *v.Key != fullKey {
			continue
		}
		snap := Snapshot{}
		if v.VersionId != nil {
			snap.SnapshotID = *v.VersionId
		}
		if v.Size != nil {
			snap.Size = *v.Size
		}
		if v.LastModified != nil {
			snap.LastModified = *v.LastModified
		}
		snaps = append(snaps, snap)
	}
	sortSnapshotsDesc(snaps)
	return snaps, nil
}

func (s *S3BlobStore) Remove(ctx context.Context, key string, snapshotIDs ...string) error {
	fullKey := s.fullKey(key)
	if len(snapshotIDs) == 0 {
		// An unversioned DeleteObject only adds a delete marker on a
		// versioned bucket, so every listed version is deleted explicitly.
		snaps, err := s.Versions(ctx, key)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			return nil
		}
		for _, snap := range snaps {
			snapshotIDs = append(snapshotIDs, snap.SnapshotID)
		}
	}

	ids := make([]types.ObjectIdentifier, 0, len(snapshotIDs))
	for _, id := range snapshotIDs {
		ids = append(ids, types.ObjectIdentifier{
			Key:       aws.String(fullKey),
			VersionId: aws.String(id),
		})
	}
	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: ids},
	})
	if err != nil {
		return fmt.Errorf("blobstore: delete versions of %q: %w", key, err)
	}
	return nil
}

func (s *S3BlobStore) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.fullKey(key))
}

// IsFatalError classifies S3 errors the way PushScheduler's retry loop
// needs: a 404/NoSuchKey is a logic error in the caller (never retried),
// everything else — throttling, 5xx, network failures — is assumed
// transient and worth retrying with backoff.
func (s *S3BlobStore) IsFatalError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound) || isS3NotFound(err)
}

func isS3NotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	// HeadObject reports a missing key as NotFound rather than NoSuchKey.
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	return false
}
