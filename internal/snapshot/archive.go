// Archive mirrors every snapshot's graph_data blob into S3-compatible
// object storage as a cold-storage copy, independent of the Postgres row.
// It is a side-channel: a failed mirror never fails snapshot creation, and
// restore never reads from it — Postgres remains the sole restore path.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"kgraph/internal/config"
	"kgraph/internal/logging"
)

// Archiver mirrors snapshot blobs into an S3 bucket. A nil *Archiver (no
// bucket configured) is a valid zero value: Archive becomes a no-op.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// OpenArchiver builds an Archiver when cfg.Enabled; returns (nil, nil)
// otherwise.
func OpenArchiver(ctx context.Context, cfg config.S3Config) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
	}, nil
}

func (a *Archiver) key(projectID, snapshotID string) string {
	k := fmt.Sprintf("snapshots/%s/%s.json", projectID, snapshotID)
	if a.prefix == "" {
		return k
	}
	return a.prefix + "/" + k
}

// Archive uploads a snapshot's graph_data as a standalone JSON object.
// Failures are logged, never returned: the cold mirror is best-effort.
func (a *Archiver) Archive(ctx context.Context, snap Snapshot) {
	if a == nil || a.client == nil {
		return
	}
	body, err := json.Marshal(snap)
	if err != nil {
		logging.Log.WithError(err).WithField("snapshot_id", snap.ID).Warn("failed to marshal snapshot for s3 archive")
		return
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(snap.ProjectID, snap.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logging.Log.WithError(err).WithField("snapshot_id", snap.ID).Warn("failed to archive snapshot to s3")
		return
	}
	logging.Log.WithField("snapshot_id", snap.ID).Info("snapshot archived to s3")
}

// Delete removes a snapshot's cold-storage mirror, best-effort, matching the
// row store's unconditional Delete.
func (a *Archiver) Delete(ctx context.Context, projectID, snapshotID string) {
	if a == nil || a.client == nil {
		return
	}
	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(projectID, snapshotID)),
	}); err != nil {
		logging.Log.WithError(err).WithField("snapshot_id", snapshotID).Warn("failed to delete s3 snapshot mirror")
	}
}
