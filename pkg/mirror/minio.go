package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type objectPutter interface {
	PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIO archives every document as an object partitioned by day.
type MinIO struct {
	client objectPutter
	bucket string
}

// NewMinIO connects to endpoint and creates bucket if it does not exist.
func NewMinIO(ctx context.Context, endpoint, access, secret string, useTLS bool, bucket string) (*MinIO, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := mc.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", bucket, err)
		}
	}
	return &MinIO{client: mc, bucket: bucket}, nil
}

// ObjectName places msg under <bike>/year=/month=/day=/.
func ObjectName(msg Message) string {
	t := msg.Time.UTC()
	return fmt.Sprintf("%s/year=%04d/month=%02d/day=%02d/%s-%d-%s.json",
		msg.Bike, t.Year(), t.Month(), t.Day(), msg.Kind, msg.Timestamp, msg.SessionID)
}

func (m *MinIO) Publish(ctx context.Context, msg Message) error {
	_, err := m.client.PutObject(ctx, m.bucket, ObjectName(msg), bytes.NewReader(msg.Payload), int64(len(msg.Payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}
