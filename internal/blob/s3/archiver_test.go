package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type fakeStore struct {
	rows    []domain.Opportunity
	deleted *time.Time
	delErr  error
}

func (f *fakeStore) Insert(context.Context, domain.Opportunity) error { return nil }

func (f *fakeStore) ListRecent(context.Context, int) ([]domain.Opportunity, error) {
	return f.rows, nil
}

func (f *fakeStore) ListBefore(_ context.Context, before time.Time) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for _, opp := range f.rows {
		if opp.ExpiredAt != nil && opp.ExpiredAt.Before(before) {
			out = append(out, opp)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	if f.delErr != nil {
		return 0, f.delErr
	}
	f.deleted = &before
	return int64(len(f.rows)), nil
}

type fakeWriter struct {
	path        string
	contentType string
	body        []byte
	err         error
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.path = path
	f.contentType = contentType
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.body = body
	return nil
}

func expiredOpp(id string, expiredAt time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:             id,
		MarketKey:      "mkt",
		Kind:           domain.OpportunityInternal,
		Status:         domain.OpportunityExpired,
		NetProfitTotal: 4.4,
		DiscoveredAt:   expiredAt.Add(-10 * time.Second),
		ExpiredAt:      &expiredAt,
	}
}

func TestArchiver_ArchiveBefore(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{rows: []domain.Opportunity{
		expiredOpp("a", cutoff.Add(-time.Hour)),
		expiredOpp("b", cutoff.Add(-2*time.Hour)),
	}}
	writer := &fakeWriter{}

	a := NewArchiver(writer, store, nil)
	count, err := a.ArchiveBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	assert.Equal(t, "archive/opportunities/2025-06.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)

	// One JSON document per line.
	lines := bytes.Split(bytes.TrimSpace(writer.body), []byte("\n"))
	require.Len(t, lines, 2)
	var first domain.Opportunity
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "a", first.ID)

	// Prune only runs after the upload succeeded.
	require.NotNil(t, store.deleted)
	assert.Equal(t, cutoff, *store.deleted)
}

func TestArchiver_NothingToArchive(t *testing.T) {
	store := &fakeStore{}
	writer := &fakeWriter{}

	a := NewArchiver(writer, store, nil)
	count, err := a.ArchiveBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.path, "no upload for an empty batch")
	assert.Nil(t, store.deleted)
}

func TestArchiver_UploadFailureKeepsRows(t *testing.T) {
	cutoff := time.Now()
	store := &fakeStore{rows: []domain.Opportunity{expiredOpp("a", cutoff.Add(-time.Hour))}}
	writer := &fakeWriter{err: errors.New("bucket gone")}

	a := NewArchiver(writer, store, nil)
	_, err := a.ArchiveBefore(context.Background(), cutoff)
	require.Error(t, err)
	assert.Nil(t, store.deleted, "rows must survive a failed upload")
}
