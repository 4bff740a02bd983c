package bigquery

import (
	"strings"
	"time"

	"github.com/google/uuid"
	bqapi "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
)

type QueryOption func(*bqapi.QueryRequest)

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ")

// NewQueryRequest builds a standard SQL jobs.query request. Newlines in sql
// are folded into spaces.
func NewQueryRequest(sql string, opts ...QueryOption) *bqapi.QueryRequest {
	req := &bqapi.QueryRequest{
		Query:        newlines.Replace(sql),
		UseLegacySql: googleapi.Bool(false),
		RequestId:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

func WithMaxResults(n int64) QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.MaxResults = n
	}
}

func WithDefaultDataset(projectID, datasetID string) QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.DefaultDataset = &bqapi.DatasetReference{ProjectId: projectID, DatasetId: datasetID}
	}
}

func WithDryRun() QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.DryRun = true
	}
}

func WithLegacySQL() QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.UseLegacySql = googleapi.Bool(true)
	}
}

func WithCreateSession() QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.CreateSession = true
	}
}

func WithLocation(location string) QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.Location = location
	}
}

// WithTimeout bounds how long jobs.query blocks before returning an
// incomplete job.
func WithTimeout(d time.Duration) QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.TimeoutMs = d.Milliseconds()
	}
}

func WithMaximumBytesBilled(n int64) QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.MaximumBytesBilled = n
	}
}

func WithLabels(labels map[string]string) QueryOption {
	return func(r *bqapi.QueryRequest) {
		r.Labels = labels
	}
}
