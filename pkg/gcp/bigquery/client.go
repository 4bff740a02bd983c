package bigquery

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/superplanehq/gauth/pkg/gcp/common"
	"github.com/superplanehq/gauth/pkg/retry"
	bqapi "google.golang.org/api/bigquery/v2"
)

// Result is a finished query: either a completed jobs.query response or the
// results fetched after waiting on the job.
type Result struct {
	JobReference        *bqapi.JobReference
	Schema              *bqapi.TableSchema
	Rows                []*bqapi.TableRow
	TotalRows           uint64
	TotalBytesProcessed int64
	CacheHit            bool
	DryRun              bool
}

func projectOrDefault(client *common.Client, projectID string) (string, error) {
	if projectID != "" {
		return projectID, nil
	}
	if client.ProjectID() != "" {
		return client.ProjectID(), nil
	}
	return "", fmt.Errorf("project ID is required")
}

// Query starts a query job with jobs.query.
func Query(ctx context.Context, client *common.Client, projectID string, req *bqapi.QueryRequest) (*bqapi.QueryResponse, error) {
	projectID, err := projectOrDefault(client, projectID)
	if err != nil {
		return nil, err
	}
	if req.RequestId == "" {
		req.RequestId = uuid.NewString()
	}

	var response bqapi.QueryResponse
	path := fmt.Sprintf("projects/%s/queries", url.PathEscape(projectID))
	if err := client.PostJSON(ctx, path, req, &response); err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	return &response, nil
}

// GetQueryResults reads a query job's results with jobs.getQueryResults.
func GetQueryResults(ctx context.Context, client *common.Client, ref *bqapi.JobReference) (*bqapi.GetQueryResultsResponse, error) {
	if ref == nil || ref.JobId == "" {
		return nil, fmt.Errorf("job reference has no job ID")
	}
	projectID, err := projectOrDefault(client, ref.ProjectId)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if ref.Location != "" {
		query.Set("location", ref.Location)
	}

	var response bqapi.GetQueryResultsResponse
	path := fmt.Sprintf("projects/%s/queries/%s", url.PathEscape(projectID), url.PathEscape(ref.JobId))
	if err := client.GetJSON(ctx, path, query, &response); err != nil {
		return nil, fmt.Errorf("failed to get results for job %s: %w", ref.JobId, err)
	}
	return &response, nil
}

// WaitForResults polls jobs.getQueryResults until the job completes. An API
// error ends the wait immediately.
func WaitForResults(ctx context.Context, client *common.Client, poller *retry.Poller, ref *bqapi.JobReference) (*bqapi.GetQueryResultsResponse, error) {
	return retry.PollErr(poller, func() (*bqapi.GetQueryResultsResponse, bool, error) {
		response, err := GetQueryResults(ctx, client, ref)
		if err != nil {
			return nil, false, err
		}
		return response, response.JobComplete, nil
	})
}

// Run executes a query and waits for it when jobs.query returns before the
// job has finished.
func Run(ctx context.Context, client *common.Client, poller *retry.Poller, projectID string, req *bqapi.QueryRequest) (*Result, error) {
	response, err := Query(ctx, client, projectID, req)
	if err != nil {
		return nil, err
	}

	if response.JobComplete || req.DryRun {
		return &Result{
			JobReference:        response.JobReference,
			Schema:              response.Schema,
			Rows:                response.Rows,
			TotalRows:           response.TotalRows,
			TotalBytesProcessed: response.TotalBytesProcessed,
			CacheHit:            response.CacheHit,
			DryRun:              req.DryRun,
		}, nil
	}

	results, err := WaitForResults(ctx, client, poller, response.JobReference)
	if err != nil {
		return nil, fmt.Errorf("query job did not complete: %w", err)
	}

	return &Result{
		JobReference:        results.JobReference,
		Schema:              results.Schema,
		Rows:                results.Rows,
		TotalRows:           results.TotalRows,
		TotalBytesProcessed: results.TotalBytesProcessed,
		CacheHit:            results.CacheHit,
	}, nil
}

// ListTables returns every table in a dataset, following page tokens.
func ListTables(ctx context.Context, client *common.Client, projectID, datasetID string) ([]*bqapi.TableListTables, error) {
	projectID, err := projectOrDefault(client, projectID)
	if err != nil {
		return nil, err
	}
	if datasetID == "" {
		return nil, fmt.Errorf("dataset ID is required")
	}

	path := fmt.Sprintf("projects/%s/datasets/%s/tables", url.PathEscape(projectID), url.PathEscape(datasetID))
	query := url.Values{"maxResults": {strconv.Itoa(1000)}}

	var tables []*bqapi.TableListTables
	for {
		var page bqapi.TableList
		if err := client.GetJSON(ctx, path, query, &page); err != nil {
			return nil, fmt.Errorf("failed to list tables in %s: %w", datasetID, err)
		}
		tables = append(tables, page.Tables...)

		if page.NextPageToken == "" {
			return tables, nil
		}
		query.Set("pageToken", page.NextPageToken)
	}
}
