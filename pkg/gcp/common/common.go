package common

const (
	DefaultBigQueryURL = "https://bigquery.googleapis.com/bigquery/v2"
	DefaultLocation    = "US"
)
