// Package export turns a finished dataset into distributable artifacts:
// parquet shards in the layout dataset hubs expect, and a mirror of the
// dataset tree in an S3-compatible bucket.
package export
