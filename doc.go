// Package datafile reads and writes tabular data files on local disk and
// remote object stores for data pipelines.
//
// A [File] names a URI, an optional connection id and an optional format.
// Its operations turn the file into a [table.Table] and back:
//
//	f := datafile.New("s3://bucket/daily/2024-01-01.parquet", datafile.WithConnID("aws_prod"))
//
//	t, err := f.ExportToTable(ctx, nil)
//	err = datafile.New("gs://warehouse/daily.csv").CreateFromTable(ctx, t)
//
// # Formats
//
// The format is taken from the file extension unless [WithFileType] sets one:
//
//   - CSV (.csv)
//   - JSON arrays of records (.json)
//   - Newline-delimited JSON (.ndjson)
//   - Parquet (.parquet)
//
// Codecs live in the filetype package.
//
// # Locations
//
// Plain paths and file:// URIs are served by the local filesystem backend,
// which this package registers itself. [NewLocal] with [WithLocalRoot]
// confines a resolver to one directory. The other storage backends register
// themselves under URI schemes when imported:
//
//   - Amazon S3, s3:// s3a:// (github.com/gobeaver/datafile/driver/s3)
//   - Google Cloud Storage, gs:// gcs:// (github.com/gobeaver/datafile/driver/gcs)
//   - Azure Blob Storage, wasb:// wasbs:// az:// (github.com/gobeaver/datafile/driver/azure)
//   - SFTP, sftp:// (github.com/gobeaver/datafile/driver/sftp)
//   - HTTP(S), read only (github.com/gobeaver/datafile/driver/http)
//   - In-memory, for tests (github.com/gobeaver/datafile/driver/memory)
//
// Import a driver for its side effect:
//
//	import _ "github.com/gobeaver/datafile/driver/s3"
//
// Every [Location] opens, creates, checks and lists objects. Deleting,
// moving and aborting writes are optional capabilities:
//
//	if d, ok := loc.(datafile.CanDelete); ok {
//	    err := d.Delete(ctx, uri)
//	}
//
// # Connections
//
// Remote locations are configured from connection records looked up by id.
// An empty id falls back to the default id of the backend's connection type
// (aws_default, google_cloud_default, wasb_default, sftp_default). A missing
// default connection means ambient credentials.
//
//	DATAFILE_CONN_AWS_PROD='aws://AKIA...:secret@?region_name=eu-west-1'
//
//	r, err := datafile.NewFromEnv()
//	f := datafile.New("s3://bucket/a.csv", datafile.WithConnID("aws_prod"), datafile.WithResolver(r))
//
// # Patterns and Tasks
//
// [ResolvePattern] expands a glob into files. [TaskLister.ListAsTasks]
// does the same and packages the result as a batch of task descriptors
// for an orchestrator:
//
//	files, err := datafile.ResolvePattern(ctx, "s3://bucket/2024/**.csv")
//
// A "**/" segment matches zero or more directories, so "dir/**/*.csv" also
// matches "dir/a.csv".
//
// # Error Handling
//
// Location failures are reported as [*PathError] values wrapping sentinel
// errors:
//
//	_, err := f.ExportToTable(ctx, nil)
//	if datafile.IsNotExist(err) {
//	    // File does not exist
//	}
//
// Codec failures are [*CodecError] values and an unmatched pattern is a
// [*PatternNotFoundError].
package datafile
