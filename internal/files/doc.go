// Package files locates input workbooks and stores uploaded ones.
//
// Discovery lists workbooks on disk. A Resolver decides which workbook an audit
// should read when the caller does not name one:
//
//	r := files.LatestResolver{Dir: paths.DownloadsDir, Pattern: files.DefaultInputPattern}
//	path, err := r.Resolve(ctx)
//
// Manager writes uploaded workbooks into the downloads directory under a safe
// name.
package files
