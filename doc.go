// Package parcel provides a resumable, concurrent file upload client.
//
// A batch of files is transferred either directly (one atomic multipart
// request for small batches) or chunked (fixed-size chunks interleaved
// across files with bounded concurrency, per-chunk retry, and live progress
// reporting). The strategy is chosen automatically from the batch shape.
//
// Basic usage:
//
//	client, err := parcel.New("https://parcel.example.com",
//		parcel.WithConcurrency(4),
//	)
//	if err != nil {
//		return err
//	}
//	result, err := client.Upload(ctx, files,
//		parcel.WithPassword("hunter2"),
//		parcel.WithProgressFunc(func(s parceltypes.ProgressSnapshot) {
//			fmt.Printf("\r%.1f%%", s.OverallPercent)
//		}),
//	)
//
// Cancelling the context aborts the upload cooperatively: in-flight chunks
// settle, no new chunks start, and the partial remote session is discarded.
package parcel
