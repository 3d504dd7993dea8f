package parcel

import "github.com/SinghAman21/silentparcel-uploader/parceltypes"

// useChunked decides the transfer strategy for a batch. Chunked wins when
// any single file reaches sizeThreshold, when the combined batch size
// reaches it, or when the batch holds more than maxDirectFiles files.
// Everything else goes direct in one request.
func useChunked(files []parceltypes.FileDescriptor, sizeThreshold int64, maxDirectFiles int) bool {
	if len(files) > maxDirectFiles {
		return true
	}
	var combined int64
	for _, f := range files {
		if f.Size >= sizeThreshold {
			return true
		}
		combined += f.Size
	}
	return combined >= sizeThreshold
}
