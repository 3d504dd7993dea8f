// Package chunker derives chunk tasks from a file batch.
//
// Tasks are derived deterministically: exactly one task per (file, chunk)
// pair, and the tasks of a file cover its byte range exactly once with no
// gaps or overlaps.
package chunker

import (
	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// Task is one contiguous byte-range unit of a file, the smallest unit of
// retry and transfer. Immutable once created.
type Task struct {
	// FileIndex is the position of the file in the batch
	FileIndex int

	// ChunkIndex is the zero-based chunk number within the file
	ChunkIndex int

	// Offset is the start of the byte range
	Offset int64

	// Length is the number of bytes in the range [Offset, Offset+Length)
	Length int64
}

// TotalChunks returns ceil(size / chunkSize). A zero-byte file has zero
// chunks and is considered stored as soon as the session exists.
func TotalChunks(size, chunkSize int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// Plan flattens all chunk tasks for all files into a single ordered list.
// The flat list lets a scheduler interleave chunks across files so small
// trailing files don't starve behind one huge file.
func Plan(files []parceltypes.FileDescriptor, chunkSize int64) ([]Task, error) {
	if chunkSize < 1 {
		return nil, errors.NewError("plan", errors.ErrValidation).
			WithMessage("chunk size must be at least 1 byte")
	}

	var tasks []Task
	for i, f := range files {
		n := TotalChunks(f.Size, chunkSize)
		for c := 0; c < n; c++ {
			offset := int64(c) * chunkSize
			length := chunkSize
			if offset+length > f.Size {
				length = f.Size - offset
			}
			tasks = append(tasks, Task{
				FileIndex:  i,
				ChunkIndex: c,
				Offset:     offset,
				Length:     length,
			})
		}
	}
	return tasks, nil
}
