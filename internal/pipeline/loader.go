package pipeline

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/source"
)

// LoadResult holds the output of loading a scenario directory.
type LoadResult struct {
	State       *model.State
	TotalFiles  int
	ParsedFiles int
	Records     int
	// Undecoded maps file name to keys no record field consumed.
	Undecoded map[string][]string
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Load discovers and parses every scenario file under dir, merges the
// records in file-name order and builds a validated state. Files are parsed
// on a bounded worker pool.
func Load(dir string, cat source.Catalog, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := source.ScanDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", dir)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no scenario files in %s", dir)
	}

	result := &LoadResult{
		TotalFiles: len(files),
		Undecoded:  make(map[string][]string),
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make([]source.ParseResult, len(files))
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := range files {
		work <- i
	}
	close(work)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = source.ParseFile(files[idx])
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n), len(files))
				}
			}
		}()
	}

	wg.Wait()

	// Merge in scan order so duplicate reporting is deterministic.
	var merged source.Scenario
	for _, pr := range results {
		if pr.Err != nil {
			return nil, pr.Err
		}
		result.ParsedFiles++
		if len(pr.Undecoded) > 0 {
			result.Undecoded[pr.File.Name] = pr.Undecoded
		}
		merged.Merge(pr.Scenario)
	}
	result.Records = merged.Records()

	state, err := source.Build(merged, cat)
	if err != nil {
		return nil, err
	}
	result.State = state
	return result, nil
}
