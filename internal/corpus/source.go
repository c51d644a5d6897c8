package corpus

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
)

// Source yields candidate sentences in document order.
type Source interface {
	Sentences(ctx context.Context) iter.Seq2[string, error]
}

// #region dir-source

// DirSource reads every *.txt file under Dir in lexical path order and
// yields normalized, segmented, filtered sentences.
type DirSource struct {
	Dir    string
	Filter Filter
}

// NewDirSource creates a source over dir with the default filter.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir, Filter: DefaultFilter()}
}

// Sentences implements Source. Files are read one at a time.
func (d *DirSource) Sentences(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		files, err := d.files()
		if err != nil {
			yield("", err)
			return
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			data, err := os.ReadFile(path)
			if err != nil {
				if !yield("", fmt.Errorf("read corpus file %s: %w", path, err)) {
					return
				}
				continue
			}
			for _, s := range Segment(Normalize(string(data))) {
				if !d.Filter.Usable(s) {
					continue
				}
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

func (d *DirSource) files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.Dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && filepath.Ext(path) == ".txt" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus %s: %w", d.Dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// #endregion dir-source

// #region slice-source

// SliceSource yields a fixed list of sentences, unfiltered.
type SliceSource []string

// Sentences implements Source.
func (s SliceSource) Sentences(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, sentence := range s {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(sentence, nil) {
				return
			}
		}
	}
}

// #endregion slice-source
