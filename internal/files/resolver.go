package files

import (
	"context"
	"fmt"
	"os"

	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

// Resolver picks the workbook an audit should read.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// LatestResolver picks the newest file in Dir matching Pattern.
type LatestResolver struct {
	Dir     string
	Pattern string
}

func (r LatestResolver) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pattern := r.Pattern
	if pattern == "" {
		pattern = DefaultInputPattern
	}
	found, err := NewDiscovery("").FindFilesByPattern(r.Dir, pattern)
	if err != nil {
		return "", apperrors.NewInputError("search for input workbook", err)
	}
	latest, ok := GetLatestFile(found)
	if !ok {
		return "", apperrors.NewInputError(fmt.Sprintf("no file matching %s in %s", pattern, r.Dir), nil).
			WithContext("dir", r.Dir).
			WithContext("pattern", pattern)
	}
	return latest.Path, nil
}

// StaticResolver always returns Path, after checking it exists.
type StaticResolver struct {
	Path string
}

func (r StaticResolver) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(r.Path); err != nil {
		return "", apperrors.NewInputError(fmt.Sprintf("input workbook %s", r.Path), err)
	}
	return r.Path, nil
}
