package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zainarain279/Dropee/pkg/utilities"
)

// FileRepo keeps the credential table as one JSON object (identity -> token).
type FileRepo struct {
	path string
}

func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

// Load reads the whole table. A missing file is created empty.
func (r *FileRepo) Load(ctx context.Context) (map[string]string, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		tokens := map[string]string{}
		if err := r.Save(ctx, tokens); err != nil {
			return nil, err
		}
		return tokens, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	tokens := map[string]string{}
	if len(b) == 0 {
		return tokens, nil
	}
	if err := json.Unmarshal(b, &tokens); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return tokens, nil
}

// Save rewrites the whole table through a temp file and rename.
func (r *FileRepo) Save(_ context.Context, tokens map[string]string) error {
	b, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	if err := utilities.WriteFileAtomic(r.path, b); err != nil {
		return fmt.Errorf("save token file: %w", err)
	}
	return nil
}
