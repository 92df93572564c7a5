package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const artifactFormat = "trafficcast/pipeline"

// artifactHeader is the first JSON value in an artifact; TreeCount tree
// documents follow it in the same stream.
type artifactHeader struct {
	Format      string             `json:"format"`
	Transformer *ColumnTransformer `json:"transformer"`
	Forest      *RandomForest      `json:"forest"`
	TreeCount   int                `json:"tree_count"`
}

// SaveArtifact writes the fitted pipeline as a single zstd-compressed blob.
// The file is written next to path and renamed into place, so path holds
// either the previous artifact or the complete new one.
func SaveArtifact(path string, p *Pipeline) (err error) {
	if p == nil || p.Transformer == nil || p.Forest == nil || len(p.Forest.Trees) == 0 {
		return fmt.Errorf("save artifact: %w", ErrNotFitted)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".model-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(zw)
	header := artifactHeader{
		Format:      artifactFormat,
		Transformer: p.Transformer,
		Forest:      p.Forest,
		TreeCount:   len(p.Forest.Trees),
	}
	if err = enc.Encode(header); err != nil {
		zw.Close()
		return fmt.Errorf("encode artifact header: %w", err)
	}
	for i, tree := range p.Forest.Trees {
		if err = enc.Encode(tree); err != nil {
			zw.Close()
			return fmt.Errorf("encode tree %d: %w", i, err)
		}
	}
	if err = zw.Close(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadArtifact reads an artifact and checks it was fit against expect.
func LoadArtifact(path string, expect Schema) (*Pipeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	var header artifactHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if header.Format != artifactFormat {
		return nil, fmt.Errorf("artifact %s: unknown format %q", path, header.Format)
	}
	if header.Transformer == nil || header.Forest == nil || header.TreeCount <= 0 {
		return nil, errors.New("artifact is missing the transformer or the forest")
	}
	if !header.Transformer.Schema.Equal(expect) {
		return nil, fmt.Errorf("%w: artifact fields %v, expected %v",
			ErrSchemaDrift, header.Transformer.Schema.Names(), expect.Names())
	}

	trees := make([]*RegressionTree, header.TreeCount)
	for i := range trees {
		tree := &RegressionTree{}
		if err := dec.Decode(tree); err != nil {
			return nil, fmt.Errorf("decode tree %d of %s: %w", i, path, err)
		}
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("artifact %s: tree %d is empty", path, i)
		}
		trees[i] = tree
	}
	header.Forest.Trees = trees

	return &Pipeline{Transformer: header.Transformer, Forest: header.Forest}, nil
}
