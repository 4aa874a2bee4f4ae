package reader

import (
	"strings"

	"github.com/LiangYue1981816/embree/asset"
	"github.com/pkg/errors"
)

// The Reader interface is implemented by all scene readers.
type Reader interface {
	// Read scene geometry from a resource.
	Read(*asset.Resource) (*asset.Scene, error)
}

// ReadScene loads the scene stored at path (a local file or an http(s)
// URL).
func ReadScene(path string) (*asset.Scene, error) {
	var reader Reader
	switch {
	case strings.HasSuffix(path, ".obj"):
		reader = newWavefrontReader()
	default:
		return nil, errors.Errorf("readScene: unsupported file format %q", path)
	}

	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return reader.Read(res)
}
