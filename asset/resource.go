package asset

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Resource is a readable stream backed by a local file or an http(s) URL.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Path returns the location of the resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// IsRemote returns true if the resource is fetched over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// NewResource opens the resource at path. Relative paths without a scheme
// are resolved against the directory (or URL) of relTo when it is not nil.
//
// The caller must close the returned resource.
func NewResource(path string, relTo *Resource) (*Resource, error) {
	loc, err := url.Parse(strings.Replace(path, `\`, `/`, -1))
	if err != nil {
		return nil, errors.Wrapf(err, "resource: invalid path %q", path)
	}

	if loc.Scheme == "" && relTo != nil {
		relPath := loc.Path
		loc, _ = url.Parse(relTo.url.String())
		prefix := loc.Path
		if loc.Scheme == "" {
			if prefix, err = filepath.Abs(relTo.url.String()); err != nil {
				return nil, errors.Wrapf(err, "resource: could not detect abs path for %s", relTo.url.String())
			}
		}
		loc.Path = filepath.Dir(prefix) + "/" + relPath
	}

	var reader io.ReadCloser
	switch loc.Scheme {
	case "":
		if reader, err = os.Open(filepath.Clean(loc.Path)); err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := http.Get(loc.String())
		if err != nil {
			return nil, errors.Errorf("resource: could not fetch '%s': %s", loc.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, errors.Errorf("resource: could not fetch '%s': status %d", loc.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, errors.Errorf("resource: unsupported scheme '%s'", loc.Scheme)
	}

	return &Resource{ReadCloser: reader, url: loc}, nil
}

// NewResourceFromStream wraps an in-memory stream.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	loc, _ := url.Parse(name)
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        loc,
	}
}
