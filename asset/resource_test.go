package asset

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLocalResource(t *testing.T) {
	_, thisFile, _, _ := runtime.Caller(0)
	res, err := NewResource(thisFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if res.IsRemote() {
		t.Fatal("expected local file resource not to be remote")
	}
}

func TestHttpResource(t *testing.T) {
	_, thisFile, _, _ := runtime.Caller(0)
	server := httptest.NewServer(http.FileServer(http.Dir(filepath.Dir(thisFile))))
	defer server.Close()

	res, err := NewResource(server.URL+"/"+filepath.Base(thisFile), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	if !res.IsRemote() {
		t.Fatal("expected http resource to be remote")
	}

	missing := server.URL + "/file-not-found.obj"
	expError := "resource: could not fetch '" + missing + "': status 404"
	if _, err = NewResource(missing, nil); err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}

func TestRelativeResources(t *testing.T) {
	serverHits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverHits++
		switch r.URL.Path {
		case "/meshes/scene.obj", "/meshes/bunny.obj":
			w.Write([]byte("v 0 0 0"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	parent, err := NewResource(server.URL+"/meshes/scene.obj", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer parent.Close()

	child, err := NewResource("bunny.obj", parent)
	if err != nil {
		t.Fatal(err)
	}
	defer child.Close()

	if serverHits != 2 {
		t.Fatalf("expected server to receive 2 requests; got %d", serverHits)
	}
	if exp := server.URL + "/meshes/bunny.obj"; child.Path() != exp {
		t.Fatalf("expected relative resource path %s; got %s", exp, child.Path())
	}
}

func TestUnsupportedResourceScheme(t *testing.T) {
	expError := "resource: unsupported scheme 'gopher'"
	_, err := NewResource("gopher://digging.obj", nil)
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}

func TestStreamResource(t *testing.T) {
	res := NewResourceFromStream("embedded", strings.NewReader("f 1 2 3"))
	defer res.Close()

	data, err := io.ReadAll(res)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "f 1 2 3" || res.Path() != "embedded" {
		t.Fatalf("unexpected stream resource %q (%s)", data, res.Path())
	}
}
