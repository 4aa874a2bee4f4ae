package reader

import (
	"bufio"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LiangYue1981816/embree/asset"
	"github.com/LiangYue1981816/embree/log"
	"github.com/LiangYue1981816/embree/types"
	"github.com/pkg/errors"
)

type wavefrontReader struct {
	logger log.Logger

	scene *asset.Scene

	// Global vertex list. Faces index into it; each mesh keeps a compact
	// copy of the vertices it references.
	vertexList []types.Vec3

	// Maps global vertex indices to indices of the current mesh.
	meshVertex map[int]uint32

	// Provides context for errors in files included via "call".
	errStack []string
}

func newWavefrontReader() *wavefrontReader {
	return &wavefrontReader{
		logger: log.New("wavefront reader"),
		scene:  &asset.Scene{},
	}
}

// Read implements Reader.
func (r *wavefrontReader) Read(res *asset.Resource) (*asset.Scene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, res.Path())
	start := time.Now()

	if err := r.parse(res); err != nil {
		return nil, err
	}

	var tris, quads int
	for _, m := range r.scene.Meshes {
		tris += len(m.Triangles)
		quads += len(m.Quads)
	}
	r.logger.Noticef("parsed %d meshes (%d triangles, %d quads, %d instances) in %d ms",
		len(r.scene.Meshes), tris, quads, len(r.scene.Instances), time.Since(start).Nanoseconds()/1e6)
	return r.scene, nil
}

func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := errors.Errorf(msgFormat, args...).Error()
	if file != "" {
		msg = "[" + file + ": " + strconv.Itoa(line) + "] error: " + msg
	} else {
		msg = "error: " + msg
	}
	if len(r.errStack) > 0 {
		msg += "\n" + strings.Join(r.errStack, "\n")
	}
	return errors.New(msg)
}

func (r *wavefrontReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

func (r *wavefrontReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// parse processes one obj file. Included files share the global vertex
// list; positive face indices are relative to the vertices defined by the
// file that uses them.
func (r *wavefrontReader) parse(res *asset.Resource) error {
	lineNum := 0
	relVertexOffset := len(r.vertexList)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "call"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			r.pushFrame("referenced from " + res.Path() + ":" + strconv.Itoa(lineNum) + " [call]")

			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			err = r.parse(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.vertexList = append(r.vertexList, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}
			r.verifyLastParsedMesh()
			r.beginMesh(lineTokens[1])
		case "f":
			if len(r.scene.Meshes) == 0 {
				r.beginMesh("default")
			}
			if err := r.parseFace(lineTokens, relVertexOffset); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
		case "instance":
			inst, err := r.parseInstance(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.scene.Instances = append(r.scene.Instances, inst)
		case "vn", "vt", "usemtl", "mtllib", "s":
			// Shading attributes do not affect the geometry.
		default:
			r.logger.Debugf("%s:%d: ignoring unsupported directive %q", res.Path(), lineNum, lineTokens[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err)
	}

	r.verifyLastParsedMesh()
	return nil
}

func (r *wavefrontReader) beginMesh(name string) {
	r.scene.Meshes = append(r.scene.Meshes, &asset.Mesh{Name: name})
	r.meshVertex = make(map[int]uint32)
}

// verifyLastParsedMesh drops the last mesh if it has no faces.
func (r *wavefrontReader) verifyLastParsedMesh() {
	last := len(r.scene.Meshes) - 1
	if last >= 0 && r.scene.Meshes[last].NumPrims() == 0 {
		r.logger.Warningf(`dropping mesh "%s" as it contains no polygons`, r.scene.Meshes[last].Name)
		r.scene.Meshes = r.scene.Meshes[:last]
	}
}

// parseFace parses a triangle or quad face. Each argument has the form
// v, v/vt, v//vn or v/vt/vn; only the vertex index is used. Indices start
// at 1 and negative values count back from the end of the vertex list.
func (r *wavefrontReader) parseFace(lineTokens []string, relVertexOffset int) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return errors.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d`, len(lineTokens)-1)
	}

	mesh := r.scene.Meshes[len(r.scene.Meshes)-1]
	var indices [4]uint32
	expIndices := 0
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return errors.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}
		if vTokens[0] == "" {
			return errors.Errorf("face argument %d does not include a vertex index", arg)
		}

		global, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return errors.Wrapf(err, "could not parse vertex coord for face argument %d", arg)
		}
		local, ok := r.meshVertex[global]
		if !ok {
			local = uint32(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices, r.vertexList[global])
			r.meshVertex[global] = local
		}
		indices[arg] = local
	}

	if len(lineTokens) == 4 {
		mesh.Triangles = append(mesh.Triangles, [3]uint32{indices[0], indices[1], indices[2]})
	} else {
		mesh.Quads = append(mesh.Quads, indices)
	}
	return nil
}

// parseInstance parses a mesh instance definition:
// instance mesh_name tX tY tZ yaw pitch roll sX sY sZ
// where the rotation angles are given in degrees.
func (r *wavefrontReader) parseInstance(lineTokens []string) (asset.Instance, error) {
	if len(lineTokens) != 11 {
		return asset.Instance{}, errors.Errorf(`unsupported syntax for "instance"; expected 10 arguments: mesh_name tX tY tZ yaw pitch roll sX sY sZ; got %d`, len(lineTokens)-1)
	}

	meshIndex := r.scene.MeshIndex(lineTokens[1])
	if meshIndex == -1 {
		return asset.Instance{}, errors.Errorf(`unknown mesh with name "%s"`, lineTokens[1])
	}

	var args [9]float32
	for i := range args {
		v, err := strconv.ParseFloat(lineTokens[i+2], 32)
		if err != nil {
			return asset.Instance{}, err
		}
		args[i] = float32(v)
	}
	translation := types.Vec3{args[0], args[1], args[2]}
	scale := types.Vec3{args[6], args[7], args[8]}

	const deg2rad = math.Pi / 180.0
	yaw := types.QuatFromAxisAngle(types.Vec3{1, 0, 0}, args[3]*deg2rad)
	pitch := types.QuatFromAxisAngle(types.Vec3{0, 1, 0}, args[4]*deg2rad)
	roll := types.QuatFromAxisAngle(types.Vec3{0, 0, 1}, args[5]*deg2rad)

	// M = T * R * S
	xfm := roll.Mul(pitch.Mul(yaw)).Affine(translation)
	xfm.VX = xfm.VX.Mul(scale[0])
	xfm.VY = xfm.VY.Mul(scale[1])
	xfm.VZ = xfm.VZ.Mul(scale[2])

	return asset.Instance{Mesh: meshIndex, Transform: xfm}, nil
}

// selectFaceCoordIndex converts a face index token into an offset into a
// coordinate list of length coordListLen.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	if index < 0 {
		offset = coordListLen + int(index)
	} else {
		offset = relOffset + int(index-1)
	}

	if offset < 0 || offset >= coordListLen {
		return -1, errors.New("index out of bounds")
	}
	return offset, nil
}

func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, errors.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	var v types.Vec3
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
