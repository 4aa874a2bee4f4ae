package geometry

import "github.com/LiangYue1981816/embree/device"

// attributeBuffer returns the buffer interpolated for t after checking that
// numFloats components fit into one element.
func (b *Base) attributeBuffer(t BufferType, numFloats int) (*device.Buffer, error) {
	switch t {
	case VertexBuffer0, VertexBuffer1, UserVertexBuffer0, UserVertexBuffer1:
	default:
		return nil, device.Errorf(device.InvalidArgument, "cannot interpolate %s buffer", t)
	}
	buf, err := b.buffer(t)
	if err != nil {
		return nil, err
	}
	if numFloats <= 0 || numFloats*4 > buf.Stride() {
		return nil, device.Errorf(device.InvalidArgument, "cannot interpolate %d floats from %s buffer with stride %d", numFloats, t, buf.Stride())
	}
	if !buf.Valid() {
		return nil, device.Errorf(device.InvalidOperation, "%s buffer is not set", t)
	}
	return buf, nil
}

func (out Derivatives) check(numFloats int) error {
	for _, s := range [][]float32{out.P, out.DPdu, out.DPdv, out.DDPdudu, out.DDPdvdv, out.DDPdudv} {
		if s != nil && len(s) < numFloats {
			return device.Errorf(device.InvalidArgument, "interpolation output holds %d floats; %d required", len(s), numFloats)
		}
	}
	return nil
}

// put stores the value and derivatives of component c.
func (out Derivatives) put(c int, p, dpdu, dpdv, dpdudu, dpdvdv, dpdudv float32) {
	if out.P != nil {
		out.P[c] = p
	}
	if out.DPdu != nil {
		out.DPdu[c] = dpdu
	}
	if out.DPdv != nil {
		out.DPdv[c] = dpdv
	}
	if out.DDPdudu != nil {
		out.DDPdudu[c] = dpdudu
	}
	if out.DDPdvdv != nil {
		out.DDPdvdv[c] = dpdvdv
	}
	if out.DDPdudv != nil {
		out.DDPdudv[c] = dpdudv
	}
}

// interpolateTriangle evaluates barycentric interpolation over the vertices
// i0, i1, i2 of buf.
func interpolateTriangle(buf *device.Buffer, i0, i1, i2 int, u, v float32, out Derivatives, numFloats int) {
	for c := 0; c < numFloats; c++ {
		p0, p1, p2 := buf.Float(i0, c), buf.Float(i1, c), buf.Float(i2, c)
		out.put(c, (1-u-v)*p0+u*p1+v*p2, p1-p0, p2-p0, 0, 0, 0)
	}
}

// interpolateQuad evaluates bilinear interpolation over the vertices
// i0..i3 of buf.
func interpolateQuad(buf *device.Buffer, i0, i1, i2, i3 int, u, v float32, out Derivatives, numFloats int) {
	for c := 0; c < numFloats; c++ {
		p0, p1, p2, p3 := buf.Float(i0, c), buf.Float(i1, c), buf.Float(i2, c), buf.Float(i3, c)
		p := (1-v)*((1-u)*p0+u*p1) + v*((1-u)*p3+u*p2)
		dpdu := (1-v)*(p1-p0) + v*(p2-p3)
		dpdv := (1-u)*(p3-p0) + u*(p2-p1)
		out.put(c, p, dpdu, dpdv, 0, 0, p0-p1+p2-p3)
	}
}
