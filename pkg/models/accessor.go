package models

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/taigrr/podium/pkg/math3d"
)

func accessor(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return doc.Accessors[idx], nil
}

// readPositions reads a POSITION or other VEC3 float attribute.
func readPositions(doc *gltf.Document, idx int) ([]math3d.Vec3, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	return vec3s(data), nil
}

func readNormals(doc *gltf.Document, idx int) ([]math3d.Vec3, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadNormal(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	return vec3s(data), nil
}

func readUVs(doc *gltf.Document, idx int) ([]math3d.Vec2, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadTextureCoord(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	out := make([]math3d.Vec2, len(data))
	for i, f := range data {
		out[i] = math3d.V2(float64(f[0]), float64(f[1]))
	}
	return out, nil
}

func readIndices(doc *gltf.Document, idx int) ([]int, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadIndices(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(data))
	for i, x := range data {
		out[i] = int(x)
	}
	return out, nil
}

func readJoints(doc *gltf.Document, idx int) ([][4]int, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadJoints(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	out := make([][4]int, len(data))
	for i, j := range data {
		out[i] = [4]int{int(j[0]), int(j[1]), int(j[2]), int(j[3])}
	}
	return out, nil
}

// readWeights reads WEIGHTS_0 and renormalizes each set so it sums to one.
// Quantized weights rarely sum exactly to one after decoding.
func readWeights(doc *gltf.Document, idx int) ([][4]float64, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadWeights(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	out := make([][4]float64, len(data))
	for i, w := range data {
		sum := float64(w[0]) + float64(w[1]) + float64(w[2]) + float64(w[3])
		if sum == 0 {
			continue
		}
		for k := range 4 {
			out[i][k] = float64(w[k]) / sum
		}
	}
	return out, nil
}

func readMatrices(doc *gltf.Document, idx int) ([]math3d.Mat4, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	if acr.Type != gltf.AccessorMat4 {
		return nil, fmt.Errorf("expected MAT4, got %v", acr.Type)
	}
	data, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	mats, ok := data.([][4][4]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T for MAT4", data)
	}
	out := make([]math3d.Mat4, len(mats))
	for i, m := range mats {
		// Both sides are column-major
		for c := range 4 {
			for r := range 4 {
				out[i][c*4+r] = float64(m[c][r])
			}
		}
	}
	return out, nil
}

// readFloats flattens any float or normalized-integer accessor into float64
// components. Animation samplers use it for both inputs and outputs.
func readFloats(doc *gltf.Document, idx int) ([]float64, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return nil, err
	}

	switch v := data.(type) {
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case [][3]float32:
		out := make([]float64, 0, len(v)*3)
		for _, x := range v {
			out = append(out, float64(x[0]), float64(x[1]), float64(x[2]))
		}
		return out, nil
	case [][4]float32:
		out := make([]float64, 0, len(v)*4)
		for _, x := range v {
			out = append(out, float64(x[0]), float64(x[1]), float64(x[2]), float64(x[3]))
		}
		return out, nil
	case [][4]int8:
		out := make([]float64, 0, len(v)*4)
		for _, x := range v {
			for _, c := range x {
				out = append(out, max(float64(c)/127, -1))
			}
		}
		return out, nil
	case [][4]uint8:
		out := make([]float64, 0, len(v)*4)
		for _, x := range v {
			for _, c := range x {
				out = append(out, float64(c)/255)
			}
		}
		return out, nil
	case [][4]int16:
		out := make([]float64, 0, len(v)*4)
		for _, x := range v {
			for _, c := range x {
				out = append(out, max(float64(c)/32767, -1))
			}
		}
		return out, nil
	case [][4]uint16:
		out := make([]float64, 0, len(v)*4)
		for _, x := range v {
			for _, c := range x {
				out = append(out, float64(c)/65535)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported accessor data %T", data)
}

func vec3s(data [][3]float32) []math3d.Vec3 {
	out := make([]math3d.Vec3, len(data))
	for i, f := range data {
		out[i] = math3d.V3(float64(f[0]), float64(f[1]), float64(f[2]))
	}
	return out
}
