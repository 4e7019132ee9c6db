// Package features implements the Symmetry/Feature Adapter: packing a
// board.Position's recent history into the fixed 18-plane input tensor an
// evaluator consumes, and the board-symmetry transform used to derive
// priors for a position under an arbitrarily rotated/reflected encoding.
//
// The plane layout and the rotate_nn_idx transform are followed exactly
// from original_source/src/Network.cpp's gather_features/rotate_nn_idx —
// this package is a straight port of that math, expressed idiomatically
// over board.Vertex instead of raw ints, with buffer pooling for the hot
// path the way convert/convert.go pools its packing buffers.
package features

import (
	"sync"

	"github.com/goishi/deepgo/board"
)

// History is the number of most recent board positions (including the
// current one) folded into the stone-history planes.
const History = 8

// Planes is the total number of input planes: History to-move planes,
// History opponent planes, one all-Black-to-move plane, one
// all-White-to-move plane.
const Planes = 2*History + 2

// Size is the flat length of one encoded input tensor.
const Size = Planes * board.NumVertices

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]float32, Size)
		return &buf
	},
}

// GetBuffer returns a pooled, zeroed Size-length float32 slice.
func GetBuffer() *[]float32 {
	buf := bufferPool.Get().(*[]float32)
	for i := range *buf {
		(*buf)[i] = 0
	}
	return buf
}

// PutBuffer returns buf to the pool.
func PutBuffer(buf *[]float32) {
	bufferPool.Put(buf)
}

// Symmetry identifies one of the 8 board symmetries of the square: 0-3 are
// the identity and the three axis/diagonal-preserving flips, 4-7 are the
// same flips applied after a transpose.
type Symmetry int

const (
	SymIdentity Symmetry = iota
	SymFlipY
	SymFlipX
	SymFlipXY
	SymTranspose
	SymTransposeFlipY
	SymTransposeFlipX
	SymTransposeFlipXY
)

// NumSymmetries is the size of the board's dihedral symmetry group.
const NumSymmetries = 8

// Rotate maps v through symmetry sym, matching
// original_source/src/Network.cpp's rotate_nn_idx exactly: transpose first
// when sym >= 4, then flip x and/or y according to the low two bits. It is
// used both to build a rotated input encoding and, with the same symmetry,
// to find where each original-board vertex's entry sits in the network's
// rotated output policy.
func Rotate(v board.Vertex, sym Symmetry) board.Vertex {
	x, y := v.XY()
	s := int(sym)
	if s >= 4 {
		x, y = y, x
		s -= 4
	}
	switch s {
	case 0: // identity
	case 1: // flip y
		y = board.Size - y - 1
	case 2: // flip x
		x = board.Size - x - 1
	case 3: // flip both
		x = board.Size - x - 1
		y = board.Size - y - 1
	}
	return board.VertexAt(x, y)
}

// Encode packs pos's recent history into a freshly pooled input tensor
// under the given symmetry, channel-major (plane, y, x). Callers must
// return the buffer with PutBuffer when done.
//
// Plane layout, matching gather_features exactly:
//
//	[0, History)          the side-to-move's stones, most recent first
//	[History, 2*History)  the opponent's stones, most recent first
//	2*History              all-set if Black is to move, else all-zero
//	2*History+1            all-set if White is to move, else all-zero
func Encode(pos *board.Position, sym Symmetry) *[]float32 {
	buf := GetBuffer()
	planes := *buf
	toMove := pos.ToMove()

	for h := 0; h < History; h++ {
		hist, ok := pos.History(h)
		if !ok {
			break
		}
		for boardV := 0; boardV < board.NumVertices; boardV++ {
			stone := hist.At(board.Vertex(boardV))
			if stone == board.Empty {
				continue
			}
			out := Rotate(board.Vertex(boardV), sym)
			var plane int
			if stone == toMove {
				plane = h
			} else {
				plane = History + h
			}
			planes[plane*board.NumVertices+int(out)] = 1
		}
	}

	sidePlane := 2 * History
	if toMove == board.Black {
		fillPlane(planes, sidePlane, 1)
	} else {
		fillPlane(planes, sidePlane+1, 1)
	}
	return buf
}

func fillPlane(planes []float32, plane int, val float32) {
	base := plane * board.NumVertices
	for i := 0; i < board.NumVertices; i++ {
		planes[base+i] = val
	}
}
