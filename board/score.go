package board

// Score computes the position's Chinese-rules (area) score from Black's
// perspective: stones on the board plus territory, where territory is an
// empty region whose only bordering color is credited to that color and
// neutral (dame) regions bordering both colors count for neither. komi is
// subtracted from Black's total the way it is added to White's.
//
// This is a terminal-position scorer only, used when Passes() >= 2 or a
// self-play game reaches its move limit; it is
// not a life-and-death solver; dead stones already removed by play are
// scored correctly, but stones left on the board are always assumed
// alive, matching the simple area-scoring convention self-play training
// data is generated under.
func (p *Position) Score(komi float64) float64 {
	var black, white int
	visited := make([]bool, NumVertices)

	for v := 0; v < NumVertices; v++ {
		switch p.stones[v] {
		case Black:
			black++
			continue
		case White:
			white++
			continue
		}
		if visited[v] {
			continue
		}
		region, borders := floodEmptyRegion(p, Vertex(v), visited)
		switch borders {
		case regionBlack:
			black += region
		case regionWhite:
			white += region
		}
	}

	return float64(black) - float64(white) - komi
}

type regionBorder int

const (
	regionNone regionBorder = iota
	regionBlack
	regionWhite
	regionMixed
)

func floodEmptyRegion(p *Position, start Vertex, visited []bool) (size int, border regionBorder) {
	stack := []Vertex{start}
	visited[start] = true
	seenBlack, seenWhite := false, false

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		size++
		for _, n := range neighbors(cur) {
			switch p.stones[n] {
			case Empty:
				if !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			case Black:
				seenBlack = true
			case White:
				seenWhite = true
			}
		}
	}

	switch {
	case seenBlack && seenWhite:
		return size, regionMixed
	case seenBlack:
		return size, regionBlack
	case seenWhite:
		return size, regionWhite
	default:
		return size, regionNone
	}
}
