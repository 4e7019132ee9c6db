package board

import "testing"

func TestPlayCapturesGroup(t *testing.T) {
	p := NewGame()
	// Surround a single white stone at (1,1) with black stones, Black to
	// move first.
	moves := []struct {
		x, y int
	}{
		{1, 1}, // white will occupy this
	}
	_ = moves
	p = p.Play(VertexAt(1, 0))
	p = p.Play(VertexAt(1, 1)) // white plays into the middle
	p = p.Play(VertexAt(0, 1))
	p = p.Play(VertexAt(5, 5)) // white elsewhere
	p = p.Play(VertexAt(2, 1))
	p = p.Play(VertexAt(6, 6)) // white elsewhere
	p = p.Play(VertexAt(1, 2))

	if got := p.At(VertexAt(1, 1)); got != Empty {
		t.Fatalf("expected captured stone to be removed, got %v", got)
	}
}

func TestIsMoveLegalRejectsSuicide(t *testing.T) {
	p := NewGame()
	p = p.Play(VertexAt(1, 0))
	p = p.Play(VertexAt(10, 10))
	p = p.Play(VertexAt(0, 1))
	p = p.Play(VertexAt(10, 11))

	if p.IsMoveLegal(White, VertexAt(0, 0)) {
		t.Fatalf("expected suicide move to be illegal")
	}
}

func TestIsMoveLegalOccupied(t *testing.T) {
	p := NewGame()
	p = p.Play(VertexAt(3, 3))
	if p.IsMoveLegal(White, VertexAt(3, 3)) {
		t.Fatalf("expected occupied point to be illegal")
	}
}

func TestPassIncrementsPasses(t *testing.T) {
	p := NewGame()
	p = p.Play(Pass)
	if p.Passes() != 1 {
		t.Fatalf("expected 1 pass, got %d", p.Passes())
	}
	p = p.Play(Pass)
	if p.Passes() != 2 {
		t.Fatalf("expected 2 passes, got %d", p.Passes())
	}
}

func TestPlayResetsPasses(t *testing.T) {
	p := NewGame()
	p = p.Play(Pass)
	p = p.Play(VertexAt(4, 4))
	if p.Passes() != 0 {
		t.Fatalf("expected passes reset after a stone move, got %d", p.Passes())
	}
}

func TestHistoryWalksPriorPositions(t *testing.T) {
	p := NewGame()
	p1 := p.Play(VertexAt(3, 3))
	p2 := p1.Play(VertexAt(15, 15))

	got, ok := p2.History(1)
	if !ok || got != p1 {
		t.Fatalf("expected History(1) to return the immediately prior position")
	}
	got, ok = p2.History(2)
	if !ok || got != p {
		t.Fatalf("expected History(2) to return the initial position")
	}
	if _, ok := p2.History(3); ok {
		t.Fatalf("expected History(3) to report false past the game start")
	}
}

func TestIsEyeSimpleCorner(t *testing.T) {
	p := NewGame()
	// Fill neighbors of (0,0) with Black to make it a corner eye.
	p = p.Play(VertexAt(1, 0))
	p = p.Play(VertexAt(18, 18))
	p = p.Play(VertexAt(0, 1))
	p = p.Play(VertexAt(18, 17))

	if !p.IsEye(Black, VertexAt(0, 0)) {
		t.Fatalf("expected (0,0) to be a black eye")
	}
}

func TestSuperkoOnIgnoresNonRepeatingCapture(t *testing.T) {
	// Black capturing a single White stone produces a board that has
	// never occurred before, so SuperkoOn must not flag it.
	p := NewGame()
	// Build (x=0..3):
	//  . . W B   (row y=0)
	//  . B B .   (row y=1)
	// with the white stone at (2,0) left one liberty, at (1,0), which
	// black then fills to capture it.
	p = p.Play(VertexAt(2, 1))  // B
	p = p.Play(VertexAt(2, 0))  // W
	p = p.Play(VertexAt(1, 1))  // B (unrelated support)
	p = p.Play(VertexAt(15, 15)) // W elsewhere
	p = p.Play(VertexAt(3, 0))  // B
	p = p.Play(VertexAt(16, 16)) // W elsewhere
	// Black playing (1,0) captures the lone white stone at (2,0). It is
	// not a ko (the capturing stone keeps other liberties), and the
	// resulting board is new, so no superko may be reported.
	if p.SuperkoOn(VertexAt(1, 0)) {
		t.Fatalf("did not expect superko on a non-repeating move")
	}
}
