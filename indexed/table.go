package indexed

// Palette is an ordered table of at most MaxColors colors.
type Palette struct {
	colors [MaxColors]RGB
	n      int
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	return p.n
}

// At returns entry i, which must be less than Len.
func (p *Palette) At(i int) RGB {
	return p.colors[:p.n][i]
}

func (p *Palette) set(i int, c RGB) {
	p.colors[:p.n][i] = c
}

func (p *Palette) push(c RGB) bool {
	if p.n == MaxColors {
		return false
	}
	p.colors[p.n] = c
	p.n++
	return true
}

// Colors returns a copy of the entries.
func (p *Palette) Colors() []RGB {
	return append([]RGB(nil), p.colors[:p.n]...)
}

// Bytes returns the entries as consecutive RGB triples.
func (p *Palette) Bytes() []byte {
	b := make([]byte, 0, 3*p.n)
	for _, c := range p.colors[:p.n] {
		b = append(b, c.R, c.G, c.B)
	}
	return b
}

// Transparency is a table of at most MaxColors alpha values indexed by
// palette index. Indices at or beyond Len are fully opaque.
type Transparency struct {
	alpha [MaxColors]uint8
	n     int
}

// Len returns the number of explicit entries.
func (t *Transparency) Len() int {
	return t.n
}

// Alpha returns the alpha of palette index i.
func (t *Transparency) Alpha(i int) uint8 {
	if i < t.n {
		return t.alpha[i]
	}
	return Opaque
}

// Values returns a copy of the explicit entries.
func (t *Transparency) Values() []uint8 {
	return append([]uint8(nil), t.alpha[:t.n]...)
}

// set stores alpha at index i, first growing the table with opaque entries
// so that it covers i.
func (t *Transparency) set(i int, alpha uint8) {
	for ; t.n <= i; t.n++ {
		t.alpha[t.n] = Opaque
	}
	t.alpha[i] = alpha
}

// canonicalize drops trailing opaque entries.
func (t *Transparency) canonicalize() {
	for t.n > 0 && t.alpha[t.n-1] == Opaque {
		t.n--
	}
}
