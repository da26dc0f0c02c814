package matrix

// ElementMatrix is what an element needs to stamp itself (1-based indexing).
type ElementMatrix interface {
	AddComplexElement(i, j int, value complex128)
	AddComplexRHS(i int, value complex128)
}
