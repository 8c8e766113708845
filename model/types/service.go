package types

// Service is a named action service exposing typed methods. Every capability
// of the runtime (shell execution, code cells, file access, diagnostics) is
// surfaced through this contract so that the dispatch layer can stay generic.
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}
