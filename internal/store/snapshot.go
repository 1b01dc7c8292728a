package store

// Snapshot buffers the rows of one pass in memory so they can be written in
// a single transaction by CommitSnapshot. IDs handed out by the Add methods
// are negative placeholders; rows refer to each other through them and they
// are remapped to real row IDs at commit time.
type Snapshot struct {
	Pass            Pass
	Documents       []Document
	Symbols         []Symbol
	Usages          []Usage
	Implementations []Implementation
	Diagnostics     []Diagnostic

	nextFakeID int64
}

// NewSnapshot returns an empty snapshot for the given pass.
func NewSnapshot(pass Pass) *Snapshot {
	return &Snapshot{Pass: pass, nextFakeID: -1}
}

func (s *Snapshot) allocFakeID() int64 {
	id := s.nextFakeID
	s.nextFakeID--
	return id
}

// AddDocument buffers d and returns its placeholder ID.
func (s *Snapshot) AddDocument(d *Document) int64 {
	d.ID = s.allocFakeID()
	d.PassID = s.Pass.ID
	s.Documents = append(s.Documents, *d)
	return d.ID
}

// AddSymbol buffers sym and returns its placeholder ID. A parent must be
// added before its children.
func (s *Snapshot) AddSymbol(sym *Symbol) int64 {
	sym.ID = s.allocFakeID()
	if sym.SignatureHash == "" {
		sym.SignatureHash = ComputeSignatureHash(sym.FullName, sym.Kind, sym.Visibility, sym.Modifiers, sym.TypeName, sym.Signature)
	}
	s.Symbols = append(s.Symbols, *sym)
	return sym.ID
}

func (s *Snapshot) AddUsage(u *Usage) {
	u.ID = s.allocFakeID()
	s.Usages = append(s.Usages, *u)
}

func (s *Snapshot) AddImplementation(impl *Implementation) {
	impl.ID = s.allocFakeID()
	s.Implementations = append(s.Implementations, *impl)
}

func (s *Snapshot) AddDiagnostic(d *Diagnostic) {
	d.ID = s.allocFakeID()
	s.Diagnostics = append(s.Diagnostics, *d)
}
