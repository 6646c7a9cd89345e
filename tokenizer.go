package textmate

// Stream is a cursor over one source line, mirroring the stream a stateful
// editor mode's token function is handed.  The consumer calls the mode's
// Token repeatedly, advancing the stream left to right until EOL.
type Stream struct {
	text string
	pos  int
}

// NewStream returns a stream positioned at the start of line.
func NewStream(line string) *Stream {
	return &Stream{text: line}
}

func (s *Stream) Text() string { return s.text }
func (s *Stream) Pos() int     { return s.pos }
func (s *Stream) EOL() bool    { return s.pos >= len(s.text) }

// SetPos moves the cursor, clamped to the line bounds.
func (s *Stream) SetPos(p int) {
	if p < 0 {
		p = 0
	}
	if p > len(s.text) {
		p = len(s.text)
	}
	s.pos = p
}

// SkipToEnd advances the cursor to end of line.
func (s *Stream) SkipToEnd() { s.pos = len(s.text) }

// ModeState is the per-line tokenizer state: the engine's rule stack
// carried across lines, plus the cached token list for the line currently
// being consumed.
type ModeState struct {
	stack  RuleStack
	tokens []Token
	next   int
}

// Copy returns an independent state.  Editors fork tokenizer state per line
// during incremental re-highlighting; the rule stack is cloned so the fork
// cannot be mutated underneath the original.
func (st *ModeState) Copy() *ModeState {
	cp := *st
	if st.stack != nil {
		cp.stack = st.stack.Clone()
	}
	return &cp
}

// ModeTokenizer is the editor-facing tokenizer for one language: an initial
// state constructor, a state copier, and the per-line token function, the
// triple a stream-mode editor installs under a mode name.
type ModeTokenizer struct {
	grammar  Grammar
	classify func(scopes []string) string
}

// StartState returns the start-of-document state.
func (m *ModeTokenizer) StartState() *ModeState { return &ModeState{} }

// CopyState clones st.
func (m *ModeTokenizer) CopyState(st *ModeState) *ModeState { return st.Copy() }

// Token implements the stream-mode protocol.  On the first call for a line
// (stream at position 0) it tokenizes the whole line against the grammar
// using the carried rule stack and caches the result in st; each call then
// consumes one cached token, advancing the stream to the token's end offset
// and returning its flat classification.  Once the cache is exhausted the
// stream skips to end of line and "" (unstyled) is returned.
func (m *ModeTokenizer) Token(stream *Stream, st *ModeState) string {
	if stream.Pos() == 0 {
		res := m.grammar.TokenizeLine(stream.Text(), st.stack)
		st.tokens = res.Tokens
		st.stack = res.Stack
		st.next = 0
	}
	// Zero-width tokens would stall the consumer's scan loop; drop them.
	for st.next < len(st.tokens) && st.tokens[st.next].EndIndex <= stream.Pos() {
		st.next++
	}
	if st.next >= len(st.tokens) {
		stream.SkipToEnd()
		return ""
	}
	tok := st.tokens[st.next]
	st.next++
	stream.SetPos(tok.EndIndex)
	return m.classify(tok.Scopes)
}
