// Package compiler implements the single-pass Pratt parser that
// compiles source directly into a Chunk of bytecode, plus the chunk
// format, opcode table, and instruction disassembler it shares with
// the vm package.
package compiler

import (
	"os"
	"strconv"
	"strings"

	"nilox/interner"
	"nilox/lexer"
	"nilox/token"
	"nilox/value"
)

// precedence orders the binding power of operators, lowest to
// highest, driving parsePrecedence.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * / %
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[token.TokenType]parseRule

func init() {
	rules = map[token.TokenType]parseRule{
		token.LPAREN:        {(*Compiler).grouping, (*Compiler).call, precCall},
		token.RPAREN:        {nil, nil, precNone},
		token.LBRACE:        {nil, nil, precNone},
		token.RBRACE:        {nil, nil, precNone},
		token.LBRACKET:      {nil, nil, precNone},
		token.RBRACKET:      {nil, nil, precNone},
		token.COMMA:         {nil, nil, precNone},
		token.DOT:           {nil, nil, precNone},
		token.MINUS:         {(*Compiler).unary, (*Compiler).binary, precTerm},
		token.PLUS:          {nil, (*Compiler).binary, precTerm},
		token.SEMICOLON:     {nil, nil, precNone},
		token.SLASH:         {nil, (*Compiler).binary, precFactor},
		token.STAR:          {nil, (*Compiler).binary, precFactor},
		token.MODULO:        {nil, (*Compiler).binary, precFactor},
		token.BANG:          {(*Compiler).unary, nil, precNone},
		token.BANG_EQUAL:    {nil, (*Compiler).binary, precEquality},
		token.ASSIGN:        {nil, nil, precNone},
		token.EQUAL_EQUAL:   {nil, (*Compiler).binary, precEquality},
		token.GREATER:       {nil, (*Compiler).binary, precComparison},
		token.GREATER_EQUAL: {nil, (*Compiler).binary, precComparison},
		token.LESS:          {nil, (*Compiler).binary, precComparison},
		token.LESS_EQUAL:    {nil, (*Compiler).binary, precComparison},
		token.IDENTIFIER:    {(*Compiler).variable, nil, precNone},
		token.STRING:        {(*Compiler).string, nil, precNone},
		token.NUMBER:        {(*Compiler).number, nil, precNone},
		token.AND:           {nil, (*Compiler).and_, precAnd},
		token.CLASS:         {nil, nil, precNone},
		token.ELSE:          {nil, nil, precNone},
		token.FALSE:         {(*Compiler).literal, nil, precNone},
		token.FOR:           {nil, nil, precNone},
		token.FUN:           {nil, nil, precNone},
		token.IF:            {nil, nil, precNone},
		token.NIL:           {(*Compiler).literal, nil, precNone},
		token.OR:            {nil, (*Compiler).or_, precOr},
		token.PRINT:         {nil, nil, precNone},
		token.RETURN:        {nil, nil, precNone},
		token.SUPER:         {nil, nil, precNone},
		token.THIS:          {nil, nil, precNone},
		token.TRUE:          {(*Compiler).literal, nil, precNone},
		token.VAR:           {nil, nil, precNone},
		token.WHILE:         {nil, nil, precNone},
		token.ERROR:         {nil, nil, precNone},
		token.EOF:           {nil, nil, precNone},
	}
}

func getRule(t token.TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{nil, nil, precNone}
}

// local is compile-time-only bookkeeping for a block-scoped variable:
// its name and the scope depth it was declared at. A local is only
// ever appended once its initializer has compiled (declareVariable),
// so every entry is immediately usable — there is no "declared but not
// yet initialized" half-state to track.
type local struct {
	name  string
	depth int
}

// Function is the compiled unit the VM executes: an arity, its
// chunk, and an optional name for tracebacks. The function table this
// compiler produces always has exactly one entry, the top-level
// script, since this language has no user-defined function
// declarations.
type Function struct {
	Arity int
	Chunk *Chunk
	Name  *interner.StrId
}

// Compiler holds all single-pass compile state: the token cursor, the
// chunk being built, and the locals/scope-depth stack.
type Compiler struct {
	lex       *lexer.Lexer
	in        *interner.Interner
	current   token.Token
	previous  token.Token
	hadError  bool
	panicMode bool
	errors    []error

	chunk      *Chunk
	locals     []local
	scopeDepth int
}

// Compile runs the single-pass Pratt compiler over source, interning
// identifiers and string literals through in. It returns the compiled
// top-level Function and any compile errors. If errors is non-empty
// the returned Function must not be executed.
func Compile(source string, in *interner.Interner, trace bool) (*Function, []error) {
	c := &Compiler{
		lex:        lexer.New(source),
		in:         in,
		chunk:      NewChunk(),
		scopeDepth: 0,
	}

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.emitReturn()

	if c.hadError {
		return nil, c.errors
	}

	fn := &Function{Arity: 0, Chunk: c.chunk}
	if trace {
		Disassemble(os.Stderr, fn.Chunk, "code", in)
	}
	return fn, nil
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != token.ERROR {
			break
		}
		c.errorAtCurrent(c.current.Source)
	}
}

func (c *Compiler) check(t token.TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) errorAtPrevious(message string) { c.errorAt(c.previous, message) }

func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	where := ""
	switch tok.Type {
	case token.EOF:
		where = " at end"
	case token.ERROR:
		// message already carries the lexical diagnostic
	default:
		where = " at '" + tok.Source + "'"
	}
	c.errors = append(c.errors, &CompileError{Line: tok.Line, Message: where + ": " + message})
}

// synchronize discards tokens after a parse error until a plausible
// statement boundary, so one mistake doesn't cascade into dozens.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != token.EOF {
		if c.previous.Type == token.SEMICOLON {
			return
		}
		switch c.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// --- emission -----------------------------------------------------

func (c *Compiler) emitByte(b byte) {
	c.chunk.WriteByte(b, c.previous.Line)
}

func (c *Compiler) emitOp(op Opcode) {
	c.chunk.WriteOp(op, c.previous.Line)
}

func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

func (c *Compiler) emitOpByte(op Opcode, operand byte) {
	c.emitBytes(byte(op), operand)
}

func (c *Compiler) emitReturn() {
	// An implicit top-level return has nothing meaningful to hand
	// back; Nil keeps the VM's "pop a return value" contract uniform.
	c.emitOp(OpNil)
	c.emitOp(OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) int {
	idx := c.chunk.AddConstant(v)
	if idx > 255 {
		c.errorAtPrevious("Too many constants in one chunk")
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(v value.Value) {
	idx := c.makeConstant(v)
	c.emitOpByte(OpConstant, byte(idx))
}

// emitJump emits op followed by a two-byte placeholder, returning the
// offset of the placeholder for patchJump to fill in later.
func (c *Compiler) emitJump(op Opcode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk.Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk.Code) - offset - 2
	if jump > 0xffff {
		c.errorAtPrevious("Too much code to jump over")
	}
	c.chunk.Code[offset] = byte(uint16(jump) >> 8)
	c.chunk.Code[offset+1] = byte(uint16(jump) & 0xff)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OpLoop)
	offset := len(c.chunk.Code) - loopStart + 2
	if offset > 0xffff {
		c.errorAtPrevious("Loop body too large")
	}
	c.emitByte(byte(uint16(offset) >> 8))
	c.emitByte(byte(uint16(offset) & 0xff))
}

// --- scopes ---------------------------------------------------------

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(OpPop)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// --- grammar: declarations & statements ------------------------------

func (c *Compiler) declaration() {
	if c.match(token.VAR) {
		c.varDeclaration()
	} else {
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	nameToken, isArray := c.consumeVariableName("Expect variable name")

	if isArray {
		c.expression()
		c.emitOp(OpDeclareArray)
		c.consume(token.RBRACKET, "Expect ']' after array size")
	} else if c.match(token.ASSIGN) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}

	c.consume(token.SEMICOLON, "Expect ';' after variable declaration")
	c.declareVariable(nameToken, isArray)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression")
	c.emitOp(OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression")
	c.emitOp(OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'if'")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk.Code)
	c.consume(token.LPAREN, "Expect '(' after 'while'")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after for")

	switch {
	case c.match(token.SEMICOLON):
		// no initializer
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk.Code)

	exitJump := -1
	if !c.match(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "Expect ';' after loop condition")
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}

	if !c.match(token.RPAREN) {
		bodyJump := c.emitJump(OpJump)
		incrementStart := len(c.chunk.Code)
		c.expression()
		c.emitOp(OpPop)
		c.consume(token.RPAREN, "Expect ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}

	c.endScope()
}

// --- grammar: expressions -------------------------------------------

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(p precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.errorAtPrevious("Expect expression")
		return
	}

	canAssign := p <= precAssignment
	prefix(c, canAssign)

	for p <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		if infix == nil {
			c.errorAtPrevious("Expect expression")
			return
		}
		infix(c, canAssign)
	}

	if canAssign && c.match(token.ASSIGN) {
		c.errorAtPrevious("Invalid assignment target")
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression")
}

func (c *Compiler) number(_ bool) {
	n, err := strconv.ParseFloat(c.previous.Source, 64)
	if err != nil {
		c.errorAtPrevious("Invalid number literal")
		return
	}
	c.emitConstant(value.Number(n))
}

func (c *Compiler) string(_ bool) {
	raw := c.previous.Source
	unquoted := strings.TrimSuffix(strings.TrimPrefix(raw, `"`), `"`)
	id := c.in.Intern(unquoted)
	c.emitConstant(value.Str(id))
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Type {
	case token.FALSE:
		c.emitOp(OpFalse)
	case token.NIL:
		c.emitOp(OpNil)
	case token.TRUE:
		c.emitOp(OpTrue)
	}
}

func (c *Compiler) unary(_ bool) {
	operatorType := c.previous.Type
	c.parsePrecedence(precUnary)

	switch operatorType {
	case token.MINUS:
		c.emitOp(OpNegate)
	case token.BANG:
		c.emitOp(OpNot)
	}
}

func (c *Compiler) binary(_ bool) {
	operatorType := c.previous.Type
	rule := getRule(operatorType)
	c.parsePrecedence(rule.precedence + 1)

	switch operatorType {
	case token.PLUS:
		c.emitOp(OpAdd)
	case token.MINUS:
		c.emitOp(OpSubtract)
	case token.STAR:
		c.emitOp(OpMultiply)
	case token.SLASH:
		c.emitOp(OpDivide)
	case token.MODULO:
		c.emitOp(OpModulo)
	case token.BANG_EQUAL:
		c.emitOp(OpEqual)
		c.emitOp(OpNot)
	case token.EQUAL_EQUAL:
		c.emitOp(OpEqual)
	case token.GREATER:
		c.emitOp(OpGreater)
	case token.GREATER_EQUAL:
		c.emitOp(OpLess)
		c.emitOp(OpNot)
	case token.LESS:
		c.emitOp(OpLess)
	case token.LESS_EQUAL:
		c.emitOp(OpGreater)
		c.emitOp(OpNot)
	}
}

// call compiles the `(args...)` suffix of a call expression; the
// callee is already sitting on the stack below the arguments.
func (c *Compiler) call(_ bool) {
	argCount := c.argumentList()
	c.emitOpByte(OpCall, byte(argCount))
}

func (c *Compiler) argumentList() int {
	argCount := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if argCount == 255 {
				c.errorAtPrevious("Can't have more than 255 arguments")
			}
			argCount++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments")
	return argCount
}

func (c *Compiler) and_(_ bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(_ bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)

	c.patchJump(elseJump)
	c.emitOp(OpPop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp Opcode
	arg := c.resolveLocal(name)

	if arg != -1 {
		getOp, setOp = OpGetLocal, OpSetLocal
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = OpGetGlobal, OpSetGlobal
	}

	c.arrayAccessIndex()

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

// arrayAccessIndex compiles an optional `[expr]` suffix, pushing the
// index value; if absent it pushes Nil as the "no index" sentinel
// every GET_*/SET_* opcode expects.
func (c *Compiler) arrayAccessIndex() bool {
	if c.match(token.LBRACKET) {
		c.expression()
		c.consume(token.RBRACKET, "Expect ']' after array index")
		return true
	}
	c.emitOp(OpNil)
	return false
}

// --- variable resolution ---------------------------------------------

func (c *Compiler) identifierConstant(name token.Token) int {
	id := c.in.Intern(name.Source)
	return c.makeConstant(value.Identifier(id))
}

func (c *Compiler) resolveLocal(name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name.Source {
			return i
		}
	}
	return -1
}

// consumeVariableName consumes the identifier (and an optional `[`
// marking an array declaration) that starts a var declaration, without
// yet binding it as a local or global: the initializer/size expression
// that follows compiles next, and must not resolve this name against
// itself. This is why declareVariable runs after the initializer, not
// before — so `var a = a + 1;` inside a block reads an outer `a`
// (global or enclosing local) rather than tripping over its own
// not-yet-initialized slot.
func (c *Compiler) consumeVariableName(errMessage string) (token.Token, bool) {
	c.consume(token.IDENTIFIER, errMessage)
	nameToken := c.previous
	isArray := c.match(token.LBRACKET)
	return nameToken, isArray
}

// declareVariable binds nameToken as a local (or, for a plain
// non-array name at depth 0, a global) now that its initializer/size
// expression has already been compiled and is sitting on the stack.
// Arrays are always locals, even at the top level: the top-level
// script has its own frame and local-slot space like any other
// function, so a "global" array is simply a local of that frame.
func (c *Compiler) declareVariable(nameToken token.Token, isArray bool) {
	if c.scopeDepth == 0 && !isArray {
		global := c.identifierConstant(nameToken)
		c.emitOpByte(OpDefineGlobal, byte(global))
		return
	}

	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == nameToken.Source {
			c.errorAtCurrent("Already a variable with this name in this scope")
		}
	}

	// GET_LOCAL/SET_LOCAL carry the slot in a single operand byte.
	if len(c.locals) == 256 {
		c.errorAtPrevious("Too many local variables in function")
		return
	}

	c.locals = append(c.locals, local{name: nameToken.Source, depth: c.scopeDepth})
}
