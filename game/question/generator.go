package question

import (
	"fmt"
	"strconv"
)

const maxRetries = 12

// Generator builds questions and remembers recent ones per bucket so the
// same display does not come back too soon.
type Generator struct {
	src     Source
	history map[string]*recent
}

// NewGenerator returns a generator drawing from src.
func NewGenerator(src Source) *Generator {
	return &Generator{src: src, history: make(map[string]*recent)}
}

// Reset forgets all anti-repeat history.
func (g *Generator) Reset() {
	g.history = make(map[string]*recent)
}

// Generate builds a question for the move scaled by diff. When allowed is
// non-empty and intersects the move's ops, only those ops are used.
func (g *Generator) Generate(m Move, diff float64, allowed []Op) Question {
	ops := restrictOps(m.Ops, allowed)
	lo, hi := ScaleRange(m.Range, diff)

	key := fmt.Sprintf("%d-%d|%.2f|%s", m.Range[0], m.Range[1], diff, opsKey(ops))
	h := g.history[key]
	if h == nil {
		h = newRecent(HistorySize(EstimateSpace(lo, hi, ops)))
		g.history[key] = h
	}

	var q Question
	for try := 0; ; try++ {
		op := ops[g.src.PickIndex(len(ops))]
		q = g.build(op, lo, hi)
		if try >= maxRetries || !h.contains(q.Display) {
			break
		}
	}
	h.push(q.Display)
	return q
}

func restrictOps(ops, allowed []Op) []Op {
	var valid []Op
	for _, o := range ops {
		if o.Valid() {
			valid = append(valid, o)
		}
	}
	if len(valid) == 0 {
		valid = []Op{OpAdd}
	}
	if len(allowed) == 0 {
		return valid
	}
	var out []Op
	for _, o := range valid {
		for _, a := range allowed {
			if o == a {
				out = append(out, o)
				break
			}
		}
	}
	if len(out) == 0 {
		return valid
	}
	return out
}

func (g *Generator) build(op Op, lo, hi int) Question {
	switch op {
	case OpSub, OpMul, OpDiv, OpAdd:
		return g.binary(op, lo, hi)
	case OpMix3:
		return g.mixed(3, lo, hi)
	case OpMix4:
		return g.mixed(4, lo, hi)
	case OpUnknown:
		return g.unknown(lo, hi)
	case OpFracCmp:
		return g.fracCompare(hi)
	case OpFracAdd:
		return g.fracAdd(hi)
	}
	return g.binary(OpAdd, lo, hi)
}

// operands returns a, b and the result of a op b, keeping - non-negative
// and ÷ exact.
func (g *Generator) operands(op Op, lo, hi int) (a, b, ans int) {
	switch op {
	case OpSub:
		a, b = g.src.RandInt(lo, hi), g.src.RandInt(lo, hi)
		if b > a {
			a, b = b, a
		}
		return a, b, a - b
	case OpMul:
		a, b = g.src.RandInt(lo, hi), g.src.RandInt(lo, hi)
		return a, b, a * b
	case OpDiv:
		b = g.src.RandInt(lo, hi)
		if b < 1 {
			b = 1
		}
		q := g.src.RandInt(lo, hi)
		return b * q, b, q
	default:
		a, b = g.src.RandInt(lo, hi), g.src.RandInt(lo, hi)
		return a, b, a + b
	}
}

func (g *Generator) binary(op Op, lo, hi int) Question {
	a, b, ans := g.operands(op, lo, hi)
	q := Question{
		Display: fmt.Sprintf("%d %s %d = ?", a, op, b),
		Op:      op,
		Answer:  Int(ans),
	}
	q.Choices = g.intChoices(ans, []int{wrongOp(op, a, b)})
	return q
}

func wrongOp(op Op, a, b int) int {
	switch op {
	case OpAdd:
		if a >= b {
			return a - b
		}
		return b - a
	case OpSub:
		return a + b
	case OpMul:
		return a + b
	case OpDiv:
		return a - b
	}
	return -1
}

func (g *Generator) unknown(lo, hi int) Question {
	base := []Op{OpAdd, OpSub, OpMul, OpDiv}[g.src.PickIndex(4)]
	a, b, c := g.operands(base, lo, hi)

	// Either operand may be hidden.
	hideLeft := g.src.Chance(0.5)
	var display string
	var ans int
	if hideLeft {
		display = fmt.Sprintf("? %s %d = %d", base, b, c)
		ans = a
	} else {
		display = fmt.Sprintf("%d %s ? = %d", a, base, c)
		ans = b
	}
	q := Question{Display: display, Op: OpUnknown, Answer: Int(ans)}
	q.Steps = []string{display, fmt.Sprintf("? = %d", ans)}
	// Typical slip: answering with the shown result or the inverse op.
	q.Choices = g.intChoices(ans, []int{c, wrongOp(base, c, b)})
	return q
}

type term struct {
	n  int
	op Op // operator preceding n; empty for the first term
}

func (g *Generator) mixed(terms, lo, hi int) Question {
	mulHi := hi
	if mulHi > 12 {
		mulHi = 12
	}
	mulLo := lo
	if mulLo > mulHi {
		mulLo = 1
	}

	var ts []term
	var ans int
	var steps []string
	for try := 0; try < maxRetries; try++ {
		ts = ts[:0]
		ts = append(ts, term{n: g.src.RandInt(lo, hi)})
		for i := 1; i < terms; i++ {
			op := []Op{OpAdd, OpSub, OpMul}[g.src.PickIndex(3)]
			n := g.src.RandInt(lo, hi)
			if op == OpMul {
				n = g.src.RandInt(mulLo, mulHi)
				// keep the left factor small as well
				if ts[len(ts)-1].n > mulHi {
					ts[len(ts)-1].n = g.src.RandInt(mulLo, mulHi)
				}
			}
			ts = append(ts, term{n: n, op: op})
		}
		ans, steps = evaluate(ts)
		if ans >= 0 {
			break
		}
	}
	if ans < 0 {
		for i := 1; i < len(ts); i++ {
			ts[i].op = OpAdd
		}
		ans, steps = evaluate(ts)
	}

	op := OpMix3
	if terms == 4 {
		op = OpMix4
	}
	q := Question{
		Display: render(ts) + " = ?",
		Op:      op,
		Answer:  Int(ans),
		Steps:   steps,
	}
	// Left-to-right evaluation ignoring precedence is the classic mistake.
	q.Choices = g.intChoices(ans, []int{leftToRight(ts)})
	return q
}

func render(ts []term) string {
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += " " + string(t.op) + " "
		}
		s += strconv.Itoa(t.n)
	}
	return s
}

// evaluate reduces ts with × before + and -, recording each reduction.
func evaluate(ts []term) (int, []string) {
	cur := append([]term(nil), ts...)
	steps := []string{render(cur)}
	for {
		idx := -1
		for i := 1; i < len(cur); i++ {
			if cur[i].op == OpMul {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		cur[idx-1].n *= cur[idx].n
		cur = append(cur[:idx], cur[idx+1:]...)
		steps = append(steps, "= "+render(cur))
	}
	for len(cur) > 1 {
		if cur[1].op == OpSub {
			cur[0].n -= cur[1].n
		} else {
			cur[0].n += cur[1].n
		}
		cur = append(cur[:1], cur[2:]...)
		steps = append(steps, "= "+render(cur))
	}
	return cur[0].n, steps
}

func leftToRight(ts []term) int {
	v := ts[0].n
	for _, t := range ts[1:] {
		switch t.op {
		case OpAdd:
			v += t.n
		case OpSub:
			v -= t.n
		case OpMul:
			v *= t.n
		}
	}
	return v
}

func (g *Generator) randFrac(maxDen int) Value {
	d := g.src.RandInt(2, maxDen)
	n := g.src.RandInt(1, d-1)
	return Frac(n, d)
}

func (g *Generator) fracCompare(hi int) Question {
	maxDen := fracMaxDen(hi)
	a := g.randFrac(maxDen)
	b := g.randFrac(maxDen)
	for try := 0; a.Equal(b) && try < maxRetries; try++ {
		b = g.randFrac(maxDen)
	}
	if a.Equal(b) {
		b = Frac(a.Num, a.Den+1)
	}
	larger, smaller := a, b
	if a.Less(b) {
		larger, smaller = b, a
	}
	q := Question{
		Display: fmt.Sprintf("Which is larger: %s or %s?", a, b),
		Op:      OpFracCmp,
		Answer:  larger,
	}
	q.Choices = g.fracChoices(larger, []Value{smaller, Frac(larger.Den, larger.Num), Frac(a.Num+b.Num, a.Den+b.Den)})
	return q
}

func (g *Generator) fracAdd(hi int) Question {
	maxDen := fracMaxDen(hi)
	if maxDen > 10 {
		maxDen = 10
	}
	a := g.randFrac(maxDen)
	b := g.randFrac(maxDen)
	ans := add(a, b)
	q := Question{
		Display: fmt.Sprintf("%s + %s = ?", a, b),
		Op:      OpFracAdd,
		Answer:  ans,
	}
	q.Steps = []string{
		q.Display,
		fmt.Sprintf("= %d/%d + %d/%d", a.Num*b.Den, a.Den*b.Den, b.Num*a.Den, a.Den*b.Den),
		"= " + ans.String(),
	}
	q.Choices = g.fracChoices(ans, []Value{Frac(a.Num+b.Num, a.Den+b.Den), Frac(ans.Den, ans.Num)})
	return q
}

// intChoices returns the answer plus three plausible integer distractors
// in random order.
func (g *Generator) intChoices(ans int, hints []int) [4]Value {
	cands := append([]int{}, hints...)
	cands = append(cands, ans+1, ans-1, ans+10, ans-10, ans+2, ans-2)
	if r := reverseDigits(ans); r != ans {
		cands = append([]int{r}, cands...)
	}
	// Shuffle near misses so the distractor mix varies between questions.
	g.shuffleInts(cands)

	set := []int{ans}
	seen := map[int]bool{ans: true}
	for _, c := range cands {
		if len(set) == 4 {
			break
		}
		if c < 0 || seen[c] {
			continue
		}
		seen[c] = true
		set = append(set, c)
	}
	span := ans / 2
	if span < 3 {
		span = 3
	}
	for try := 0; len(set) < 4 && try < 32; try++ {
		c := ans + g.src.RandInt(-span, span)
		if c < 0 || seen[c] {
			continue
		}
		seen[c] = true
		set = append(set, c)
	}
	for k := 1; len(set) < 4; k++ {
		if !seen[ans+k] {
			seen[ans+k] = true
			set = append(set, ans+k)
		}
	}

	var out [4]Value
	for i, n := range set {
		out[i] = Int(n)
	}
	g.shuffleValues(&out)
	return out
}

func (g *Generator) fracChoices(ans Value, hints []Value) [4]Value {
	cands := append([]Value{}, hints...)
	cands = append(cands,
		Frac(ans.Num+1, ans.Den),
		Frac(ans.Num, ans.Den+1),
		Frac(ans.Num+ans.Den, ans.Den),
	)
	if ans.Num > 1 {
		cands = append(cands, Frac(ans.Num-1, ans.Den))
	}

	set := []Value{ans}
	for _, c := range cands {
		if len(set) == 4 {
			break
		}
		if c.Num <= 0 || containsValue(set, c) {
			continue
		}
		set = append(set, c)
	}
	for k := 2; len(set) < 4; k++ {
		c := Frac(ans.Num*k+1, ans.Den*k)
		if !containsValue(set, c) {
			set = append(set, c)
		}
	}

	var out [4]Value
	copy(out[:], set)
	g.shuffleValues(&out)
	return out
}

func containsValue(vs []Value, v Value) bool {
	for _, x := range vs {
		if x.Equal(v) {
			return true
		}
	}
	return false
}

func (g *Generator) shuffleInts(s []int) {
	for i := len(s) - 1; i > 0; i-- {
		j := g.src.RandInt(0, i)
		s[i], s[j] = s[j], s[i]
	}
}

func (g *Generator) shuffleValues(v *[4]Value) {
	for i := 3; i > 0; i-- {
		j := g.src.RandInt(0, i)
		v[i], v[j] = v[j], v[i]
	}
}

func reverseDigits(n int) int {
	if n < 10 {
		return n
	}
	r := 0
	for m := n; m > 0; m /= 10 {
		r = r*10 + m%10
	}
	return r
}
